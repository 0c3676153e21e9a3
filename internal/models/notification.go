package models

import "time"

// Notification types
const (
	NotificationTypeSuccess        = "SUCCESS"
	NotificationTypeError          = "ERROR"
	NotificationTypeInfo           = "INFO"
	NotificationTypeWarning        = "WARNING"
	NotificationTypePaymentUpdate  = "PAYMENT_UPDATE"
	NotificationTypeShippingUpdate = "SHIPPING_UPDATE"
)

// Notification is a persisted message intent. The delivery channel
// (push, in-app, email) is an external collaborator that drains these rows.
type Notification struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Message   string `gorm:"not null"`
	Type      string `gorm:"not null;default:'INFO'"`
	Data      JSON   `gorm:"type:jsonb"`
	ReadAt    *time.Time
	CreatedAt time.Time
}
