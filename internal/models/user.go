package models

import "time"

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a thin projection of the account record owned by the external
// auth/user service. Only the fields the payment core reads are mapped.
type User struct {
	ID              uint   `gorm:"primarykey"`
	Username        string `gorm:"not null"`
	Email           string `gorm:"uniqueIndex;not null"`
	Role            string `gorm:"not null;default:'user'"`
	BuyerFeeExempt  bool   `gorm:"default:false"`
	SellerFeeExempt bool   `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
