package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product statuses
const (
	ProductStatusActive = "ACTIVE"
	ProductStatusSold   = "SOLD"
)

// Product is the listing being sold. Catalog CRUD lives in an external
// service; the payment core only flips its status and sale timestamps.
type Product struct {
	ID                  uint            `gorm:"primarykey"`
	Title               string          `gorm:"not null"`
	SellerID            uint            `gorm:"not null;index"`
	Price               decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status              string          `gorm:"not null;default:'ACTIVE';index"`
	SoldTransactionID   *uint           `gorm:"index"`
	SoldAt              *time.Time
	PaymentCompletedAt  *time.Time
	ScheduledDeletionAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
