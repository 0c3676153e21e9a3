package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Boost types
const (
	BoostType24H = "BOOST_24H"
	BoostType7D  = "BOOST_7D"
)

// Boost statuses
const (
	BoostStatusPending   = "PENDING"
	BoostStatusActive    = "ACTIVE"
	BoostStatusExpired   = "EXPIRED"
	BoostStatusCancelled = "CANCELLED"
)

// ProductBoost is a time-boxed visibility promotion for a listing.
// At most one ACTIVE boost with a future endsAt may exist per product.
type ProductBoost struct {
	ID              uint            `gorm:"primarykey"`
	ProductID       uint            `gorm:"not null;index"`
	UserID          uint            `gorm:"not null;index"`
	BoostType       string          `gorm:"not null"`
	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	StartsAt        time.Time
	EndsAt          time.Time `gorm:"index"`
	PaymentIntentID string    `gorm:"uniqueIndex;not null"`
	Status          string    `gorm:"not null;default:'PENDING';index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
