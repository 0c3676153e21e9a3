package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TransactionStatusPending    = "PENDING"
	TransactionStatusProcessing = "PROCESSING"
	TransactionStatusSucceeded  = "SUCCEEDED"
	TransactionStatusFailed     = "FAILED"
	TransactionStatusCancelled  = "CANCELLED"
	TransactionStatusRefunded   = "REFUNDED"
)

// Transaction is one purchase attempt. Fee percentages and amounts are
// snapshotted at intent creation and never recomputed at settlement time.
type Transaction struct {
	ID               uint            `gorm:"primarykey"`
	Reference        string          `gorm:"uniqueIndex;not null"`
	ProductID        uint            `gorm:"not null;index"`
	BuyerID          uint            `gorm:"not null;index"`
	SellerID         uint            `gorm:"not null;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency         string          `gorm:"not null;default:'EUR'"`
	BuyerFeePercent  decimal.Decimal `gorm:"type:decimal(5,2)"`
	SellerFeePercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	BuyerFee         decimal.Decimal `gorm:"type:decimal(10,2)"`
	SellerFee        decimal.Decimal `gorm:"type:decimal(10,2)"`
	PlatformFee      decimal.Decimal `gorm:"type:decimal(10,2)"`
	SellerAmount     decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingCost     decimal.Decimal `gorm:"type:decimal(10,2)"`
	TotalPaid        decimal.Decimal `gorm:"type:decimal(10,2)"`
	Status           string          `gorm:"not null;default:'PENDING';index"`
	PaymentIntentID  string          `gorm:"uniqueIndex;not null"` // idempotency key toward the provider
	TransferID       *string
	HasExpert        bool `gorm:"default:false"`
	HasProtection    bool `gorm:"default:false"`
	ShippingRateID   *string
	ShippingProvider *string
	TrackingNumber   *string
	Metadata         JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the transaction has reached a final state.
// Terminal transactions are never mutated again; a webhook targeting one
// is acknowledged as a no-op.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case TransactionStatusSucceeded, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}
