package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Protection statuses
const (
	ProtectionStatusPending       = "PENDING"
	ProtectionStatusActive        = "ACTIVE"
	ProtectionStatusClaimOpened   = "CLAIM_OPENED"
	ProtectionStatusClaimResolved = "CLAIM_RESOLVED"
	ProtectionStatusExpired       = "EXPIRED"
	ProtectionStatusCancelled     = "CANCELLED"
)

// TransactionProtection is purchased dispute coverage on a transaction.
// At most one per transaction.
type TransactionProtection struct {
	ID               uint            `gorm:"primarykey"`
	TransactionID    uint            `gorm:"uniqueIndex;not null"`
	Price            decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentIntentID  string          `gorm:"uniqueIndex;not null"`
	Status           string          `gorm:"not null;default:'PENDING';index"`
	ClaimReason      *string
	ClaimDescription *string
	ClaimResolution  *string
	RefundAmount     *decimal.Decimal `gorm:"type:decimal(10,2)"`
	ClaimOpenedAt    *time.Time
	ClaimResolvedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
