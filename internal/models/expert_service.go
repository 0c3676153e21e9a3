package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpertService statuses, in transition order. The workflow only moves
// forward along this graph; COMPLETED is reachable solely through an
// explicit buyer confirmation.
const (
	ExpertStatusPending           = "PENDING"
	ExpertStatusAwaitingShipment  = "AWAITING_SHIPMENT"
	ExpertStatusInTransitToUs     = "IN_TRANSIT_TO_GEARTED"
	ExpertStatusReceived          = "RECEIVED_BY_GEARTED"
	ExpertStatusUnderVerification = "UNDER_VERIFICATION"
	ExpertStatusVerified          = "VERIFIED"
	ExpertStatusIssueDetected     = "ISSUE_DETECTED"
	ExpertStatusInTransitToBuyer  = "IN_TRANSIT_TO_BUYER"
	ExpertStatusDelivered         = "DELIVERED"
	ExpertStatusCompleted         = "COMPLETED"
	ExpertStatusCancelled         = "CANCELLED"
	ExpertStatusRefunded          = "REFUNDED"
)

// ExpertService routes a physical item through platform inspection
// between seller and buyer. At most one per transaction.
type ExpertService struct {
	ID                   uint            `gorm:"primarykey"`
	TransactionID        uint            `gorm:"uniqueIndex;not null"`
	Price                decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentIntentID      string          `gorm:"uniqueIndex;not null"`
	Status               string          `gorm:"not null;default:'PENDING';index"`
	SellerTrackingNumber *string
	SellerShippedAt      *time.Time
	ReceivedAt           *time.Time
	VerifiedAt           *time.Time
	VerifiedBy           *uint
	VerificationPassed   *bool
	VerificationNotes    *string
	VerificationPhotos   StringList `gorm:"type:jsonb"`
	IssueDescription     *string
	BuyerTrackingNumber  *string
	ShippedToBuyerAt     *time.Time
	DeliveredToBuyerAt   *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
