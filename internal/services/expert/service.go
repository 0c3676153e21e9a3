// Package expert drives the physical verification workflow: the seller
// ships to the platform, an operator inspects the item, the item moves
// on to the buyer, and the buyer's delivery confirmation releases the
// held funds. The status graph only moves forward.
package expert

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/commission"
	"gearted/internal/services/notification"
	"gearted/internal/services/payment"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"

	"github.com/sirupsen/logrus"
)

// Repository persists expert verification workflows.
type Repository interface {
	Create(ctx context.Context, svc *models.ExpertService) error
	GetByID(ctx context.Context, id uint) (*models.ExpertService, error)
	GetByTransactionID(ctx context.Context, transactionID uint) (*models.ExpertService, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ExpertService, error)
	Update(ctx context.Context, svc *models.ExpertService) error
	ListInProgress(ctx context.Context) ([]models.ExpertService, error)
}

// TransactionRepository reads and flags the owning transaction.
type TransactionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
}

// PaymentProvider covers the two provider calls this workflow makes:
// charging the verification fee and capturing the held purchase funds.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error)
	CaptureIntent(ctx context.Context, intentID string) error
}

// SettingsProvider resolves the verification fee.
type SettingsProvider interface {
	Premium(ctx context.Context) settings.PremiumPricing
}

// EventApplier settles the purchase transaction after the buyer
// confirms delivery, through the same transition table webhooks use.
type EventApplier interface {
	Process(ctx context.Context, event webhook.Event) error
}

// RequestResult is returned to the buyer to pay the verification fee.
type RequestResult struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	PriceCents      int64  `json:"priceCents"`
}

// VerificationInput is the operator's inspection report.
type VerificationInput struct {
	Passed           bool     `json:"passed"`
	Notes            string   `json:"notes"`
	Photos           []string `json:"photos"`
	IssueDescription string   `json:"issueDescription"`
}

// StatusView is the party-scoped read model. Verification notes and
// photos are shown to the buyer only.
type StatusView struct {
	ID                   uint       `json:"id"`
	TransactionID        uint       `json:"transactionId"`
	Status               string     `json:"status"`
	Price                string     `json:"price"`
	SellerTrackingNumber *string    `json:"sellerTrackingNumber,omitempty"`
	BuyerTrackingNumber  *string    `json:"buyerTrackingNumber,omitempty"`
	ReceivedAt           *time.Time `json:"receivedAt,omitempty"`
	VerifiedAt           *time.Time `json:"verifiedAt,omitempty"`
	VerificationPassed   *bool      `json:"verificationPassed,omitempty"`
	VerificationNotes    *string    `json:"verificationNotes,omitempty"`
	VerificationPhotos   []string   `json:"verificationPhotos,omitempty"`
	IssueDescription     *string    `json:"issueDescription,omitempty"`
	DeliveredToBuyerAt   *time.Time `json:"deliveredToBuyerAt,omitempty"`
}

// Service implements the verification workflow.
type Service struct {
	repo         Repository
	transactions TransactionRepository
	provider     PaymentProvider
	settings     SettingsProvider
	events       EventApplier
	notifier     notification.Dispatcher
	log          *logrus.Entry
}

// NewService wires the expert verification service.
func NewService(
	repo Repository,
	transactions TransactionRepository,
	provider PaymentProvider,
	settingsProvider SettingsProvider,
	events EventApplier,
	notifier notification.Dispatcher,
) *Service {
	return &Service{
		repo:         repo,
		transactions: transactions,
		provider:     provider,
		settings:     settingsProvider,
		events:       events,
		notifier:     notifier,
		log:          logrus.WithField("component", "expert"),
	}
}

// RequestService lets the buyer add verification to an in-flight
// purchase after checkout. It charges the fee as a standalone payment;
// the workflow starts when that payment settles.
func (s *Service) RequestService(ctx context.Context, buyerID, transactionID uint) (*RequestResult, error) {
	tx, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if tx.Status != models.TransactionStatusPending && tx.Status != models.TransactionStatusProcessing {
		return nil, ErrNotEligible
	}
	if _, err := s.repo.GetByTransactionID(ctx, transactionID); err == nil {
		return nil, ErrAlreadyRequested
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("expert lookup: %w", err)
	}

	premium := s.settings.Premium(ctx)
	intent, err := s.provider.CreateIntent(ctx, payment.IntentParams{
		AmountCents: premium.ExpertCents,
		Currency:    "eur",
		Metadata: map[string]string{
			"type":           webhook.PremiumTypeExpert,
			"transaction_id": strconv.FormatUint(uint64(transactionID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	svc := &models.ExpertService{
		TransactionID:   transactionID,
		Price:           commission.FromCents(premium.ExpertCents),
		PaymentIntentID: intent.ID,
		Status:          models.ExpertStatusPending,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("creating expert service: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"buyer_id":       buyerID,
	}).Info("expert verification requested")

	return &RequestResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PriceCents:      premium.ExpertCents,
	}, nil
}

// Activate starts the workflow once the standalone fee payment settles.
// Safe to call more than once for the same intent.
func (s *Service) Activate(ctx context.Context, intentID string) error {
	svc, err := s.repo.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithField("intent_id", intentID).Warn("no expert service for intent")
			return nil
		}
		return fmt.Errorf("expert lookup: %w", err)
	}
	return s.activate(ctx, svc)
}

// ActivateForTransaction starts the workflow for an add-on bought at
// checkout, once the purchase payment is authorized.
func (s *Service) ActivateForTransaction(ctx context.Context, transactionID uint) error {
	svc, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithField("transaction_id", transactionID).Warn("no expert service for transaction")
			return nil
		}
		return fmt.Errorf("expert lookup: %w", err)
	}
	return s.activate(ctx, svc)
}

func (s *Service) activate(ctx context.Context, svc *models.ExpertService) error {
	if svc.Status != models.ExpertStatusPending {
		return nil
	}
	svc.Status = models.ExpertStatusAwaitingShipment
	if err := s.repo.Update(ctx, svc); err != nil {
		return fmt.Errorf("activating expert service: %w", err)
	}

	tx, err := s.transactions.GetByID(ctx, svc.TransactionID)
	if err != nil {
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if !tx.HasExpert {
		tx.HasExpert = true
		if err := s.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("flagging transaction: %w", err)
		}
	}

	s.notifier.Dispatch(ctx,
		notification.Intent{
			UserID:  tx.SellerID,
			Title:   "Expert verification requested",
			Message: "The buyer chose expert verification. Please ship the item to Gearted for inspection.",
			Type:    models.NotificationTypeShippingUpdate,
			Data:    map[string]interface{}{"expertServiceId": svc.ID},
		},
		notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Expert verification active",
			Message: "Your item will be inspected by our experts before it reaches you.",
			Type:    models.NotificationTypeSuccess,
			Data:    map[string]interface{}{"expertServiceId": svc.ID},
		},
	)

	s.log.WithField("expert_service_id", svc.ID).Info("expert verification activated")
	return nil
}

// SetSellerTracking records the seller's shipment toward the platform.
func (s *Service) SetSellerTracking(ctx context.Context, sellerID, serviceID uint, trackingNumber string) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if tx.SellerID != sellerID {
		return nil, ErrNotSeller
	}
	if svc.Status != models.ExpertStatusAwaitingShipment {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	svc.Status = models.ExpertStatusInTransitToUs
	svc.SellerTrackingNumber = &trackingNumber
	svc.SellerShippedAt = &now
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.BuyerID,
		Title:   "Item on its way to verification",
		Message: fmt.Sprintf("The seller shipped your item to our experts (tracking %s).", trackingNumber),
		Type:    models.NotificationTypeShippingUpdate,
		Data:    map[string]interface{}{"expertServiceId": svc.ID, "trackingNumber": trackingNumber},
	})
	return svc, nil
}

// MarkReceived records platform receipt of the item.
func (s *Service) MarkReceived(ctx context.Context, serviceID uint) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Status != models.ExpertStatusInTransitToUs {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	svc.Status = models.ExpertStatusReceived
	svc.ReceivedAt = &now
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	s.notifier.Dispatch(ctx,
		notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Item received by Gearted",
			Message: "Your item has arrived at our verification center. Inspection starts shortly.",
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"expertServiceId": svc.ID},
		},
		notification.Intent{
			UserID:  tx.SellerID,
			Title:   "Item received by Gearted",
			Message: "We received your shipment. Our experts will inspect it shortly.",
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"expertServiceId": svc.ID},
		},
	)
	return svc, nil
}

// StartVerification moves a received item onto the inspection bench.
func (s *Service) StartVerification(ctx context.Context, serviceID uint) (*models.ExpertService, error) {
	svc, _, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Status != models.ExpertStatusReceived {
		return nil, ErrInvalidStatus
	}
	svc.Status = models.ExpertStatusUnderVerification
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}
	return svc, nil
}

// SubmitVerification records the inspection result. Accepted from
// RECEIVED_BY_GEARTED directly so operators are not forced through the
// explicit start step.
func (s *Service) SubmitVerification(ctx context.Context, adminID, serviceID uint, in VerificationInput) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Status != models.ExpertStatusReceived && svc.Status != models.ExpertStatusUnderVerification {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	svc.VerifiedAt = &now
	svc.VerifiedBy = &adminID
	passed := in.Passed
	svc.VerificationPassed = &passed
	if in.Notes != "" {
		svc.VerificationNotes = &in.Notes
	}
	svc.VerificationPhotos = models.StringList(in.Photos)

	if in.Passed {
		svc.Status = models.ExpertStatusVerified
	} else {
		svc.Status = models.ExpertStatusIssueDetected
		if in.IssueDescription != "" {
			svc.IssueDescription = &in.IssueDescription
		}
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	if in.Passed {
		s.notifier.Dispatch(ctx, notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Item verified!",
			Message: "Our experts verified your item. It will be shipped to you shortly.",
			Type:    models.NotificationTypeSuccess,
			Data:    map[string]interface{}{"expertServiceId": svc.ID},
		})
	} else {
		s.notifier.Dispatch(ctx,
			notification.Intent{
				UserID:  tx.BuyerID,
				Title:   "Issue detected during verification",
				Message: "Our experts found an issue with the item. Our team will contact you about the next steps.",
				Type:    models.NotificationTypeWarning,
				Data:    map[string]interface{}{"expertServiceId": svc.ID},
			},
			notification.Intent{
				UserID:  tx.SellerID,
				Title:   "Issue detected during verification",
				Message: "Our experts found an issue with the item you sold. Our team will contact you.",
				Type:    models.NotificationTypeWarning,
				Data:    map[string]interface{}{"expertServiceId": svc.ID},
			},
		)
	}

	s.log.WithFields(logrus.Fields{
		"expert_service_id": svc.ID,
		"passed":            in.Passed,
	}).Info("verification submitted")
	return svc, nil
}

// SetBuyerTracking records the shipment from the platform to the buyer.
func (s *Service) SetBuyerTracking(ctx context.Context, serviceID uint, trackingNumber string) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Status != models.ExpertStatusVerified {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	svc.Status = models.ExpertStatusInTransitToBuyer
	svc.BuyerTrackingNumber = &trackingNumber
	svc.ShippedToBuyerAt = &now
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.BuyerID,
		Title:   "Verified item shipped",
		Message: fmt.Sprintf("Your verified item is on its way (tracking %s).", trackingNumber),
		Type:    models.NotificationTypeShippingUpdate,
		Data:    map[string]interface{}{"expertServiceId": svc.ID, "trackingNumber": trackingNumber},
	})
	return svc, nil
}

// MarkDelivered records carrier delivery to the buyer.
func (s *Service) MarkDelivered(ctx context.Context, serviceID uint) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Status != models.ExpertStatusInTransitToBuyer {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	svc.Status = models.ExpertStatusDelivered
	svc.DeliveredToBuyerAt = &now
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.BuyerID,
		Title:   "Item delivered",
		Message: "Your item was delivered. Please confirm reception to release the funds to the seller.",
		Type:    models.NotificationTypeInfo,
		Data:    map[string]interface{}{"expertServiceId": svc.ID},
	})
	return svc, nil
}

// ConfirmDelivery is the buyer's final confirmation. It completes the
// workflow and releases the held purchase funds; nothing else ever
// settles an expert purchase.
func (s *Service) ConfirmDelivery(ctx context.Context, buyerID, serviceID uint) (*models.ExpertService, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if tx.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if svc.Status != models.ExpertStatusDelivered {
		return nil, ErrInvalidStatus
	}

	if tx.Status != models.TransactionStatusSucceeded {
		if err := s.provider.CaptureIntent(ctx, tx.PaymentIntentID); err != nil {
			return nil, err
		}
		ev := webhook.Event{Kind: webhook.EventPaymentSucceeded, IntentID: tx.PaymentIntentID}
		if err := s.events.Process(ctx, ev); err != nil {
			return nil, fmt.Errorf("settling transaction: %w", err)
		}
	}

	svc.Status = models.ExpertStatusCompleted
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("updating expert service: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.SellerID,
		Title:   "Delivery confirmed",
		Message: "The buyer confirmed delivery. Your funds have been released.",
		Type:    models.NotificationTypePaymentUpdate,
		Data:    map[string]interface{}{"expertServiceId": svc.ID},
	})

	s.log.WithFields(logrus.Fields{
		"expert_service_id": svc.ID,
		"transaction_id":    tx.ID,
	}).Info("expert verification completed, funds released")
	return svc, nil
}

// Status returns the party-scoped view of a workflow.
func (s *Service) Status(ctx context.Context, requesterID, serviceID uint) (*StatusView, error) {
	svc, tx, err := s.load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if requesterID != tx.BuyerID && requesterID != tx.SellerID {
		return nil, ErrNotParty
	}

	view := &StatusView{
		ID:                   svc.ID,
		TransactionID:        svc.TransactionID,
		Status:               svc.Status,
		Price:                svc.Price.StringFixed(2),
		SellerTrackingNumber: svc.SellerTrackingNumber,
		BuyerTrackingNumber:  svc.BuyerTrackingNumber,
		ReceivedAt:           svc.ReceivedAt,
		VerifiedAt:           svc.VerifiedAt,
		DeliveredToBuyerAt:   svc.DeliveredToBuyerAt,
	}
	if requesterID == tx.BuyerID {
		view.VerificationPassed = svc.VerificationPassed
		view.VerificationNotes = svc.VerificationNotes
		view.VerificationPhotos = svc.VerificationPhotos
		view.IssueDescription = svc.IssueDescription
	}
	return view, nil
}

// Pending lists workflows an operator still has to act on.
func (s *Service) Pending(ctx context.Context) ([]models.ExpertService, error) {
	return s.repo.ListInProgress(ctx)
}

func (s *Service) load(ctx context.Context, serviceID uint) (*models.ExpertService, *models.Transaction, error) {
	svc, err := s.repo.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrServiceNotFound
		}
		return nil, nil, fmt.Errorf("expert lookup: %w", err)
	}
	tx, err := s.transactions.GetByID(ctx, svc.TransactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction lookup: %w", err)
	}
	return svc, tx, nil
}

func (s *Service) getTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	return tx, nil
}
