// Package protection sells dispute coverage on a purchase and handles
// the claim lifecycle. Coverage expires a fixed window after creation;
// the sweep that enforces it is idempotent.
package protection

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

// DefaultCoverageWindow is how long after creation an ACTIVE protection
// stays claimable before the sweep expires it.
const DefaultCoverageWindow = 30 * 24 * time.Hour

// Repository persists protections.
type Repository interface {
	Create(ctx context.Context, p *models.TransactionProtection) error
	GetByID(ctx context.Context, id uint) (*models.TransactionProtection, error)
	GetByTransactionID(ctx context.Context, transactionID uint) (*models.TransactionProtection, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.TransactionProtection, error)
	Update(ctx context.Context, p *models.TransactionProtection) error
	ExpireCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TransactionRepository reads and flags the owning transaction.
type TransactionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
}

// PaymentProvider charges the coverage fee.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error)
}

// SettingsProvider resolves the coverage price.
type SettingsProvider interface {
	Premium(ctx context.Context) settings.PremiumPricing
}

// PaymentResult is returned to the buyer to pay the coverage fee.
type PaymentResult struct {
	ProtectionID    uint   `json:"protectionId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	PriceCents      int64  `json:"priceCents"`
}

// ClaimInput is the buyer's dispute report.
type ClaimInput struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ResolutionInput is the operator's claim verdict.
type ResolutionInput struct {
	Resolution  string `json:"resolution"`
	RefundCents *int64 `json:"refundCents"`
}

// Service implements the protection lifecycle.
type Service struct {
	repo           Repository
	transactions   TransactionRepository
	provider       PaymentProvider
	settings       SettingsProvider
	notifier       notification.Dispatcher
	coverageWindow time.Duration
	log            *logrus.Entry
}

// NewService wires the protection service with the default coverage
// window.
func NewService(
	repo Repository,
	transactions TransactionRepository,
	provider PaymentProvider,
	settingsProvider SettingsProvider,
	notifier notification.Dispatcher,
) *Service {
	return &Service{
		repo:           repo,
		transactions:   transactions,
		provider:       provider,
		settings:       settingsProvider,
		notifier:       notifier,
		coverageWindow: DefaultCoverageWindow,
		log:            logrus.WithField("component", "protection"),
	}
}

// WithCoverageWindow overrides how long coverage stays claimable.
func (s *Service) WithCoverageWindow(w time.Duration) *Service {
	s.coverageWindow = w
	return s
}

// Add lets the buyer purchase coverage on an existing transaction after
// checkout. Coverage activates when the fee payment settles.
func (s *Service) Add(ctx context.Context, buyerID, transactionID uint) (*PaymentResult, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if tx.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if _, err := s.repo.GetByTransactionID(ctx, transactionID); err == nil {
		return nil, ErrAlreadyProtected
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("protection lookup: %w", err)
	}

	premium := s.settings.Premium(ctx)
	intent, err := s.provider.CreateIntent(ctx, payment.IntentParams{
		AmountCents: premium.ProtectionCents,
		Currency:    "eur",
		Metadata: map[string]string{
			"type":           webhook.PremiumTypeProtection,
			"transaction_id": strconv.FormatUint(uint64(transactionID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	p := &models.TransactionProtection{
		TransactionID:   transactionID,
		Price:           commission.FromCents(premium.ProtectionCents),
		PaymentIntentID: intent.ID,
		Status:          models.ProtectionStatusPending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating protection: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"protection_id":  p.ID,
		"transaction_id": transactionID,
	}).Info("protection payment created")

	return &PaymentResult{
		ProtectionID:    p.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PriceCents:      premium.ProtectionCents,
	}, nil
}

// Activate starts coverage once the standalone fee payment settles.
// Safe to call more than once.
func (s *Service) Activate(ctx context.Context, intentID string) error {
	p, err := s.repo.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithField("intent_id", intentID).Warn("no protection for intent")
			return nil
		}
		return fmt.Errorf("protection lookup: %w", err)
	}
	return s.activate(ctx, p)
}

// ActivateForTransaction starts coverage bought at checkout, once the
// purchase payment settles.
func (s *Service) ActivateForTransaction(ctx context.Context, transactionID uint) error {
	p, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithField("transaction_id", transactionID).Warn("no protection for transaction")
			return nil
		}
		return fmt.Errorf("protection lookup: %w", err)
	}
	return s.activate(ctx, p)
}

func (s *Service) activate(ctx context.Context, p *models.TransactionProtection) error {
	if p.Status != models.ProtectionStatusPending {
		return nil
	}
	p.Status = models.ProtectionStatusActive
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("activating protection: %w", err)
	}

	tx, err := s.transactions.GetByID(ctx, p.TransactionID)
	if err != nil {
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if !tx.HasProtection {
		tx.HasProtection = true
		if err := s.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("flagging transaction: %w", err)
		}
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.BuyerID,
		Title:   "Purchase protection active",
		Message: "Your purchase is covered. You can open a claim if something goes wrong.",
		Type:    models.NotificationTypeSuccess,
		Data:    map[string]interface{}{"protectionId": p.ID},
	})

	s.log.WithField("protection_id", p.ID).Info("protection activated")
	return nil
}

// OpenClaim files a dispute on active coverage.
func (s *Service) OpenClaim(ctx context.Context, buyerID, transactionID uint, in ClaimInput) (*models.TransactionProtection, error) {
	p, tx, err := s.loadByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if p.Status != models.ProtectionStatusActive {
		return nil, ErrNotActive
	}

	now := time.Now()
	p.Status = models.ProtectionStatusClaimOpened
	p.ClaimReason = &in.Reason
	if in.Description != "" {
		p.ClaimDescription = &in.Description
	}
	p.ClaimOpenedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("opening claim: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.SellerID,
		Title:   "A claim was opened",
		Message: "The buyer opened a protection claim on your sale. Our team will review it.",
		Type:    models.NotificationTypeWarning,
		Data:    map[string]interface{}{"protectionId": p.ID, "transactionId": tx.ID},
	})

	s.log.WithFields(logrus.Fields{
		"protection_id": p.ID,
		"reason":        in.Reason,
	}).Info("claim opened")
	return p, nil
}

// ResolveClaim records the operator's verdict, with an optional refund
// amount. The refund itself is executed through the payment service.
func (s *Service) ResolveClaim(ctx context.Context, protectionID uint, in ResolutionInput) (*models.TransactionProtection, error) {
	p, err := s.repo.GetByID(ctx, protectionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProtectionNotFound
		}
		return nil, fmt.Errorf("protection lookup: %w", err)
	}
	if p.Status != models.ProtectionStatusClaimOpened {
		return nil, ErrNoOpenClaim
	}

	now := time.Now()
	p.Status = models.ProtectionStatusClaimResolved
	p.ClaimResolution = &in.Resolution
	p.ClaimResolvedAt = &now
	if in.RefundCents != nil {
		amount := commission.FromCents(*in.RefundCents)
		p.RefundAmount = &amount
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("resolving claim: %w", err)
	}

	tx, err := s.transactions.GetByID(ctx, p.TransactionID)
	if err == nil {
		msg := "Your claim has been resolved."
		if p.RefundAmount != nil {
			msg = fmt.Sprintf("Your claim has been resolved. A refund of %s EUR is on its way.", p.RefundAmount.StringFixed(2))
		}
		s.notifier.Dispatch(ctx, notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Claim resolved",
			Message: msg,
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"protectionId": p.ID},
		})
	}

	s.log.WithField("protection_id", p.ID).Info("claim resolved")
	return p, nil
}

// Status returns the coverage for a transaction, visible to both
// parties. A nil protection means none was purchased.
func (s *Service) Status(ctx context.Context, requesterID, transactionID uint) (*models.TransactionProtection, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if requesterID != tx.BuyerID && requesterID != tx.SellerID {
		return nil, ErrNotParty
	}

	p, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ExpireOld expires ACTIVE coverage older than the coverage window.
func (s *Service) ExpireOld(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.coverageWindow)
	n, err := s.repo.ExpireCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring protections: %w", err)
	}
	if n > 0 {
		s.log.WithField("count", n).Info("expired protections")
	}
	return n, nil
}

func (s *Service) loadByTransaction(ctx context.Context, transactionID uint) (*models.TransactionProtection, *models.Transaction, error) {
	p, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrProtectionNotFound
		}
		return nil, nil, fmt.Errorf("protection lookup: %w", err)
	}
	tx, err := s.transactions.GetByID(ctx, p.TransactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction lookup: %w", err)
	}
	return p, tx, nil
}
