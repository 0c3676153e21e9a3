// Package boost sells time-boxed visibility promotions for listings.
// A boost is always paid standalone; its payment never touches the
// purchase transaction state machine.
package boost

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

// Boost durations by type.
const (
	duration24H = 24 * time.Hour
	duration7D  = 7 * 24 * time.Hour
)

// Repository persists boosts.
type Repository interface {
	Create(ctx context.Context, boost *models.ProductBoost) error
	GetByID(ctx context.Context, id uint) (*models.ProductBoost, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ProductBoost, error)
	ActiveForProduct(ctx context.Context, productID uint, now time.Time) (*models.ProductBoost, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ProductBoost, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]models.ProductBoost, error)
	Update(ctx context.Context, boost *models.ProductBoost) error
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// ProductRepository reads the listing being boosted.
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
}

// PaymentProvider charges the boost fee.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error)
}

// SettingsProvider resolves boost prices.
type SettingsProvider interface {
	Premium(ctx context.Context) settings.PremiumPricing
}

// PaymentResult is returned to the client to pay the boost fee.
type PaymentResult struct {
	BoostID         uint   `json:"boostId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	PriceCents      int64  `json:"priceCents"`
}

// Service implements the boost lifecycle.
type Service struct {
	repo     Repository
	products ProductRepository
	provider PaymentProvider
	settings SettingsProvider
	notifier notification.Dispatcher
	log      *logrus.Entry
}

// NewService wires the boost service.
func NewService(
	repo Repository,
	products ProductRepository,
	provider PaymentProvider,
	settingsProvider SettingsProvider,
	notifier notification.Dispatcher,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		provider: provider,
		settings: settingsProvider,
		notifier: notifier,
		log:      logrus.WithField("component", "boost"),
	}
}

// CreatePayment validates the boost request and charges the fee. The
// boost stays PENDING until the payment settles.
func (s *Service) CreatePayment(ctx context.Context, userID, productID uint, boostType string) (*PaymentResult, error) {
	priceCents, err := s.priceFor(ctx, boostType)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	if product.SellerID != userID {
		return nil, ErrNotOwner
	}
	if product.Status != models.ProductStatusActive {
		return nil, ErrProductNotActive
	}
	if _, err := s.repo.ActiveForProduct(ctx, productID, time.Now()); err == nil {
		return nil, ErrAlreadyBoosted
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("boost lookup: %w", err)
	}

	intent, err := s.provider.CreateIntent(ctx, payment.IntentParams{
		AmountCents: priceCents,
		Currency:    "eur",
		Metadata: map[string]string{
			"type":       webhook.PremiumTypeBoost,
			"product_id": strconv.FormatUint(uint64(productID), 10),
			"boost_type": boostType,
		},
	})
	if err != nil {
		return nil, err
	}

	b := &models.ProductBoost{
		ProductID:       productID,
		UserID:          userID,
		BoostType:       boostType,
		Price:           commission.FromCents(priceCents),
		PaymentIntentID: intent.ID,
		Status:          models.BoostStatusPending,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("creating boost: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"boost_id":   b.ID,
		"product_id": productID,
		"boost_type": boostType,
	}).Info("boost payment created")

	return &PaymentResult{
		BoostID:         b.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PriceCents:      priceCents,
	}, nil
}

// Activate starts the boost window once the payment settles. The window
// is anchored to activation time, not purchase time, so a slow payment
// never eats into the boost. Safe to call more than once.
func (s *Service) Activate(ctx context.Context, intentID string) error {
	b, err := s.repo.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithField("intent_id", intentID).Warn("no boost for intent")
			return nil
		}
		return fmt.Errorf("boost lookup: %w", err)
	}
	if b.Status != models.BoostStatusPending {
		return nil
	}

	now := time.Now()
	b.Status = models.BoostStatusActive
	b.StartsAt = now
	b.EndsAt = now.Add(durationFor(b.BoostType))
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("activating boost: %w", err)
	}

	s.notifier.Dispatch(ctx, notification.Intent{
		UserID:  b.UserID,
		Title:   "Boost activated!",
		Message: fmt.Sprintf("Your listing is boosted until %s.", b.EndsAt.Format("02/01/2006 15:04")),
		Type:    models.NotificationTypeSuccess,
		Data:    map[string]interface{}{"boostId": b.ID, "productId": b.ProductID},
	})

	s.log.WithFields(logrus.Fields{
		"boost_id": b.ID,
		"ends_at":  b.EndsAt,
	}).Info("boost activated")
	return nil
}

// Cancel withdraws a boost whose payment has not settled yet.
func (s *Service) Cancel(ctx context.Context, userID, boostID uint) error {
	b, err := s.repo.GetByID(ctx, boostID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrBoostNotFound
		}
		return fmt.Errorf("boost lookup: %w", err)
	}
	if b.UserID != userID {
		return ErrNotOwner
	}
	if b.Status != models.BoostStatusPending {
		return ErrNotCancellable
	}

	b.Status = models.BoostStatusCancelled
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("cancelling boost: %w", err)
	}
	return nil
}

// ActiveForProduct returns the product's current boost, or nil.
func (s *Service) ActiveForProduct(ctx context.Context, productID uint) (*models.ProductBoost, error) {
	b, err := s.repo.ActiveForProduct(ctx, productID, time.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// UserBoosts lists a user's boosts, newest first.
func (s *Service) UserBoosts(ctx context.Context, userID uint) ([]models.ProductBoost, error) {
	return s.repo.ListByUser(ctx, userID)
}

// BoostedProducts lists currently boosted listings for the storefront.
func (s *Service) BoostedProducts(ctx context.Context, limit int) ([]models.ProductBoost, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListActive(ctx, time.Now(), limit)
}

// ExpireOld flips boosts whose window has passed. The sweep is a plain
// guarded update so running it twice is harmless.
func (s *Service) ExpireOld(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("expiring boosts: %w", err)
	}
	if n > 0 {
		s.log.WithField("count", n).Info("expired boosts")
	}
	return n, nil
}

func (s *Service) priceFor(ctx context.Context, boostType string) (int64, error) {
	premium := s.settings.Premium(ctx)
	switch boostType {
	case models.BoostType24H:
		return premium.Boost24HCents, nil
	case models.BoostType7D:
		return premium.Boost7DCents, nil
	}
	return 0, ErrInvalidBoostType
}

func durationFor(boostType string) time.Duration {
	if boostType == models.BoostType7D {
		return duration7D
	}
	return duration24H
}
