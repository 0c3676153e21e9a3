// Package settings loads platform configuration with explicit, testable
// fallbacks. Every read goes through the cache first, then Postgres, then
// the documented defaults.
package settings

import (
	"context"
	"encoding/json"
	"time"

	"gearted/internal/models"
	"gearted/internal/services/commission"

	"github.com/sirupsen/logrus"
)

const cacheTTL = time.Minute

// Repository is the persistence dependency.
type Repository interface {
	Get(ctx context.Context, key string) (*models.PlatformSettings, error)
}

// Cache is the optional read-through cache dependency.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// PremiumPricing holds add-on prices in cents.
type PremiumPricing struct {
	Boost24HCents   int64 `json:"boost24hCents"`
	Boost7DCents    int64 `json:"boost7dCents"`
	ProtectionCents int64 `json:"protectionCents"`
	ExpertCents     int64 `json:"expertCents"`
	ProtectionDays  int   `json:"protectionDays"`
}

// Service resolves platform settings.
type Service struct {
	repo  Repository
	cache Cache
	log   *logrus.Entry
}

// NewService creates a settings service. cache may be nil.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   logrus.WithField("component", "settings"),
	}
}

// DefaultCommissions are the hardcoded fallback commission parameters:
// 5% on each side with a 0.50 EUR minimum.
func DefaultCommissions() commission.Settings {
	return commission.Settings{
		BuyerEnabled:   true,
		BuyerPercent:   5,
		BuyerMinCents:  50,
		SellerEnabled:  true,
		SellerPercent:  5,
		SellerMinCents: 50,
	}
}

// DefaultPremiumPricing is the hardcoded fallback add-on price list.
func DefaultPremiumPricing() PremiumPricing {
	return PremiumPricing{
		Boost24HCents:   199,
		Boost7DCents:    499,
		ProtectionCents: 399,
		ExpertCents:     1990,
		ProtectionDays:  14,
	}
}

// commissionsDoc is the stored JSON shape for the "commissions" key.
// Percentages and minimums are stored in major units to stay readable in
// the admin tooling.
type commissionsDoc struct {
	BuyerEnabled     *bool    `json:"buyerEnabled"`
	BuyerFeePercent  *float64 `json:"buyerFeePercent"`
	BuyerFeeMin      *float64 `json:"buyerFeeMin"`
	SellerEnabled    *bool    `json:"sellerEnabled"`
	SellerFeePercent *float64 `json:"sellerFeePercent"`
	SellerFeeMin     *float64 `json:"sellerFeeMin"`
}

// Commissions returns the commission parameters in effect. Missing rows
// and lookup failures fall back to DefaultCommissions.
func (s *Service) Commissions(ctx context.Context) commission.Settings {
	out := DefaultCommissions()

	raw, ok := s.load(ctx, models.SettingsKeyCommissions)
	if !ok {
		return out
	}

	var doc commissionsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.log.WithError(err).Warn("malformed commissions settings, using defaults")
		return out
	}

	if doc.BuyerEnabled != nil {
		out.BuyerEnabled = *doc.BuyerEnabled
	}
	if doc.BuyerFeePercent != nil {
		out.BuyerPercent = *doc.BuyerFeePercent
	}
	if doc.BuyerFeeMin != nil {
		out.BuyerMinCents = toCents(*doc.BuyerFeeMin)
	}
	if doc.SellerEnabled != nil {
		out.SellerEnabled = *doc.SellerEnabled
	}
	if doc.SellerFeePercent != nil {
		out.SellerPercent = *doc.SellerFeePercent
	}
	if doc.SellerFeeMin != nil {
		out.SellerMinCents = toCents(*doc.SellerFeeMin)
	}
	return out
}

type premiumDoc struct {
	Boost24H   *float64 `json:"boost24h"`
	Boost7D    *float64 `json:"boost7d"`
	Protection *float64 `json:"protection"`
	Expert     *float64 `json:"expert"`
	Days       *int     `json:"protectionDays"`
}

// Premium returns the add-on price list, falling back per field to
// DefaultPremiumPricing.
func (s *Service) Premium(ctx context.Context) PremiumPricing {
	out := DefaultPremiumPricing()

	raw, ok := s.load(ctx, models.SettingsKeyPremium)
	if !ok {
		return out
	}

	var doc premiumDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.log.WithError(err).Warn("malformed premium pricing settings, using defaults")
		return out
	}

	if doc.Boost24H != nil {
		out.Boost24HCents = toCents(*doc.Boost24H)
	}
	if doc.Boost7D != nil {
		out.Boost7DCents = toCents(*doc.Boost7D)
	}
	if doc.Protection != nil {
		out.ProtectionCents = toCents(*doc.Protection)
	}
	if doc.Expert != nil {
		out.ExpertCents = toCents(*doc.Expert)
	}
	if doc.Days != nil {
		out.ProtectionDays = *doc.Days
	}
	return out
}

// load returns the raw JSON value for a key, consulting the cache first.
// The second result is false when the key is unset or unreadable.
func (s *Service) load(ctx context.Context, key string) ([]byte, bool) {
	cacheKey := "settings:" + key

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			return []byte(cached), true
		}
	}

	row, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	raw, err := json.Marshal(row.Value)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("unreadable settings row")
		return nil, false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, string(raw), cacheTTL); err != nil {
			s.log.WithError(err).Debug("settings cache write failed")
		}
	}
	return raw, true
}

func toCents(major float64) int64 {
	return int64(major*100 + 0.5)
}
