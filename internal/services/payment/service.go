package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/commission"
	"gearted/internal/services/webhook"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// IntentRequest is a checkout request for one listing.
type IntentRequest struct {
	ProductID         uint   `json:"productId"`
	AmountCents       int64  `json:"amountCents"`
	Currency          string `json:"currency"`
	ShippingRateID    string `json:"shippingRateId"`
	ShippingCostCents int64  `json:"shippingCostCents"`
	ShippingProvider  string `json:"shippingProvider"`
	WantExpertise     bool   `json:"wantExpertise"`
	WantInsurance     bool   `json:"wantInsurance"`
}

// IntentResult is returned to the client to complete the charge.
type IntentResult struct {
	PaymentIntentID string               `json:"paymentIntentId"`
	ClientSecret    string               `json:"clientSecret"`
	Reference       string               `json:"reference"`
	Breakdown       commission.Breakdown `json:"breakdown"`
}

// Service creates purchase intents, snapshots the fee breakdown onto the
// transaction row, and drives manual confirmation and refunds through
// the same transition table the webhooks use.
type Service struct {
	provider     Provider
	transactions TransactionRepository
	products     ProductRepository
	users        UserRepository
	payouts      PayoutAccountRepository
	experts      ExpertRepository
	protections  ProtectionRepository
	settings     SettingsProvider
	events       EventApplier
	log          *logrus.Entry
}

// NewService wires the payment service.
func NewService(
	provider Provider,
	transactions TransactionRepository,
	products ProductRepository,
	users UserRepository,
	payouts PayoutAccountRepository,
	experts ExpertRepository,
	protections ProtectionRepository,
	settings SettingsProvider,
	events EventApplier,
) *Service {
	return &Service{
		provider:     provider,
		transactions: transactions,
		products:     products,
		users:        users,
		payouts:      payouts,
		experts:      experts,
		protections:  protections,
		settings:     settings,
		events:       events,
		log:          logrus.WithField("component", "payment"),
	}
}

// CreatePurchaseIntent validates the purchase, computes the fee
// breakdown, authorizes the charge with the provider and records the
// PENDING transaction. Expert purchases use manual capture so funds stay
// held until the buyer confirms delivery.
func (s *Service) CreatePurchaseIntent(ctx context.Context, buyerID uint, req IntentRequest) (*IntentResult, error) {
	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	if product.Status != models.ProductStatusActive {
		return nil, ErrProductSold
	}
	if product.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	priceCents := commission.Cents(product.Price)
	if req.AmountCents != 0 && req.AmountCents != priceCents {
		return nil, ErrAmountMismatch
	}

	buyer, err := s.users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("buyer lookup: %w", err)
	}
	seller, err := s.users.GetByID(ctx, product.SellerID)
	if err != nil {
		return nil, fmt.Errorf("seller lookup: %w", err)
	}

	// Snapshot the settings in effect now; a later change must never
	// alter this purchase.
	commSettings := s.settings.Commissions(ctx)
	premium := s.settings.Premium(ctx)

	breakdown := commission.Calculate(commission.Input{
		PriceCents:     priceCents,
		Settings:       commSettings,
		BuyerExempt:    buyer.BuyerFeeExempt,
		SellerExempt:   seller.SellerFeeExempt,
		WantExpertise:  req.WantExpertise,
		ExpertiseCents: premium.ExpertCents,
		WantInsurance:  req.WantInsurance,
		InsuranceCents: premium.ProtectionCents,
		ShippingCents:  req.ShippingCostCents,
	})

	currency := req.Currency
	if currency == "" {
		currency = "eur"
	}
	reference := uuid.NewString()

	params := IntentParams{
		AmountCents:   breakdown.TotalChargeCents,
		Currency:      currency,
		ManualCapture: req.WantExpertise,
		Metadata: map[string]string{
			"type":           webhook.PremiumTypePurchase,
			"reference":      reference,
			"product_id":     strconv.FormatUint(uint64(product.ID), 10),
			"buyer_id":       strconv.FormatUint(uint64(buyerID), 10),
			"seller_id":      strconv.FormatUint(uint64(product.SellerID), 10),
			"want_expertise": strconv.FormatBool(req.WantExpertise),
			"want_insurance": strconv.FormatBool(req.WantInsurance),
		},
	}

	// Route funds straight to the seller when their account can take
	// charges; otherwise the platform holds and settles manually.
	payout, err := s.payouts.GetByUserID(ctx, product.SellerID)
	switch {
	case err == nil && payout.ChargesEnabled:
		params.DestinationAccount = payout.ProviderAccountID
		params.ApplicationFeeCents = breakdown.PlatformFeeCents
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("payout account lookup: %w", err)
	}

	intent, err := s.provider.CreateIntent(ctx, params)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Reference:        reference,
		ProductID:        product.ID,
		BuyerID:          buyerID,
		SellerID:         product.SellerID,
		Amount:           product.Price,
		Currency:         "EUR",
		BuyerFeePercent:  decimalPercent(breakdown.BuyerPercent),
		SellerFeePercent: decimalPercent(breakdown.SellerPercent),
		BuyerFee:         commission.FromCents(breakdown.BuyerFeeCents),
		SellerFee:        commission.FromCents(breakdown.SellerFeeCents),
		PlatformFee:      commission.FromCents(breakdown.PlatformFeeCents),
		SellerAmount:     commission.FromCents(breakdown.SellerAmountCents),
		ShippingCost:     commission.FromCents(req.ShippingCostCents),
		TotalPaid:        commission.FromCents(breakdown.TotalChargeCents),
		Status:           models.TransactionStatusPending,
		PaymentIntentID:  intent.ID,
		HasExpert:        req.WantExpertise,
		HasProtection:    req.WantInsurance,
		Metadata:         models.JSON{},
	}
	if req.ShippingRateID != "" {
		tx.ShippingRateID = &req.ShippingRateID
	}
	if req.ShippingProvider != "" {
		tx.ShippingProvider = &req.ShippingProvider
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	if req.WantExpertise {
		svc := &models.ExpertService{
			TransactionID:   tx.ID,
			Price:           commission.FromCents(premium.ExpertCents),
			PaymentIntentID: intent.ID,
			Status:          models.ExpertStatusPending,
		}
		if err := s.experts.Create(ctx, svc); err != nil {
			return nil, fmt.Errorf("creating expert service: %w", err)
		}
	}
	if req.WantInsurance {
		prot := &models.TransactionProtection{
			TransactionID:   tx.ID,
			Price:           commission.FromCents(premium.ProtectionCents),
			PaymentIntentID: intent.ID,
			Status:          models.ProtectionStatusPending,
		}
		if err := s.protections.Create(ctx, prot); err != nil {
			return nil, fmt.Errorf("creating protection: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"product_id":     product.ID,
		"buyer_id":       buyerID,
		"total_cents":    breakdown.TotalChargeCents,
		"destination":    params.DestinationAccount != "",
	}).Info("purchase intent created")

	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Reference:       reference,
		Breakdown:       breakdown,
	}, nil
}

// ConfirmPayment polls the provider for the intent's current status and
// applies it through the shared transition table, then returns the
// transaction as stored. Webhooks normally arrive first; this path
// exists for clients that cannot wait for them.
func (s *Service) ConfirmPayment(ctx context.Context, intentID string) (*models.Transaction, error) {
	state, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if ev, ok := eventForStatus(intentID, state); ok {
		if err := s.events.Process(ctx, ev); err != nil {
			return nil, fmt.Errorf("applying status: %w", err)
		}
	}

	tx, err := s.transactions.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	return tx, nil
}

// RefundPayment refunds a settled transaction with the provider and
// applies the refund transition immediately. The provider's own
// charge.refunded webhook then lands as a recognized duplicate.
func (s *Service) RefundPayment(ctx context.Context, intentID, reason string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}

	// Only settled money can come back. Anything else either has no
	// charge to refund or must go through cancellation instead.
	if tx.Status != models.TransactionStatusSucceeded {
		return nil, ErrNotRefundable
	}

	if err := s.provider.Refund(ctx, intentID, reason); err != nil {
		return nil, err
	}

	ev := webhook.Event{
		Kind:          webhook.EventChargeRefunded,
		IntentID:      intentID,
		RefundedCents: commission.Cents(tx.TotalPaid),
	}
	if err := s.events.Process(ctx, ev); err != nil {
		return nil, fmt.Errorf("applying refund: %w", err)
	}

	return s.transactions.GetByPaymentIntentID(ctx, intentID)
}

// GetTransaction returns a transaction by its provider intent id.
func (s *Service) GetTransaction(ctx context.Context, intentID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return tx, nil
}

// eventForStatus maps a polled provider status onto the event union.
// Statuses with no transition meaning (requires_action and friends)
// report false.
func eventForStatus(intentID string, state *IntentState) (webhook.Event, bool) {
	switch state.Status {
	case "succeeded":
		return webhook.Event{Kind: webhook.EventPaymentSucceeded, IntentID: intentID}, true
	case "processing":
		return webhook.Event{Kind: webhook.EventPaymentProcessing, IntentID: intentID}, true
	case "canceled":
		return webhook.Event{Kind: webhook.EventPaymentCanceled, IntentID: intentID}, true
	case "requires_payment_method":
		if state.FailureMessage != "" {
			return webhook.Event{
				Kind:           webhook.EventPaymentFailed,
				IntentID:       intentID,
				FailureMessage: state.FailureMessage,
			}, true
		}
	}
	return webhook.Event{}, false
}

func decimalPercent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p)
}
