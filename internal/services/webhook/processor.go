package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/commission"
	"gearted/internal/services/notification"

	"github.com/sirupsen/logrus"
)

// scheduledDeletionDelay is how long after a sale the listing becomes
// eligible for cleanup by the external deletion job.
const scheduledDeletionDelay = 72 * time.Hour

// TransactionRepository is the transaction persistence dependency.
type TransactionRepository interface {
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
}

// ProductRepository flips listing status with a guard on the prior
// status, so racing transitions for the same product serialize.
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) (bool, error)
	TransitionSale(ctx context.Context, id, transactionID uint, to string, extra map[string]interface{}) (bool, error)
}

// PayoutAccountRepository syncs connected-account capability flags.
type PayoutAccountRepository interface {
	GetByProviderAccountID(ctx context.Context, providerAccountID string) (*models.SellerPayoutAccount, error)
	Update(ctx context.Context, account *models.SellerPayoutAccount) error
}

// BoostActivator activates a boost once its payment settles.
type BoostActivator interface {
	Activate(ctx context.Context, intentID string) error
}

// ProtectionActivator activates coverage once its payment settles.
type ProtectionActivator interface {
	Activate(ctx context.Context, intentID string) error
	ActivateForTransaction(ctx context.Context, transactionID uint) error
}

// ExpertActivator activates the expert workflow once its payment settles.
type ExpertActivator interface {
	Activate(ctx context.Context, intentID string) error
	ActivateForTransaction(ctx context.Context, transactionID uint) error
}

// Processor applies provider events to the transaction state machine.
type Processor struct {
	transactions TransactionRepository
	products     ProductRepository
	payouts      PayoutAccountRepository
	boosts       BoostActivator
	protections  ProtectionActivator
	experts      ExpertActivator
	notifier     notification.Dispatcher
	log          *logrus.Entry
}

// NewProcessor creates a webhook processor.
func NewProcessor(
	transactions TransactionRepository,
	products ProductRepository,
	payouts PayoutAccountRepository,
	boosts BoostActivator,
	protections ProtectionActivator,
	experts ExpertActivator,
	notifier notification.Dispatcher,
) *Processor {
	return &Processor{
		transactions: transactions,
		products:     products,
		payouts:      payouts,
		boosts:       boosts,
		protections:  protections,
		experts:      experts,
		notifier:     notifier,
		log:          logrus.WithField("component", "webhook"),
	}
}

// SetExpertActivator injects the expert workflow after construction.
// The expert service settles transactions through this processor, so
// the two are wired in two steps.
func (p *Processor) SetExpertActivator(a ExpertActivator) {
	p.experts = a
}

type handlerFunc func(*Processor, context.Context, Event) error

// handlers is the dispatch table. Events without an entry are
// acknowledged untouched.
var handlers = map[EventKind]handlerFunc{
	EventPaymentSucceeded:  (*Processor).handleSucceeded,
	EventPaymentAuthorized: (*Processor).handleAuthorized,
	EventPaymentProcessing: (*Processor).handleStatusOnly,
	EventPaymentFailed:     (*Processor).handleFailed,
	EventPaymentCanceled:   (*Processor).handleCanceled,
	EventChargeRefunded:    (*Processor).handleRefunded,
	EventAccountUpdated:    (*Processor).handleAccountUpdated,
}

// Process routes one event. A nil return means the event was handled or
// deliberately ignored; only unexpected infrastructure failures surface
// as errors, and even those must be acknowledged to the provider once
// the event parsed (see the webhook handler).
func (p *Processor) Process(ctx context.Context, ev Event) error {
	h, ok := handlers[ev.Kind]
	if !ok {
		p.log.WithField("kind", ev.Kind).Debug("ignoring unhandled event")
		return nil
	}
	return h(p, ctx, ev)
}

// lookup resolves the transaction for an event and decides whether the
// transition applies. A nil transaction with nil error means the event
// is a no-op (unknown intent, duplicate delivery, or illegal move).
func (p *Processor) lookup(ctx context.Context, ev Event) (*models.Transaction, string, error) {
	tx, err := p.transactions.GetByPaymentIntentID(ctx, ev.IntentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			p.log.WithField("intent_id", ev.IntentID).Warn("no transaction for intent, acknowledging")
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("transaction lookup: %w", err)
	}

	if tx.Status == targetOf(ev.Kind) {
		p.log.WithFields(logrus.Fields{
			"intent_id": ev.IntentID,
			"status":    tx.Status,
		}).Debug("duplicate delivery, already applied")
		return nil, "", nil
	}

	target, ok := transition(tx.Status, ev.Kind)
	if !ok {
		p.log.WithFields(logrus.Fields{
			"intent_id": ev.IntentID,
			"status":    tx.Status,
			"kind":      ev.Kind,
		}).Info("illegal transition, acknowledging without mutation")
		return nil, "", nil
	}
	return tx, target, nil
}

func (p *Processor) handleSucceeded(ctx context.Context, ev Event) error {
	// Standalone add-on payments settle their manager and stop: a boost
	// has no transaction row at all, and post-checkout protection/expert
	// purchases must not touch the purchase transaction keyed elsewhere.
	switch ev.PremiumType {
	case PremiumTypeBoost:
		return p.boosts.Activate(ctx, ev.IntentID)
	case PremiumTypeProtection:
		return p.protections.Activate(ctx, ev.IntentID)
	case PremiumTypeExpert:
		return p.experts.Activate(ctx, ev.IntentID)
	}

	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}

	// Premium options bundled into the purchase intent activate first.
	if ev.WantExpertise || tx.HasExpert {
		if err := p.experts.ActivateForTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("expert activation: %w", err)
		}
	}
	if ev.WantInsurance || tx.HasProtection {
		if err := p.protections.ActivateForTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("protection activation: %w", err)
		}
	}

	now := time.Now()
	sold, err := p.products.TransitionStatus(ctx, tx.ProductID,
		models.ProductStatusActive, models.ProductStatusSold,
		map[string]interface{}{
			"sold_transaction_id":   tx.ID,
			"sold_at":               now,
			"payment_completed_at":  now,
			"scheduled_deletion_at": now.Add(scheduledDeletionDelay),
		})
	if err != nil {
		return fmt.Errorf("marking product sold: %w", err)
	}
	if !sold {
		// Held purchases already reserved the listing at authorization;
		// stamp the completion fields on the SOLD row instead.
		stamped, err := p.products.TransitionSale(ctx, tx.ProductID, tx.ID,
			models.ProductStatusSold,
			map[string]interface{}{
				"payment_completed_at":  now,
				"scheduled_deletion_at": now.Add(scheduledDeletionDelay),
			})
		if err != nil {
			return fmt.Errorf("stamping product sale: %w", err)
		}
		if !stamped {
			p.log.WithFields(logrus.Fields{
				"product_id":     tx.ProductID,
				"transaction_id": tx.ID,
			}).Warn("product not reserved by this purchase when sale settled")
		}
	}

	tx.Status = target
	if tx.Metadata == nil {
		tx.Metadata = models.JSON{}
	}
	tx.Metadata["paymentCompletedAt"] = now.Format(time.RFC3339)
	if err := p.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	title := p.productTitle(ctx, tx.ProductID)
	p.notifier.Dispatch(ctx,
		notification.Intent{
			UserID:  tx.SellerID,
			Title:   "Sale confirmed!",
			Message: fmt.Sprintf("%q has been sold. You will receive %s EUR.", title, tx.SellerAmount.StringFixed(2)),
			Type:    models.NotificationTypePaymentUpdate,
			Data:    map[string]interface{}{"transactionId": tx.ID, "amount": tx.SellerAmount.StringFixed(2)},
		},
		notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Payment confirmed",
			Message: fmt.Sprintf("Your payment of %s EUR for %q is confirmed. The seller will now ship the item.", tx.TotalPaid.StringFixed(2), title),
			Type:    models.NotificationTypeSuccess,
			Data:    map[string]interface{}{"transactionId": tx.ID},
		},
	)

	p.log.WithFields(logrus.Fields{
		"intent_id":      ev.IntentID,
		"transaction_id": tx.ID,
		"product_id":     tx.ProductID,
	}).Info("payment succeeded")
	return nil
}

// handleAuthorized fires when a manual-capture purchase is authorized.
// The item is taken off the market and opted-in add-ons start, but the
// charge stays held until the buyer confirms delivery.
func (p *Processor) handleAuthorized(ctx context.Context, ev Event) error {
	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}

	if ev.WantExpertise || tx.HasExpert {
		if err := p.experts.ActivateForTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("expert activation: %w", err)
		}
	}
	if ev.WantInsurance || tx.HasProtection {
		if err := p.protections.ActivateForTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("protection activation: %w", err)
		}
	}

	reserved, err := p.products.TransitionStatus(ctx, tx.ProductID,
		models.ProductStatusActive, models.ProductStatusSold,
		map[string]interface{}{
			"sold_transaction_id": tx.ID,
			"sold_at":             time.Now(),
		})
	if err != nil {
		return fmt.Errorf("reserving product: %w", err)
	}
	if !reserved {
		// Another purchase took the listing first. The hold still exists
		// on the provider side; flag the transaction for support.
		if tx.Metadata == nil {
			tx.Metadata = models.JSON{}
		}
		tx.Metadata["reservationConflict"] = true
		p.log.WithFields(logrus.Fields{
			"intent_id":      ev.IntentID,
			"transaction_id": tx.ID,
			"product_id":     tx.ProductID,
		}).Warn("listing already reserved by another purchase")
	}

	tx.Status = target
	if err := p.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"intent_id":      ev.IntentID,
		"transaction_id": tx.ID,
	}).Info("payment authorized, funds held")
	return nil
}

// handleStatusOnly applies transitions that carry no side effects
// beyond the status itself (PENDING -> PROCESSING).
func (p *Processor) handleStatusOnly(ctx context.Context, ev Event) error {
	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}
	tx.Status = target
	return p.transactions.Update(ctx, tx)
}

func (p *Processor) handleFailed(ctx context.Context, ev Event) error {
	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}

	if err := p.revertProduct(ctx, tx); err != nil {
		return err
	}

	tx.Status = target
	if tx.Metadata == nil {
		tx.Metadata = models.JSON{}
	}
	tx.Metadata["failureReason"] = ev.FailureMessage
	if err := p.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	p.notifier.Dispatch(ctx, notification.Intent{
		UserID:  tx.BuyerID,
		Title:   "Payment failed",
		Message: "Your payment could not be processed. Please try again or use another payment method.",
		Type:    models.NotificationTypeError,
		Data:    map[string]interface{}{"transactionId": tx.ID},
	})

	p.log.WithFields(logrus.Fields{
		"intent_id": ev.IntentID,
		"reason":    ev.FailureMessage,
	}).Info("payment failed")
	return nil
}

func (p *Processor) handleCanceled(ctx context.Context, ev Event) error {
	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}

	if err := p.revertProduct(ctx, tx); err != nil {
		return err
	}

	tx.Status = target
	if err := p.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	title := p.productTitle(ctx, tx.ProductID)
	p.notifier.Dispatch(ctx,
		notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Payment cancelled",
			Message: fmt.Sprintf("Your payment for %q was cancelled.", title),
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"transactionId": tx.ID},
		},
		notification.Intent{
			UserID:  tx.SellerID,
			Title:   "Sale cancelled",
			Message: fmt.Sprintf("The payment for %q was cancelled. Your listing is active again.", title),
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"transactionId": tx.ID},
		},
	)

	p.log.WithField("intent_id", ev.IntentID).Info("payment cancelled")
	return nil
}

func (p *Processor) handleRefunded(ctx context.Context, ev Event) error {
	tx, target, err := p.lookup(ctx, ev)
	if err != nil || tx == nil {
		return err
	}

	if err := p.revertProduct(ctx, tx); err != nil {
		return err
	}

	refunded := commission.FromCents(ev.RefundedCents)
	tx.Status = target
	if tx.Metadata == nil {
		tx.Metadata = models.JSON{}
	}
	tx.Metadata["refundedAt"] = time.Now().Format(time.RFC3339)
	tx.Metadata["refundAmount"] = refunded.StringFixed(2)
	if err := p.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	title := p.productTitle(ctx, tx.ProductID)
	p.notifier.Dispatch(ctx,
		notification.Intent{
			UserID:  tx.BuyerID,
			Title:   "Refund processed",
			Message: fmt.Sprintf("Your payment for %q has been refunded (%s EUR).", title, refunded.StringFixed(2)),
			Type:    models.NotificationTypeSuccess,
			Data:    map[string]interface{}{"transactionId": tx.ID, "refundAmount": refunded.StringFixed(2)},
		},
		notification.Intent{
			UserID:  tx.SellerID,
			Title:   "Transaction refunded",
			Message: fmt.Sprintf("The sale of %q was refunded. Your listing is active again.", title),
			Type:    models.NotificationTypeInfo,
			Data:    map[string]interface{}{"transactionId": tx.ID},
		},
	)

	p.log.WithFields(logrus.Fields{
		"intent_id": ev.IntentID,
		"amount":    refunded.StringFixed(2),
	}).Info("payment refunded")
	return nil
}

func (p *Processor) handleAccountUpdated(ctx context.Context, ev Event) error {
	if ev.Account == nil {
		return nil
	}

	account, err := p.payouts.GetByProviderAccountID(ctx, ev.Account.ProviderAccountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("payout account lookup: %w", err)
	}

	wasComplete := account.OnboardingComplete
	account.ChargesEnabled = ev.Account.ChargesEnabled
	account.PayoutsEnabled = ev.Account.PayoutsEnabled
	account.DetailsSubmitted = ev.Account.DetailsSubmitted
	account.OnboardingComplete = ev.Account.ChargesEnabled && ev.Account.PayoutsEnabled
	if err := p.payouts.Update(ctx, account); err != nil {
		return fmt.Errorf("updating payout account: %w", err)
	}

	if !wasComplete && account.OnboardingComplete {
		p.notifier.Dispatch(ctx, notification.Intent{
			UserID:  account.UserID,
			Title:   "Payout account activated",
			Message: "Your payout account is now active. You can receive payments!",
			Type:    models.NotificationTypeSuccess,
		})
	}
	return nil
}

// revertProduct puts a sold listing back on sale and clears the
// sale-completion stamps. No-op when this transaction never took the
// listing, so a competing buyer's failure cannot undo a settled sale.
func (p *Processor) revertProduct(ctx context.Context, tx *models.Transaction) error {
	_, err := p.products.TransitionSale(ctx, tx.ProductID, tx.ID,
		models.ProductStatusActive,
		map[string]interface{}{
			"sold_transaction_id":   nil,
			"sold_at":               nil,
			"payment_completed_at":  nil,
			"scheduled_deletion_at": nil,
		})
	if err != nil {
		return fmt.Errorf("reverting product: %w", err)
	}
	return nil
}

func (p *Processor) productTitle(ctx context.Context, productID uint) string {
	product, err := p.products.GetByID(ctx, productID)
	if err != nil {
		return "your item"
	}
	return product.Title
}
