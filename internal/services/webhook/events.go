// Package webhook turns provider notifications into transaction state
// transitions. Events arrive at least once and in any order; every
// handler is idempotent keyed on the payment intent id.
package webhook

import (
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v72"
)

// EventKind tags the provider event union.
type EventKind string

// Recognized event kinds.
const (
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentAuthorized EventKind = "payment_authorized"
	EventPaymentProcessing EventKind = "payment_processing"
	EventPaymentFailed     EventKind = "payment_failed"
	EventPaymentCanceled   EventKind = "payment_canceled"
	EventChargeRefunded    EventKind = "charge_refunded"
	EventAccountUpdated    EventKind = "account_updated"
	EventUnhandled         EventKind = "unhandled"
)

// Premium markers carried in intent metadata. A purchase intent may
// additionally flag opted-in add-ons; boost, protection and expert
// markers identify standalone add-on payments.
const (
	PremiumTypePurchase   = "purchase"
	PremiumTypeBoost      = "boost"
	PremiumTypeProtection = "protection"
	PremiumTypeExpert     = "expert"
)

// Event is the parsed, provider-agnostic form of a webhook notification.
type Event struct {
	Kind           EventKind
	IntentID       string
	PremiumType    string
	WantExpertise  bool
	WantInsurance  bool
	FailureMessage string
	RefundedCents  int64
	Account        *AccountUpdate
}

// AccountUpdate carries connected-account capability changes.
type AccountUpdate struct {
	ProviderAccountID string
	ChargesEnabled    bool
	PayoutsEnabled    bool
	DetailsSubmitted  bool
}

// ParseEvent maps a verified Stripe event onto the internal union.
// Unknown event types come back as EventUnhandled, never as an error:
// the provider must still receive a success acknowledgment for them.
func ParseEvent(ev stripe.Event) (Event, error) {
	switch ev.Type {
	case "payment_intent.succeeded":
		pi, err := parseIntent(ev)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Kind:          EventPaymentSucceeded,
			IntentID:      pi.ID,
			PremiumType:   pi.Metadata["type"],
			WantExpertise: pi.Metadata["want_expertise"] == "true",
			WantInsurance: pi.Metadata["want_insurance"] == "true",
		}, nil

	case "payment_intent.amount_capturable_updated":
		// Fired when a manual-capture intent is authorized. Funds are
		// held but not taken; capture happens when the buyer confirms
		// delivery after expert verification.
		pi, err := parseIntent(ev)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Kind:          EventPaymentAuthorized,
			IntentID:      pi.ID,
			PremiumType:   pi.Metadata["type"],
			WantExpertise: pi.Metadata["want_expertise"] == "true",
			WantInsurance: pi.Metadata["want_insurance"] == "true",
		}, nil

	case "payment_intent.processing":
		pi, err := parseIntent(ev)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventPaymentProcessing, IntentID: pi.ID}, nil

	case "payment_intent.payment_failed":
		pi, err := parseIntent(ev)
		if err != nil {
			return Event{}, err
		}
		msg := "unknown error"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return Event{Kind: EventPaymentFailed, IntentID: pi.ID, FailureMessage: msg}, nil

	case "payment_intent.canceled":
		pi, err := parseIntent(ev)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventPaymentCanceled, IntentID: pi.ID}, nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &charge); err != nil {
			return Event{}, fmt.Errorf("malformed charge payload: %w", err)
		}
		if charge.PaymentIntent == nil {
			return Event{Kind: EventUnhandled}, nil
		}
		return Event{
			Kind:          EventChargeRefunded,
			IntentID:      charge.PaymentIntent.ID,
			RefundedCents: charge.AmountRefunded,
		}, nil

	case "account.updated":
		var account stripe.Account
		if err := json.Unmarshal(ev.Data.Raw, &account); err != nil {
			return Event{}, fmt.Errorf("malformed account payload: %w", err)
		}
		return Event{
			Kind: EventAccountUpdated,
			Account: &AccountUpdate{
				ProviderAccountID: account.ID,
				ChargesEnabled:    account.ChargesEnabled,
				PayoutsEnabled:    account.PayoutsEnabled,
				DetailsSubmitted:  account.DetailsSubmitted,
			},
		}, nil
	}

	return Event{Kind: EventUnhandled}, nil
}

func parseIntent(ev stripe.Event) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("malformed payment intent payload: %w", err)
	}
	return &pi, nil
}
