package payment

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/account"
	"github.com/stripe/stripe-go/v72/accountlink"
	"github.com/stripe/stripe-go/v72/loginlink"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/refund"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct{}

// NewStripeProvider configures the global Stripe client key and returns
// the provider.
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (sp *StripeProvider) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	p := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(params.AmountCents),
		Currency:           stripe.String(params.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	p.Context = ctx
	if params.ManualCapture {
		p.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	if params.DestinationAccount != "" {
		p.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(params.DestinationAccount),
		}
		if params.ApplicationFeeCents > 0 {
			p.ApplicationFeeAmount = stripe.Int64(params.ApplicationFeeCents)
		}
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (sp *StripeProvider) GetIntent(ctx context.Context, intentID string) (*IntentState, error) {
	p := &stripe.PaymentIntentParams{}
	p.Context = ctx
	pi, err := paymentintent.Get(intentID, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	state := &IntentState{Status: string(pi.Status)}
	if pi.LastPaymentError != nil {
		state.FailureMessage = pi.LastPaymentError.Msg
	}
	return state, nil
}

func (sp *StripeProvider) CaptureIntent(ctx context.Context, intentID string) error {
	p := &stripe.PaymentIntentCaptureParams{}
	p.Context = ctx
	if _, err := paymentintent.Capture(intentID, p); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return nil
}

func (sp *StripeProvider) Refund(ctx context.Context, intentID, reason string) error {
	p := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	p.Context = ctx
	if reason != "" {
		p.Reason = stripe.String(reason)
	}
	if _, err := refund.New(p); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return nil
}

func (sp *StripeProvider) CreateAccount(ctx context.Context, userID uint, email string) (string, error) {
	p := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String("FR"),
		Email:   stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	p.Context = ctx
	p.AddMetadata("user_id", fmt.Sprintf("%d", userID))

	acct, err := account.New(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return acct.ID, nil
}

func (sp *StripeProvider) OnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error) {
	p := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(returnURL),
		RefreshURL: stripe.String(refreshURL),
		Type:       stripe.String("account_onboarding"),
	}
	p.Context = ctx
	link, err := accountlink.New(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return link.URL, nil
}

func (sp *StripeProvider) DashboardLink(ctx context.Context, accountID string) (string, error) {
	p := &stripe.LoginLinkParams{
		Account: stripe.String(accountID),
	}
	p.Context = ctx
	link, err := loginlink.New(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return link.URL, nil
}

func (sp *StripeProvider) AccountStatus(ctx context.Context, accountID string) (*AccountState, error) {
	acct, err := account.GetByID(accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return &AccountState{
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}, nil
}
