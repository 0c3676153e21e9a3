package payment

import (
	"context"

	"gearted/internal/models"
	"gearted/internal/services/commission"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"
)

// Provider abstracts the payment provider. The shipped implementation
// wraps Stripe; tests substitute a mock.
type Provider interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*IntentState, error)
	CaptureIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID, reason string) error

	CreateAccount(ctx context.Context, userID uint, email string) (string, error)
	OnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error)
	DashboardLink(ctx context.Context, accountID string) (string, error)
	AccountStatus(ctx context.Context, accountID string) (*AccountState, error)
}

// IntentParams describe a charge authorization request.
type IntentParams struct {
	AmountCents         int64
	Currency            string
	ManualCapture       bool
	ApplicationFeeCents int64
	DestinationAccount  string
	Metadata            map[string]string
}

// Intent is a created charge authorization.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentState is the provider-side view of an intent.
type IntentState struct {
	Status         string
	FailureMessage string
}

// AccountState is the provider-side view of a connected account.
type AccountState struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// TransactionRepository persists purchase transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Transaction, error)
}

// ProductRepository reads the listing being purchased.
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
}

// UserRepository reads fee exemption flags.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// PayoutAccountRepository resolves seller destination routing.
type PayoutAccountRepository interface {
	Create(ctx context.Context, account *models.SellerPayoutAccount) error
	GetByUserID(ctx context.Context, userID uint) (*models.SellerPayoutAccount, error)
	Update(ctx context.Context, account *models.SellerPayoutAccount) error
}

// ExpertRepository creates the pending expert workflow row when the
// buyer opts in at checkout.
type ExpertRepository interface {
	Create(ctx context.Context, svc *models.ExpertService) error
}

// ProtectionRepository creates the pending coverage row when the buyer
// opts in at checkout.
type ProtectionRepository interface {
	Create(ctx context.Context, p *models.TransactionProtection) error
}

// SettingsProvider resolves commission parameters and add-on prices.
type SettingsProvider interface {
	Commissions(ctx context.Context) commission.Settings
	Premium(ctx context.Context) settings.PremiumPricing
}

// EventApplier applies a provider event to the transaction state
// machine. The manual confirm path reuses the webhook transitions so the
// two paths can never disagree.
type EventApplier interface {
	Process(ctx context.Context, event webhook.Event) error
}
