package payment

import (
	"context"
	"testing"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/commission"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Intent), args.Error(1)
}

func (m *MockProvider) GetIntent(ctx context.Context, intentID string) (*IntentState, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IntentState), args.Error(1)
}

func (m *MockProvider) CaptureIntent(ctx context.Context, intentID string) error {
	return m.Called(ctx, intentID).Error(0)
}

func (m *MockProvider) Refund(ctx context.Context, intentID, reason string) error {
	return m.Called(ctx, intentID, reason).Error(0)
}

func (m *MockProvider) CreateAccount(ctx context.Context, userID uint, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) OnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error) {
	args := m.Called(ctx, accountID, returnURL, refreshURL)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) DashboardLink(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) AccountStatus(ctx context.Context, accountID string) (*AccountState, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccountState), args.Error(1)
}

type stubTransactionRepo struct {
	created []*models.Transaction
}

func (s *stubTransactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	tx.ID = uint(len(s.created) + 1)
	s.created = append(s.created, tx)
	return nil
}

func (s *stubTransactionRepo) GetByPaymentIntentID(_ context.Context, intentID string) (*models.Transaction, error) {
	for _, tx := range s.created {
		if tx.PaymentIntentID == intentID {
			return tx, nil
		}
	}
	return nil, repositories.ErrNotFound
}

type stubProductRepo struct {
	product *models.Product
}

func (s *stubProductRepo) GetByID(_ context.Context, id uint) (*models.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, repositories.ErrNotFound
	}
	return s.product, nil
}

type stubUserRepo struct {
	users map[uint]*models.User
}

func (s *stubUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

type stubPayoutRepo struct {
	byUser map[uint]*models.SellerPayoutAccount
}

func (s *stubPayoutRepo) Create(_ context.Context, a *models.SellerPayoutAccount) error {
	s.byUser[a.UserID] = a
	return nil
}

func (s *stubPayoutRepo) GetByUserID(_ context.Context, userID uint) (*models.SellerPayoutAccount, error) {
	a, ok := s.byUser[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return a, nil
}

func (s *stubPayoutRepo) Update(_ context.Context, a *models.SellerPayoutAccount) error {
	s.byUser[a.UserID] = a
	return nil
}

type stubExpertRepo struct {
	created []*models.ExpertService
}

func (s *stubExpertRepo) Create(_ context.Context, svc *models.ExpertService) error {
	s.created = append(s.created, svc)
	return nil
}

type stubProtectionRepo struct {
	created []*models.TransactionProtection
}

func (s *stubProtectionRepo) Create(_ context.Context, p *models.TransactionProtection) error {
	s.created = append(s.created, p)
	return nil
}

type stubSettings struct{}

func (stubSettings) Commissions(context.Context) commission.Settings {
	return settings.DefaultCommissions()
}

func (stubSettings) Premium(context.Context) settings.PremiumPricing {
	return settings.DefaultPremiumPricing()
}

type stubApplier struct {
	events []webhook.Event
}

func (s *stubApplier) Process(_ context.Context, ev webhook.Event) error {
	s.events = append(s.events, ev)
	return nil
}

type serviceFixture struct {
	service     *Service
	provider    *MockProvider
	txRepo      *stubTransactionRepo
	productRepo *stubProductRepo
	payoutRepo  *stubPayoutRepo
	expertRepo  *stubExpertRepo
	protRepo    *stubProtectionRepo
	applier     *stubApplier
}

func newServiceFixture(product *models.Product) *serviceFixture {
	f := &serviceFixture{
		provider:    new(MockProvider),
		txRepo:      &stubTransactionRepo{},
		productRepo: &stubProductRepo{product: product},
		payoutRepo:  &stubPayoutRepo{byUser: map[uint]*models.SellerPayoutAccount{}},
		expertRepo:  &stubExpertRepo{},
		protRepo:    &stubProtectionRepo{},
		applier:     &stubApplier{},
	}
	users := &stubUserRepo{users: map[uint]*models.User{
		2: {ID: 2, Email: "buyer@example.com"},
		3: {ID: 3, Email: "seller@example.com"},
	}}
	f.service = NewService(
		f.provider, f.txRepo, f.productRepo, users, f.payoutRepo,
		f.expertRepo, f.protRepo, stubSettings{}, f.applier,
	)
	return f
}

func listedProduct() *models.Product {
	return &models.Product{
		ID:       10,
		Title:    "AEG rifle",
		SellerID: 3,
		Price:    decimal.New(10000, -2),
		Status:   models.ProductStatusActive,
	}
}

func TestCreatePurchaseIntent(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&Intent{ID: "pi_1", ClientSecret: "cs_1"}, nil)

	result, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10})
	require.NoError(t, err)

	assert.Equal(t, "pi_1", result.PaymentIntentID)
	assert.Equal(t, "cs_1", result.ClientSecret)
	assert.NotEmpty(t, result.Reference)

	// 100 EUR at 5%/5%: buyer pays 105, seller nets 95, platform keeps 10.
	assert.Equal(t, int64(500), result.Breakdown.BuyerFeeCents)
	assert.Equal(t, int64(500), result.Breakdown.SellerFeeCents)
	assert.Equal(t, int64(9500), result.Breakdown.SellerAmountCents)
	assert.Equal(t, int64(10500), result.Breakdown.TotalChargeCents)

	require.Len(t, f.txRepo.created, 1)
	tx := f.txRepo.created[0]
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, "pi_1", tx.PaymentIntentID)
	assert.Equal(t, "105", tx.TotalPaid.String())
	assert.Equal(t, "95", tx.SellerAmount.String())
	assert.Equal(t, "5", tx.BuyerFeePercent.String())
	assert.False(t, tx.HasExpert)
	assert.Empty(t, f.expertRepo.created)
	assert.Empty(t, f.protRepo.created)

	// No payout account: the platform takes the charge itself.
	params := f.provider.Calls[0].Arguments.Get(1).(IntentParams)
	assert.Empty(t, params.DestinationAccount)
	assert.Zero(t, params.ApplicationFeeCents)
	assert.False(t, params.ManualCapture)
	assert.Equal(t, webhook.PremiumTypePurchase, params.Metadata["type"])
}

func TestCreatePurchaseIntentRejectsSelfPurchase(t *testing.T) {
	f := newServiceFixture(listedProduct())

	_, err := f.service.CreatePurchaseIntent(context.Background(), 3, IntentRequest{ProductID: 10})
	assert.ErrorIs(t, err, ErrSelfPurchase)
	f.provider.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestCreatePurchaseIntentRejectsSoldProduct(t *testing.T) {
	product := listedProduct()
	product.Status = models.ProductStatusSold
	f := newServiceFixture(product)

	_, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10})
	assert.ErrorIs(t, err, ErrProductSold)
}

func TestCreatePurchaseIntentRejectsMissingProduct(t *testing.T) {
	f := newServiceFixture(nil)

	_, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreatePurchaseIntentRejectsAmountMismatch(t *testing.T) {
	f := newServiceFixture(listedProduct())

	_, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10, AmountCents: 9999})
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestCreatePurchaseIntentRoutesToSeller(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.payoutRepo.byUser[3] = &models.SellerPayoutAccount{
		UserID:            3,
		ProviderAccountID: "acct_seller",
		ChargesEnabled:    true,
	}
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&Intent{ID: "pi_1", ClientSecret: "cs_1"}, nil)

	_, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10})
	require.NoError(t, err)

	params := f.provider.Calls[0].Arguments.Get(1).(IntentParams)
	assert.Equal(t, "acct_seller", params.DestinationAccount)
	assert.Equal(t, int64(1000), params.ApplicationFeeCents)
}

func TestCreatePurchaseIntentSkipsUnverifiedSellerAccount(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.payoutRepo.byUser[3] = &models.SellerPayoutAccount{
		UserID:            3,
		ProviderAccountID: "acct_seller",
		ChargesEnabled:    false,
	}
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&Intent{ID: "pi_1", ClientSecret: "cs_1"}, nil)

	_, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{ProductID: 10})
	require.NoError(t, err)

	params := f.provider.Calls[0].Arguments.Get(1).(IntentParams)
	assert.Empty(t, params.DestinationAccount)
}

func TestCreatePurchaseIntentWithAddOns(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&Intent{ID: "pi_1", ClientSecret: "cs_1"}, nil)

	result, err := f.service.CreatePurchaseIntent(context.Background(), 2, IntentRequest{
		ProductID:         10,
		WantExpertise:     true,
		WantInsurance:     true,
		ShippingCostCents: 650,
	})
	require.NoError(t, err)

	// 19.90 expert + 3.99 protection on top of fees and shipping.
	assert.Equal(t, int64(2389), result.Breakdown.AddOnCents)
	assert.Equal(t, int64(10000+500+2389+650), result.Breakdown.TotalChargeCents)

	tx := f.txRepo.created[0]
	assert.True(t, tx.HasExpert)
	assert.True(t, tx.HasProtection)

	require.Len(t, f.expertRepo.created, 1)
	assert.Equal(t, models.ExpertStatusPending, f.expertRepo.created[0].Status)
	assert.Equal(t, "pi_1", f.expertRepo.created[0].PaymentIntentID)
	require.Len(t, f.protRepo.created, 1)
	assert.Equal(t, models.ProtectionStatusPending, f.protRepo.created[0].Status)

	// Expert purchases hold funds until the buyer confirms delivery.
	params := f.provider.Calls[0].Arguments.Get(1).(IntentParams)
	assert.True(t, params.ManualCapture)
	assert.Equal(t, "true", params.Metadata["want_expertise"])
	assert.Equal(t, "true", params.Metadata["want_insurance"])
}

func TestConfirmPaymentAppliesProviderStatus(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.txRepo.created = append(f.txRepo.created, &models.Transaction{
		ID:              1,
		PaymentIntentID: "pi_1",
		Status:          models.TransactionStatusPending,
	})
	f.provider.On("GetIntent", mock.Anything, "pi_1").Return(&IntentState{Status: "succeeded"}, nil)

	tx, err := f.service.ConfirmPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), tx.ID)

	require.Len(t, f.applier.events, 1)
	assert.Equal(t, webhook.EventPaymentSucceeded, f.applier.events[0].Kind)
	assert.Equal(t, "pi_1", f.applier.events[0].IntentID)
}

func TestConfirmPaymentIgnoresNonTerminalStatus(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.txRepo.created = append(f.txRepo.created, &models.Transaction{
		ID:              1,
		PaymentIntentID: "pi_1",
		Status:          models.TransactionStatusPending,
	})
	f.provider.On("GetIntent", mock.Anything, "pi_1").Return(&IntentState{Status: "requires_action"}, nil)

	_, err := f.service.ConfirmPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Empty(t, f.applier.events)
}

func TestRefundPayment(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.txRepo.created = append(f.txRepo.created, &models.Transaction{
		ID:              1,
		PaymentIntentID: "pi_1",
		Status:          models.TransactionStatusSucceeded,
		TotalPaid:       decimal.New(10500, -2),
	})
	f.provider.On("Refund", mock.Anything, "pi_1", "requested_by_customer").Return(nil)

	_, err := f.service.RefundPayment(context.Background(), "pi_1", "requested_by_customer")
	require.NoError(t, err)

	require.Len(t, f.applier.events, 1)
	assert.Equal(t, webhook.EventChargeRefunded, f.applier.events[0].Kind)
	assert.Equal(t, int64(10500), f.applier.events[0].RefundedCents)
	f.provider.AssertExpectations(t)
}

func TestRefundPaymentRejectsUnsettled(t *testing.T) {
	statuses := []string{
		models.TransactionStatusPending,
		models.TransactionStatusProcessing,
		models.TransactionStatusFailed,
		models.TransactionStatusCancelled,
		models.TransactionStatusRefunded,
	}
	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			f := newServiceFixture(listedProduct())
			f.txRepo.created = append(f.txRepo.created, &models.Transaction{
				ID:              1,
				PaymentIntentID: "pi_1",
				Status:          status,
				TotalPaid:       decimal.New(10500, -2),
			})

			_, err := f.service.RefundPayment(context.Background(), "pi_1", "requested_by_customer")
			assert.ErrorIs(t, err, ErrNotRefundable)

			// No provider call, no state machine event.
			f.provider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.applier.events)
		})
	}
}

func TestRefundPaymentUnknownIntent(t *testing.T) {
	f := newServiceFixture(listedProduct())

	_, err := f.service.RefundPayment(context.Background(), "pi_missing", "")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestEnsurePayoutAccountCreatesOnce(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.provider.On("CreateAccount", mock.Anything, uint(3), "seller@example.com").Return("acct_new", nil).Once()

	account, err := f.service.EnsurePayoutAccount(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "acct_new", account.ProviderAccountID)

	again, err := f.service.EnsurePayoutAccount(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, account.ProviderAccountID, again.ProviderAccountID)
	f.provider.AssertExpectations(t)
}

func TestPayoutStatusSyncsFlags(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.payoutRepo.byUser[3] = &models.SellerPayoutAccount{UserID: 3, ProviderAccountID: "acct_1"}
	f.provider.On("AccountStatus", mock.Anything, "acct_1").Return(&AccountState{
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}, nil)

	account, err := f.service.PayoutStatus(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, account.OnboardingComplete)
}

func TestPayoutStatusWithoutAccount(t *testing.T) {
	f := newServiceFixture(listedProduct())

	_, err := f.service.PayoutStatus(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoPayoutAccount)
}

func TestPayoutDashboardLink(t *testing.T) {
	f := newServiceFixture(listedProduct())
	f.payoutRepo.byUser[3] = &models.SellerPayoutAccount{UserID: 3, ProviderAccountID: "acct_1"}
	f.provider.On("DashboardLink", mock.Anything, "acct_1").Return("https://connect.stripe.com/express/acct_1", nil)

	url, err := f.service.PayoutDashboardLink(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "https://connect.stripe.com/express/acct_1", url)
	f.provider.AssertExpectations(t)
}

func TestPayoutDashboardLinkWithoutAccount(t *testing.T) {
	f := newServiceFixture(listedProduct())

	_, err := f.service.PayoutDashboardLink(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoPayoutAccount)
	f.provider.AssertNotCalled(t, "DashboardLink", mock.Anything, mock.Anything)
}
