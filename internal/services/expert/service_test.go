package expert

import (
	"context"
	"testing"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/commission"
	"gearted/internal/services/notification"
	"gearted/internal/services/payment"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	services map[uint]*models.ExpertService
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{services: map[uint]*models.ExpertService{}, nextID: 1}
}

func (f *fakeRepo) Create(_ context.Context, svc *models.ExpertService) error {
	svc.ID = f.nextID
	f.nextID++
	f.services[svc.ID] = svc
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uint) (*models.ExpertService, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return svc, nil
}

func (f *fakeRepo) GetByTransactionID(_ context.Context, transactionID uint) (*models.ExpertService, error) {
	for _, svc := range f.services {
		if svc.TransactionID == transactionID {
			return svc, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRepo) GetByPaymentIntentID(_ context.Context, intentID string) (*models.ExpertService, error) {
	for _, svc := range f.services {
		if svc.PaymentIntentID == intentID {
			return svc, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, svc *models.ExpertService) error {
	f.services[svc.ID] = svc
	return nil
}

func (f *fakeRepo) ListInProgress(_ context.Context) ([]models.ExpertService, error) {
	var out []models.ExpertService
	for _, svc := range f.services {
		switch svc.Status {
		case models.ExpertStatusAwaitingShipment, models.ExpertStatusInTransitToUs,
			models.ExpertStatusReceived, models.ExpertStatusUnderVerification,
			models.ExpertStatusVerified, models.ExpertStatusInTransitToBuyer:
			out = append(out, *svc)
		}
	}
	return out, nil
}

type fakeTxRepo struct {
	transactions map[uint]*models.Transaction
}

func (f *fakeTxRepo) GetByID(_ context.Context, id uint) (*models.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return tx, nil
}

func (f *fakeTxRepo) Update(_ context.Context, tx *models.Transaction) error {
	f.transactions[tx.ID] = tx
	return nil
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockProvider) CaptureIntent(ctx context.Context, intentID string) error {
	return m.Called(ctx, intentID).Error(0)
}

type stubSettings struct{}

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

type nopNotifier struct {
	intents []notification.Intent
}

func (n *nopNotifier) Dispatch(_ context.Context, intents ...notification.Intent) {
	n.intents = append(n.intents, intents...)
}

type expertFixture struct {
	service  *Service
	repo     *fakeRepo
	txRepo   *fakeTxRepo
	provider *mockProvider
	applier  *stubApplier
	notifier *nopNotifier
}

func newExpertFixture(tx *models.Transaction) *expertFixture {
	f := &expertFixture{
		repo:     newFakeRepo(),
		txRepo:   &fakeTxRepo{transactions: map[uint]*models.Transaction{}},
		provider: new(mockProvider),
		applier:  &stubApplier{},
		notifier: &nopNotifier{},
	}
	if tx != nil {
		f.txRepo.transactions[tx.ID] = tx
	}
	f.service = NewService(f.repo, f.txRepo, f.provider, stubSettings{}, f.applier, f.notifier)
	return f
}

func processingTransaction() *models.Transaction {
	return &models.Transaction{
		ID:              1,
		PaymentIntentID: "pi_purchase",
		ProductID:       10,
		BuyerID:         2,
		SellerID:        3,
		Status:          models.TransactionStatusProcessing,
	}
}

// seed creates a workflow row in the given status.
func (f *expertFixture) seed(status string) *models.ExpertService {
	svc := &models.ExpertService{
		TransactionID:   1,
		Price:           commission.FromCents(1990),
		PaymentIntentID: "pi_expert",
		Status:          status,
	}
	_ = f.repo.Create(context.Background(), svc)
	return svc
}

func TestRequestService(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&payment.Intent{ID: "pi_expert", ClientSecret: "cs"}, nil)

	result, err := f.service.RequestService(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1990), result.PriceCents)
	assert.Equal(t, "pi_expert", result.PaymentIntentID)

	params := f.provider.Calls[0].Arguments.Get(1).(payment.IntentParams)
	assert.Equal(t, webhook.PremiumTypeExpert, params.Metadata["type"])
	assert.Equal(t, int64(1990), params.AmountCents)

	svc, err := f.repo.GetByPaymentIntentID(context.Background(), "pi_expert")
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusPending, svc.Status)
}

func TestRequestServiceGuards(t *testing.T) {
	t.Run("wrong buyer", func(t *testing.T) {
		f := newExpertFixture(processingTransaction())
		_, err := f.service.RequestService(context.Background(), 99, 1)
		assert.ErrorIs(t, err, ErrNotBuyer)
	})

	t.Run("settled transaction", func(t *testing.T) {
		tx := processingTransaction()
		tx.Status = models.TransactionStatusSucceeded
		f := newExpertFixture(tx)
		_, err := f.service.RequestService(context.Background(), 2, 1)
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("duplicate request", func(t *testing.T) {
		f := newExpertFixture(processingTransaction())
		f.seed(models.ExpertStatusPending)
		_, err := f.service.RequestService(context.Background(), 2, 1)
		assert.ErrorIs(t, err, ErrAlreadyRequested)
	})

	t.Run("missing transaction", func(t *testing.T) {
		f := newExpertFixture(nil)
		_, err := f.service.RequestService(context.Background(), 2, 1)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestActivateIsIdempotent(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusPending)

	require.NoError(t, f.service.Activate(context.Background(), "pi_expert"))
	assert.Equal(t, models.ExpertStatusAwaitingShipment, svc.Status)
	assert.True(t, f.txRepo.transactions[1].HasExpert)
	notified := len(f.notifier.intents)

	require.NoError(t, f.service.Activate(context.Background(), "pi_expert"))
	assert.Equal(t, models.ExpertStatusAwaitingShipment, svc.Status)
	assert.Len(t, f.notifier.intents, notified)
}

func TestActivateUnknownIntentIsNoop(t *testing.T) {
	f := newExpertFixture(nil)
	assert.NoError(t, f.service.Activate(context.Background(), "pi_unknown"))
}

func TestWorkflowHappyPath(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusPending)
	f.provider.On("CaptureIntent", mock.Anything, "pi_purchase").Return(nil)

	require.NoError(t, f.service.ActivateForTransaction(context.Background(), 1))
	assert.Equal(t, models.ExpertStatusAwaitingShipment, svc.Status)

	_, err := f.service.SetSellerTracking(context.Background(), 3, svc.ID, "TRACK-IN")
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusInTransitToUs, svc.Status)

	_, err = f.service.MarkReceived(context.Background(), svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusReceived, svc.Status)

	_, err = f.service.StartVerification(context.Background(), svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusUnderVerification, svc.Status)

	_, err = f.service.SubmitVerification(context.Background(), 99, svc.ID, VerificationInput{
		Passed: true,
		Notes:  "authentic, good condition",
		Photos: []string{"photo1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusVerified, svc.Status)
	require.NotNil(t, svc.VerificationPassed)
	assert.True(t, *svc.VerificationPassed)

	_, err = f.service.SetBuyerTracking(context.Background(), svc.ID, "TRACK-OUT")
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusInTransitToBuyer, svc.Status)

	_, err = f.service.MarkDelivered(context.Background(), svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusDelivered, svc.Status)

	_, err = f.service.ConfirmDelivery(context.Background(), 2, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusCompleted, svc.Status)

	// Confirmation captured the held funds and settled the transaction.
	f.provider.AssertExpectations(t)
	require.Len(t, f.applier.events, 1)
	assert.Equal(t, webhook.EventPaymentSucceeded, f.applier.events[0].Kind)
	assert.Equal(t, "pi_purchase", f.applier.events[0].IntentID)
}

func TestSubmitVerificationStraightFromReceived(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusReceived)

	_, err := f.service.SubmitVerification(context.Background(), 99, svc.ID, VerificationInput{
		Passed:           false,
		IssueDescription: "missing magazine",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusIssueDetected, svc.Status)
	require.NotNil(t, svc.IssueDescription)
	assert.Equal(t, "missing magazine", *svc.IssueDescription)
}

func TestWorkflowOnlyMovesForward(t *testing.T) {
	tests := []struct {
		name string
		from string
		call func(*Service, uint) error
	}{
		{"tracking before activation", models.ExpertStatusPending, func(s *Service, id uint) error {
			_, err := s.SetSellerTracking(context.Background(), 3, id, "T")
			return err
		}},
		{"receive before shipment", models.ExpertStatusAwaitingShipment, func(s *Service, id uint) error {
			_, err := s.MarkReceived(context.Background(), id)
			return err
		}},
		{"verify before receipt", models.ExpertStatusInTransitToUs, func(s *Service, id uint) error {
			_, err := s.SubmitVerification(context.Background(), 99, id, VerificationInput{Passed: true})
			return err
		}},
		{"ship before verdict", models.ExpertStatusUnderVerification, func(s *Service, id uint) error {
			_, err := s.SetBuyerTracking(context.Background(), id, "T")
			return err
		}},
		{"deliver before shipping", models.ExpertStatusVerified, func(s *Service, id uint) error {
			_, err := s.MarkDelivered(context.Background(), id)
			return err
		}},
		{"confirm before delivery", models.ExpertStatusInTransitToBuyer, func(s *Service, id uint) error {
			_, err := s.ConfirmDelivery(context.Background(), 2, id)
			return err
		}},
		{"no reverse from completed", models.ExpertStatusCompleted, func(s *Service, id uint) error {
			_, err := s.MarkReceived(context.Background(), id)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExpertFixture(processingTransaction())
			svc := f.seed(tt.from)

			err := tt.call(f.service, svc.ID)
			assert.ErrorIs(t, err, ErrInvalidStatus)
			assert.Equal(t, tt.from, svc.Status)
		})
	}
}

func TestConfirmDeliveryRequiresBuyer(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusDelivered)

	_, err := f.service.ConfirmDelivery(context.Background(), 3, svc.ID)
	assert.ErrorIs(t, err, ErrNotBuyer)
	assert.Equal(t, models.ExpertStatusDelivered, svc.Status)
}

func TestConfirmDeliverySkipsCaptureWhenSettled(t *testing.T) {
	tx := processingTransaction()
	tx.Status = models.TransactionStatusSucceeded
	f := newExpertFixture(tx)
	svc := f.seed(models.ExpertStatusDelivered)

	_, err := f.service.ConfirmDelivery(context.Background(), 2, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpertStatusCompleted, svc.Status)
	f.provider.AssertNotCalled(t, "CaptureIntent", mock.Anything, mock.Anything)
	assert.Empty(t, f.applier.events)
}

func TestSetSellerTrackingRequiresSeller(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusAwaitingShipment)

	_, err := f.service.SetSellerTracking(context.Background(), 2, svc.ID, "T")
	assert.ErrorIs(t, err, ErrNotSeller)
}

func TestStatusScopesVerificationDetails(t *testing.T) {
	f := newExpertFixture(processingTransaction())
	svc := f.seed(models.ExpertStatusVerified)
	notes := "small scratch on the rail"
	passed := true
	svc.VerificationNotes = &notes
	svc.VerificationPassed = &passed
	svc.VerificationPhotos = models.StringList{"a.jpg"}

	buyerView, err := f.service.Status(context.Background(), 2, svc.ID)
	require.NoError(t, err)
	assert.NotNil(t, buyerView.VerificationNotes)
	assert.NotEmpty(t, buyerView.VerificationPhotos)

	sellerView, err := f.service.Status(context.Background(), 3, svc.ID)
	require.NoError(t, err)
	assert.Nil(t, sellerView.VerificationNotes)
	assert.Empty(t, sellerView.VerificationPhotos)

	_, err = f.service.Status(context.Background(), 42, svc.ID)
	assert.ErrorIs(t, err, ErrNotParty)
}
