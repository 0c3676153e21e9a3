package boost

import (
	"context"
	"testing"
	"time"

	"gearted/internal/models"
	"gearted/internal/repositories"
	"gearted/internal/services/notification"
	"gearted/internal/services/payment"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	boosts map[uint]*models.ProductBoost
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{boosts: map[uint]*models.ProductBoost{}, nextID: 1}
}

func (f *fakeRepo) Create(_ context.Context, b *models.ProductBoost) error {
	b.ID = f.nextID
	f.nextID++
	f.boosts[b.ID] = b
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uint) (*models.ProductBoost, error) {
	b, ok := f.boosts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) GetByPaymentIntentID(_ context.Context, intentID string) (*models.ProductBoost, error) {
	for _, b := range f.boosts {
		if b.PaymentIntentID == intentID {
			return b, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRepo) ActiveForProduct(_ context.Context, productID uint, now time.Time) (*models.ProductBoost, error) {
	for _, b := range f.boosts {
		if b.ProductID == productID && b.Status == models.BoostStatusActive && b.EndsAt.After(now) {
			return b, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRepo) ListByUser(_ context.Context, userID uint) ([]models.ProductBoost, error) {
	var out []models.ProductBoost
	for _, b := range f.boosts {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListActive(_ context.Context, now time.Time, limit int) ([]models.ProductBoost, error) {
	var out []models.ProductBoost
	for _, b := range f.boosts {
		if b.Status == models.BoostStatusActive && b.EndsAt.After(now) && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, b *models.ProductBoost) error {
	f.boosts[b.ID] = b
	return nil
}

func (f *fakeRepo) ExpireBefore(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, b := range f.boosts {
		if b.Status == models.BoostStatusActive && b.EndsAt.Before(now) {
			b.Status = models.BoostStatusExpired
			n++
		}
	}
	return n, nil
}

type fakeProductRepo struct {
	products map[uint]*models.Product
}

func (f *fakeProductRepo) GetByID(_ context.Context, id uint) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p, nil
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

type stubSettings struct{}

func (stubSettings) Premium(context.Context) settings.PremiumPricing {
	return settings.DefaultPremiumPricing()
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(context.Context, ...notification.Intent) {}

type boostFixture struct {
	service  *Service
	repo     *fakeRepo
	provider *mockProvider
}

func newBoostFixture() *boostFixture {
	f := &boostFixture{
		repo:     newFakeRepo(),
		provider: new(mockProvider),
	}
	products := &fakeProductRepo{products: map[uint]*models.Product{
		10: {ID: 10, SellerID: 3, Price: decimal.New(10000, -2), Status: models.ProductStatusActive},
		11: {ID: 11, SellerID: 3, Status: models.ProductStatusSold},
	}}
	f.service = NewService(f.repo, products, f.provider, stubSettings{}, nopNotifier{})
	return f
}

func TestCreatePayment(t *testing.T) {
	f := newBoostFixture()
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&payment.Intent{ID: "pi_b", ClientSecret: "cs"}, nil)

	result, err := f.service.CreatePayment(context.Background(), 3, 10, models.BoostType24H)
	require.NoError(t, err)

	assert.Equal(t, int64(199), result.PriceCents)

	params := f.provider.Calls[0].Arguments.Get(1).(payment.IntentParams)
	assert.Equal(t, webhook.PremiumTypeBoost, params.Metadata["type"])
	assert.Equal(t, int64(199), params.AmountCents)

	b := f.repo.boosts[result.BoostID]
	assert.Equal(t, models.BoostStatusPending, b.Status)
	assert.True(t, b.StartsAt.IsZero(), "window must not start before activation")
}

func TestCreatePaymentGuards(t *testing.T) {
	tests := []struct {
		name      string
		userID    uint
		productID uint
		boostType string
		wantErr   error
	}{
		{"unknown type", 3, 10, "BOOST_48H", ErrInvalidBoostType},
		{"missing product", 3, 99, models.BoostType24H, ErrProductNotFound},
		{"not the owner", 2, 10, models.BoostType24H, ErrNotOwner},
		{"sold product", 3, 11, models.BoostType24H, ErrProductNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBoostFixture()
			_, err := f.service.CreatePayment(context.Background(), tt.userID, tt.productID, tt.boostType)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreatePaymentRejectsDoubleBoost(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{
		ID:        1,
		ProductID: 10,
		UserID:    3,
		Status:    models.BoostStatusActive,
		EndsAt:    time.Now().Add(time.Hour),
	}

	_, err := f.service.CreatePayment(context.Background(), 3, 10, models.BoostType7D)
	assert.ErrorIs(t, err, ErrAlreadyBoosted)
}

func TestCreatePaymentAllowsReboostAfterExpiry(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{
		ID:        1,
		ProductID: 10,
		UserID:    3,
		Status:    models.BoostStatusActive,
		EndsAt:    time.Now().Add(-time.Hour),
	}
	f.provider.On("CreateIntent", mock.Anything, mock.Anything).Return(&payment.Intent{ID: "pi_b", ClientSecret: "cs"}, nil)

	_, err := f.service.CreatePayment(context.Background(), 3, 10, models.BoostType24H)
	assert.NoError(t, err)
}

func TestActivateAnchorsWindowToNow(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{
		ID:              1,
		ProductID:       10,
		UserID:          3,
		BoostType:       models.BoostType7D,
		PaymentIntentID: "pi_b",
		Status:          models.BoostStatusPending,
		CreatedAt:       time.Now().Add(-2 * time.Hour), // slow payment
	}

	before := time.Now()
	require.NoError(t, f.service.Activate(context.Background(), "pi_b"))
	after := time.Now()

	b := f.repo.boosts[1]
	assert.Equal(t, models.BoostStatusActive, b.Status)
	assert.False(t, b.StartsAt.Before(before))
	assert.False(t, b.StartsAt.After(after))
	assert.Equal(t, 7*24*time.Hour, b.EndsAt.Sub(b.StartsAt))
}

func TestActivateIsIdempotent(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{
		ID:              1,
		BoostType:       models.BoostType24H,
		PaymentIntentID: "pi_b",
		Status:          models.BoostStatusPending,
	}

	require.NoError(t, f.service.Activate(context.Background(), "pi_b"))
	first := f.repo.boosts[1].EndsAt

	require.NoError(t, f.service.Activate(context.Background(), "pi_b"))
	assert.Equal(t, first, f.repo.boosts[1].EndsAt, "re-delivery must not extend the window")
}

func TestActivateUnknownIntentIsNoop(t *testing.T) {
	f := newBoostFixture()
	assert.NoError(t, f.service.Activate(context.Background(), "pi_unknown"))
}

func TestCancel(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{ID: 1, UserID: 3, Status: models.BoostStatusPending}

	require.NoError(t, f.service.Cancel(context.Background(), 3, 1))
	assert.Equal(t, models.BoostStatusCancelled, f.repo.boosts[1].Status)
}

func TestCancelGuards(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{ID: 1, UserID: 3, Status: models.BoostStatusActive}

	assert.ErrorIs(t, f.service.Cancel(context.Background(), 2, 1), ErrNotOwner)
	assert.ErrorIs(t, f.service.Cancel(context.Background(), 3, 1), ErrNotCancellable)
	assert.ErrorIs(t, f.service.Cancel(context.Background(), 3, 99), ErrBoostNotFound)
}

func TestExpireOldIsIdempotent(t *testing.T) {
	f := newBoostFixture()
	f.repo.boosts[1] = &models.ProductBoost{
		ID:     1,
		Status: models.BoostStatusActive,
		EndsAt: time.Now().Add(-time.Minute),
	}
	f.repo.boosts[2] = &models.ProductBoost{
		ID:     2,
		Status: models.BoostStatusActive,
		EndsAt: time.Now().Add(time.Hour),
	}

	n, err := f.service.ExpireOld(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.BoostStatusExpired, f.repo.boosts[1].Status)
	assert.Equal(t, models.BoostStatusActive, f.repo.boosts[2].Status)

	n, err = f.service.ExpireOld(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
