package repositories

import (
	"context"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// PayoutAccountRepository persists seller payout account links.
type PayoutAccountRepository interface {
	Create(ctx context.Context, account *models.SellerPayoutAccount) error
	GetByUserID(ctx context.Context, userID uint) (*models.SellerPayoutAccount, error)
	GetByProviderAccountID(ctx context.Context, providerAccountID string) (*models.SellerPayoutAccount, error)
	Update(ctx context.Context, account *models.SellerPayoutAccount) error
}

type payoutAccountRepository struct {
	db *gorm.DB
}

// NewPayoutAccountRepository creates a payout account repository.
func NewPayoutAccountRepository(db *gorm.DB) PayoutAccountRepository {
	return &payoutAccountRepository{db: db}
}

func (r *payoutAccountRepository) Create(ctx context.Context, account *models.SellerPayoutAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *payoutAccountRepository) GetByUserID(ctx context.Context, userID uint) (*models.SellerPayoutAccount, error) {
	var account models.SellerPayoutAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *payoutAccountRepository) GetByProviderAccountID(ctx context.Context, providerAccountID string) (*models.SellerPayoutAccount, error) {
	var account models.SellerPayoutAccount
	if err := r.db.WithContext(ctx).Where("provider_account_id = ?", providerAccountID).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *payoutAccountRepository) Update(ctx context.Context, account *models.SellerPayoutAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
