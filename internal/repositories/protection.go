package repositories

import (
	"context"
	"time"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// ProtectionRepository persists transaction dispute coverage.
type ProtectionRepository interface {
	Create(ctx context.Context, p *models.TransactionProtection) error
	GetByID(ctx context.Context, id uint) (*models.TransactionProtection, error)
	GetByTransactionID(ctx context.Context, transactionID uint) (*models.TransactionProtection, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.TransactionProtection, error)
	Update(ctx context.Context, p *models.TransactionProtection) error
	// ExpireCreatedBefore flips ACTIVE protections created before the
	// cutoff to EXPIRED and returns the number of rows touched.
	ExpireCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type protectionRepository struct {
	db *gorm.DB
}

// NewProtectionRepository creates a protection repository.
func NewProtectionRepository(db *gorm.DB) ProtectionRepository {
	return &protectionRepository{db: db}
}

func (r *protectionRepository) Create(ctx context.Context, p *models.TransactionProtection) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *protectionRepository) GetByID(ctx context.Context, id uint) (*models.TransactionProtection, error) {
	var p models.TransactionProtection
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *protectionRepository) GetByTransactionID(ctx context.Context, transactionID uint) (*models.TransactionProtection, error) {
	var p models.TransactionProtection
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *protectionRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.TransactionProtection, error) {
	var p models.TransactionProtection
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *protectionRepository) Update(ctx context.Context, p *models.TransactionProtection) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *protectionRepository) ExpireCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TransactionProtection{}).
		Where("status = ? AND created_at < ?", models.ProtectionStatusActive, cutoff).
		Update("status", models.ProtectionStatusExpired)
	return res.RowsAffected, res.Error
}
