package repositories

import (
	"context"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// ExpertRepository persists expert verification workflows.
type ExpertRepository interface {
	Create(ctx context.Context, svc *models.ExpertService) error
	GetByID(ctx context.Context, id uint) (*models.ExpertService, error)
	GetByTransactionID(ctx context.Context, transactionID uint) (*models.ExpertService, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ExpertService, error)
	Update(ctx context.Context, svc *models.ExpertService) error
	ListInProgress(ctx context.Context) ([]models.ExpertService, error)
}

type expertRepository struct {
	db *gorm.DB
}

// NewExpertRepository creates an expert service repository.
func NewExpertRepository(db *gorm.DB) ExpertRepository {
	return &expertRepository{db: db}
}

func (r *expertRepository) Create(ctx context.Context, svc *models.ExpertService) error {
	return r.db.WithContext(ctx).Create(svc).Error
}

func (r *expertRepository) GetByID(ctx context.Context, id uint) (*models.ExpertService, error) {
	var svc models.ExpertService
	if err := r.db.WithContext(ctx).First(&svc, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

func (r *expertRepository) GetByTransactionID(ctx context.Context, transactionID uint) (*models.ExpertService, error) {
	var svc models.ExpertService
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&svc).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

func (r *expertRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ExpertService, error) {
	var svc models.ExpertService
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&svc).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

func (r *expertRepository) Update(ctx context.Context, svc *models.ExpertService) error {
	return r.db.WithContext(ctx).Save(svc).Error
}

func (r *expertRepository) ListInProgress(ctx context.Context) ([]models.ExpertService, error) {
	var services []models.ExpertService
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			models.ExpertStatusAwaitingShipment,
			models.ExpertStatusInTransitToUs,
			models.ExpertStatusReceived,
			models.ExpertStatusUnderVerification,
			models.ExpertStatusVerified,
			models.ExpertStatusInTransitToBuyer,
		}).
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}
