package repositories

import (
	"context"
	"time"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// BoostRepository persists listing visibility boosts.
type BoostRepository interface {
	Create(ctx context.Context, boost *models.ProductBoost) error
	GetByID(ctx context.Context, id uint) (*models.ProductBoost, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ProductBoost, error)
	// ActiveForProduct returns the ACTIVE boost with endsAt in the future,
	// or ErrNotFound.
	ActiveForProduct(ctx context.Context, productID uint, now time.Time) (*models.ProductBoost, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ProductBoost, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]models.ProductBoost, error)
	Update(ctx context.Context, boost *models.ProductBoost) error
	// ExpireBefore flips ACTIVE boosts whose endsAt has passed to EXPIRED
	// and returns the number of rows touched. Safe to re-run.
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

type boostRepository struct {
	db *gorm.DB
}

// NewBoostRepository creates a boost repository.
func NewBoostRepository(db *gorm.DB) BoostRepository {
	return &boostRepository{db: db}
}

func (r *boostRepository) Create(ctx context.Context, boost *models.ProductBoost) error {
	return r.db.WithContext(ctx).Create(boost).Error
}

func (r *boostRepository) GetByID(ctx context.Context, id uint) (*models.ProductBoost, error) {
	var boost models.ProductBoost
	if err := r.db.WithContext(ctx).First(&boost, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &boost, nil
}

func (r *boostRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.ProductBoost, error) {
	var boost models.ProductBoost
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&boost).Error; err != nil {
		return nil, notFound(err)
	}
	return &boost, nil
}

func (r *boostRepository) ActiveForProduct(ctx context.Context, productID uint, now time.Time) (*models.ProductBoost, error) {
	var boost models.ProductBoost
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ? AND ends_at > ?", productID, models.BoostStatusActive, now).
		First(&boost).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &boost, nil
}

func (r *boostRepository) ListByUser(ctx context.Context, userID uint) ([]models.ProductBoost, error) {
	var boosts []models.ProductBoost
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&boosts).Error
	return boosts, err
}

func (r *boostRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]models.ProductBoost, error) {
	var boosts []models.ProductBoost
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at > ?", models.BoostStatusActive, now).
		Order("starts_at DESC").
		Limit(limit).
		Find(&boosts).Error
	return boosts, err
}

func (r *boostRepository) Update(ctx context.Context, boost *models.ProductBoost) error {
	return r.db.WithContext(ctx).Save(boost).Error
}

func (r *boostRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductBoost{}).
		Where("status = ? AND ends_at < ?", models.BoostStatusActive, now).
		Update("status", models.BoostStatusExpired)
	return res.RowsAffected, res.Error
}
