package repositories

import (
	"context"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// ProductRepository reads listings and applies guarded status updates.
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	// TransitionStatus updates the product status only when the row is
	// still in the expected prior status. The bool result reports whether
	// the row was actually updated, so a concurrent flip of the same
	// product loses cleanly instead of interleaving.
	TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) (bool, error)
	// TransitionSale updates a SOLD product only when the sale belongs to
	// the given transaction. A competing purchase that later fails or is
	// canceled must not touch another buyer's settled sale.
	TransitionSale(ctx context.Context, id, transactionID uint, to string, extra map[string]interface{}) (bool, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r *productRepository) TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepository) TransitionSale(ctx context.Context, id, transactionID uint, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ? AND sold_transaction_id = ?", id, models.ProductStatusSold, transactionID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
