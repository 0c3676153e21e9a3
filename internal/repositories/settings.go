package repositories

import (
	"context"

	"gearted/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository reads platform settings by key.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.PlatformSettings, error)
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*models.PlatformSettings, error) {
	var settings models.PlatformSettings
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&settings).Error; err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}
