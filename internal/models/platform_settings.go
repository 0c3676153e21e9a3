package models

import "time"

// Well-known settings keys
const (
	SettingsKeyCommissions = "commissions"
	SettingsKeyPremium     = "premium_pricing"
)

// PlatformSettings is process-wide configuration keyed by name. Missing
// rows fall back to hardcoded defaults in the settings service.
type PlatformSettings struct {
	ID        uint   `gorm:"primarykey"`
	Key       string `gorm:"uniqueIndex;not null"`
	Value     JSON   `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
