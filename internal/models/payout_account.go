package models

import "time"

// SellerPayoutAccount links a seller to their payment-provider account.
// Destination routing on purchase intents is only attached once charges
// are enabled; until then the platform holds funds for manual settlement.
type SellerPayoutAccount struct {
	ID                 uint   `gorm:"primarykey"`
	UserID             uint   `gorm:"uniqueIndex;not null"`
	ProviderAccountID  string `gorm:"uniqueIndex;not null"`
	ChargesEnabled     bool   `gorm:"default:false"`
	PayoutsEnabled     bool   `gorm:"default:false"`
	DetailsSubmitted   bool   `gorm:"default:false"`
	OnboardingComplete bool   `gorm:"default:false"`
	Country            string `gorm:"default:'FR'"`
	Currency           string `gorm:"default:'eur'"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
