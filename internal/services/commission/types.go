package commission

import "github.com/shopspring/decimal"

// Settings are the commission parameters in effect for one calculation.
// They are snapshotted onto the Transaction row at intent creation, so a
// later settings change never alters an in-flight purchase.
type Settings struct {
	BuyerEnabled   bool
	BuyerPercent   float64
	BuyerMinCents  int64
	SellerEnabled  bool
	SellerPercent  float64
	SellerMinCents int64
}

// Input is everything the calculator needs. All money is integer cents.
type Input struct {
	PriceCents     int64
	Settings       Settings
	BuyerExempt    bool
	SellerExempt   bool
	WantExpertise  bool
	ExpertiseCents int64
	WantInsurance  bool
	InsuranceCents int64
	ShippingCents  int64
}

// Breakdown is the resulting fee split, in integer cents.
//
// Invariants:
//
//	TotalChargeCents  = PriceCents + BuyerFeeCents + AddOnCents + ShippingCents
//	SellerAmountCents = PriceCents - SellerFeeCents
//	PlatformFeeCents  = SellerFeeCents + BuyerFeeCents + AddOnCents
//
// Shipping is a pass-through and never part of the platform fee.
type Breakdown struct {
	SellerFeeCents    int64
	BuyerFeeCents     int64
	AddOnCents        int64
	SellerAmountCents int64
	PlatformFeeCents  int64
	TotalChargeCents  int64
	SellerPercent     float64
	BuyerPercent      float64
}

// FromCents converts integer cents to a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Cents converts a decimal amount to integer cents, rounding to the
// nearest cent.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.New(100, 0)).Round(0).IntPart()
}
