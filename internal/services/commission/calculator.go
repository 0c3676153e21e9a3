// Package commission computes the fee split for a purchase. The
// calculator is pure: no I/O, no clock, integer-cent arithmetic only.
package commission

import "math"

// Calculate computes the fee breakdown for a purchase.
//
// Each party's fee is the percentage of the product price floored at the
// configured minimum, whichever is larger. A disabled or exempt party
// pays exactly zero, not a discounted minimum.
func Calculate(in Input) Breakdown {
	var sellerFee, buyerFee int64

	if in.Settings.SellerEnabled && !in.SellerExempt {
		sellerFee = percentOf(in.PriceCents, in.Settings.SellerPercent)
		if sellerFee < in.Settings.SellerMinCents {
			sellerFee = in.Settings.SellerMinCents
		}
	}
	if in.Settings.BuyerEnabled && !in.BuyerExempt {
		buyerFee = percentOf(in.PriceCents, in.Settings.BuyerPercent)
		if buyerFee < in.Settings.BuyerMinCents {
			buyerFee = in.Settings.BuyerMinCents
		}
	}

	var addOns int64
	if in.WantExpertise {
		addOns += in.ExpertiseCents
	}
	if in.WantInsurance {
		addOns += in.InsuranceCents
	}

	return Breakdown{
		SellerFeeCents:    sellerFee,
		BuyerFeeCents:     buyerFee,
		AddOnCents:        addOns,
		SellerAmountCents: in.PriceCents - sellerFee,
		PlatformFeeCents:  sellerFee + buyerFee + addOns,
		TotalChargeCents:  in.PriceCents + buyerFee + addOns + in.ShippingCents,
		SellerPercent:     effectivePercent(in.Settings.SellerEnabled, in.SellerExempt, in.Settings.SellerPercent),
		BuyerPercent:      effectivePercent(in.Settings.BuyerEnabled, in.BuyerExempt, in.Settings.BuyerPercent),
	}
}

// percentOf rounds half away from zero so results are always whole cents.
func percentOf(cents int64, percent float64) int64 {
	return int64(math.Round(float64(cents) * percent / 100))
}

func effectivePercent(enabled bool, exempt bool, percent float64) float64 {
	if !enabled || exempt {
		return 0
	}
	return percent
}
