package payment

import "errors"

// Service errors
var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductSold     = errors.New("product is already sold")
	ErrSelfPurchase    = errors.New("cannot buy your own product")
	ErrAmountMismatch  = errors.New("amount does not match product price")
	ErrNoPayoutAccount = errors.New("seller has no payout account")
	ErrIntentNotFound  = errors.New("payment intent not found")
	ErrNotRefundable   = errors.New("transaction is not refundable")
	ErrProviderFailure = errors.New("payment provider request failed")
)
