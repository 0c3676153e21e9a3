package boost

import "errors"

// Service errors
var (
	ErrBoostNotFound    = errors.New("boost not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrNotOwner         = errors.New("only the product owner can boost it")
	ErrProductNotActive = errors.New("product is not active")
	ErrAlreadyBoosted   = errors.New("product already has an active boost")
	ErrInvalidBoostType = errors.New("unknown boost type")
	ErrNotCancellable   = errors.New("only pending boosts can be cancelled")
)
