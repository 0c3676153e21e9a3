package expert

import "errors"

// Service errors
var (
	ErrServiceNotFound     = errors.New("expert service not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyRequested    = errors.New("expert service already requested for this transaction")
	ErrNotEligible         = errors.New("transaction is not eligible for expert verification")
	ErrInvalidStatus       = errors.New("expert service is not in the required status")
	ErrNotBuyer            = errors.New("only the buyer can perform this action")
	ErrNotSeller           = errors.New("only the seller can perform this action")
	ErrNotParty            = errors.New("requester is not a party to this transaction")
)
