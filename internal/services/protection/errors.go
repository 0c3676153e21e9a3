package protection

import "errors"

// Service errors
var (
	ErrProtectionNotFound  = errors.New("protection not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyProtected    = errors.New("transaction already has protection")
	ErrNotBuyer            = errors.New("only the buyer can perform this action")
	ErrNotParty            = errors.New("requester is not a party to this transaction")
	ErrNotActive           = errors.New("protection is not active")
	ErrNoOpenClaim         = errors.New("protection has no open claim")
)
