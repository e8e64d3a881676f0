package card

import "errors"

// Validation errors returned by the card value constructors.
var (
	ErrCardNumberRequired     = errors.New("card number required")
	ErrCardNumberLength       = errors.New("card number must be 13-19 digits")
	ErrCardNumberFormat       = errors.New("card number must contain only digits")
	ErrCardNumberChecksum     = errors.New("card number fails luhn checksum")
	ErrInvalidExpirationMonth = errors.New("expiration month must be between 1 and 12")
	ErrCardExpired            = errors.New("card expired")
	ErrCVVRequired            = errors.New("cvv required")
	ErrInvalidCVVLength       = errors.New("cvv must be 3 or 4 digits")
	ErrInvalidCVVFormat       = errors.New("cvv must contain only digits")
	ErrInvalidCreditLimit     = errors.New("credit limit must be greater than zero")
	ErrCreditLimitTooHigh     = errors.New("credit limit exceeds maximum")
	ErrHolderNameRequired     = errors.New("cardholder name required")
	ErrInvalidBrand           = errors.New("invalid card brand")
	ErrInvalidKind            = errors.New("invalid card kind")
	ErrInvalidStatus          = errors.New("invalid card status")
	ErrInvalidCardID          = errors.New("invalid card id")
)

// Domain errors returned by card operations.
var (
	ErrCardNotActive      = errors.New("card not active")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrCardNotFound       = errors.New("card not found")
	ErrCardNumberExists   = errors.New("card number already registered")
	ErrCardConflict       = errors.New("card modified concurrently")
)
