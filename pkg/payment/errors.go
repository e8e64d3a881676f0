package payment

import "errors"

// Domain errors returned by payment operations.
var (
	ErrInvalidPaymentID     = errors.New("invalid payment id")
	ErrInvalidStatus        = errors.New("invalid payment status")
	ErrMerchantRequired     = errors.New("merchant name required")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrRefundNotAllowed     = errors.New("only completed payments can be refunded")
	ErrDuplicatePayment     = errors.New("duplicate idempotency key")
	ErrPaymentConflict      = errors.New("payment modified concurrently")
	ErrInvalidPageBounds    = errors.New("invalid page bounds")
	ErrInvalidServiceConfig = errors.New("invalid payment service config")
)
