package ring

import "errors"

// Settlement failures. Every one of these aborts the whole ring: there is no
// partial commit and no retry inside the engine.
var (
	ErrMalformedRing    = errors.New("malformed ring")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrOrderExpired     = errors.New("order expired")
	ErrOrderCancelled   = errors.New("order cancelled")
	ErrOrderExhausted   = errors.New("order exhausted")
	ErrRateViolation    = errors.New("rate violation")
	ErrZeroFill         = errors.New("zero fill")
	ErrInsufficientFee  = errors.New("insufficient fee token balance")
	ErrTransferFailed   = errors.New("transfer failed")
)
