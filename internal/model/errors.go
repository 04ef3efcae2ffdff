package model

import "errors"

// Pipeline error taxonomy. Stage-local recoverable conditions are absorbed and
// degrade the affected item; only caller-contract violations propagate.
var (
	// ErrInvalidInput is returned when a caller supplies malformed, empty,
	// or oversized input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData is returned when an operation requires a non-empty
	// dataset it did not receive.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrExternalServiceUnavailable marks a recoverable external failure.
	// Callers degrade the affected stage rather than abort the run.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrTimeout is returned when an external call exceeded its bound.
	// Recovered the same way as ErrExternalServiceUnavailable.
	ErrTimeout = errors.New("operation timed out")
)

// Recoverable reports whether err is a degradation-class error that should
// downgrade a stage instead of failing the run.
func Recoverable(err error) bool {
	return errors.Is(err, ErrExternalServiceUnavailable) || errors.Is(err, ErrTimeout)
}
