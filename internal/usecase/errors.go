package usecase

import "fmt"

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrBadRequest string

func (e ErrBadRequest) Error() string { return string(e) }

// ErrConflict covers non-idempotent collisions, e.g. a second, different
// payment arriving for an order that is already paid.
type ErrConflict string

func (e ErrConflict) Error() string { return string(e) }

// ErrInvalidSignature is terminal: the callback did not come from the
// gateway or was tampered with. Flagged for fraud review in logs.
type ErrInvalidSignature struct {
	OrderID           string
	ProviderOrderID   string
	ProviderPaymentID string
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("payment signature mismatch for order %s (%s/%s)", e.OrderID, e.ProviderOrderID, e.ProviderPaymentID)
}

// GatewayError wraps a failed gateway call. Retryable: the remote state is
// unknown on timeouts, so callers poll or retry rather than assume.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return "gateway " + e.Op + ": " + e.Err.Error() }

func (e *GatewayError) Unwrap() error { return e.Err }
