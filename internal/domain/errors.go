package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")

	// Purchase errors
	ErrUnknownProduct     = errors.New("unknown product")
	ErrVerificationFailed = errors.New("purchase verification failed")

	// Feature errors
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrExternalOperation wraps any failure of the external AI call.
	// A charge is never taken when this is returned.
	ErrExternalOperation = errors.New("external operation failed")

	// ErrCloudUnavailable is non-fatal: operations degrade to local-only.
	ErrCloudUnavailable = errors.New("cloud store unavailable")
)

// InsufficientBalanceError carries the exact shortfall so callers can show
// the top-up prompt with both figures. Matches ErrInsufficientBalance via
// errors.Is.
type InsufficientBalanceError struct {
	Required int64
	Current  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Required, e.Current)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall returns how many coins are missing.
func (e *InsufficientBalanceError) Shortfall() int64 { return e.Required - e.Current }
