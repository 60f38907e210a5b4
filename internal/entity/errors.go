package entity

import (
	"errors"
	"fmt"
)

// Validation errors: caller input doesn't match current state.
// Reported immediately, zero side effects.
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotForSale      = errors.New("listing is not for sale")
	ErrNotCreator      = errors.New("caller is not the creator of this listing")
)

// Funds errors: reported immediately, zero side effects.
var (
	ErrNoBalance         = errors.New("principal has no balance")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
)

// Lookup and registration errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyRegistered = errors.New("principal already registered")
)

// ErrPaymentFailed wraps the funds error that aborted a purchase before any
// irreversible step ran.
var ErrPaymentFailed = errors.New("payment failed")

// CriticalInconsistencyError reports a listing that changed state between
// validation and finalize after funds already moved. It must never be
// retried automatically: a retry could double-charge the buyer. Instances
// are logged for manual reconciliation.
type CriticalInconsistencyError struct {
	ListingID uint64
	Buyer     Principal
	Seller    Principal
	Amount    uint64
	Cause     error
}

func (e *CriticalInconsistencyError) Error() string {
	return fmt.Sprintf("critical inconsistency: listing %d changed state after funds moved (buyer=%s seller=%s amount=%d): %v",
		e.ListingID, e.Buyer, e.Seller, e.Amount, e.Cause)
}

func (e *CriticalInconsistencyError) Unwrap() error {
	return e.Cause
}
