/*
errors.go - Centralized error types for the POS core

PURPOSE:
  All domain error kinds in one place. Callers branch with errors.Is/As;
  the core never formats user-facing messages.

ERROR CATEGORIES:
  1. Validation errors - rejected before any write touches the store
  2. Transactional errors - roll back the whole in-flight unit
  3. Storage errors - wrap the underlying store failure

SEE ALSO:
  - till.go, settlement.go: producers of these errors
  - store/sqlite: maps constraint violations onto these sentinels
*/
package pos

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyOpen is returned by Open when a till session is already open.
	ErrAlreadyOpen = errors.New("till session already open")

	// ErrNotOpen is returned by Close and RecordMovement when no till
	// session is open.
	ErrNotOpen = errors.New("no open till session")

	// ErrTillClosed is returned by PlaceOrder when no till session is open.
	ErrTillClosed = errors.New("till is closed")

	// ErrEmptyOrder is returned when an order draft has no items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrMissingUser is returned when an operation lacks an acting user.
	ErrMissingUser = errors.New("missing user id")

	// ErrInvalidTransition is returned for a status change outside the
	// forward-only order flow.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrInvalidAmount is returned for a non-positive amount where a
	// positive one is required.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrStorage wraps underlying store failures (constraint violation,
	// I/O error). Retryable at the call site.
	ErrStorage = errors.New("storage failure")

	// ErrOrderNotFound is returned when an order id resolves to nothing.
	ErrOrderNotFound = errors.New("order not found")

	// ErrProductNotFound is returned when a draft references an unknown
	// catalog product.
	ErrProductNotFound = errors.New("product not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a rejected order status change.
type TransitionError struct {
	OrderID OrderID
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// AmountError reports which amount failed validation.
type AmountError struct {
	Field  string // e.g. "initial_amount", "movement_amount", "quantity"
	Amount Money
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Amount)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// StorageError wraps a store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the ErrStorage sentinel and the underlying cause,
// so errors.Is works against either.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// Domain errors surfaced by the store (e.g. a unique-index violation
	// mapped to ErrAlreadyOpen) pass through unwrapped.
	if IsClientError(err) || errors.Is(err, ErrAlreadyOpen) || errors.Is(err, ErrNotOpen) || errors.Is(err, ErrTillClosed) {
		return err
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid input,
// detected before any write.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrMissingUser) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflict reports whether the error is a state conflict that rolled
// back the in-flight transaction; the caller may re-check and retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyOpen) ||
		errors.Is(err, ErrNotOpen) ||
		errors.Is(err, ErrTillClosed)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound)
}
