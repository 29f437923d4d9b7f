/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API surface maps each type to exactly one HTTP status and passes
  the message through unchanged.

ERROR CATEGORIES:
  1. ValidationError      - missing/malformed input            (400)
  2. NotFoundError        - referenced entity absent            (404)
  3. AuthorizationError   - caller may not see this resource    (403)
  4. AuthenticationError  - bad credentials / no identity       (401)
  5. BalanceExceededError - payment larger than current balance (400)
  6. StoreError           - datastore failure                   (500)

RETRIES:
  None. Payments are idempotency-unsafe writes unless the client supplies
  an idempotency key, so failures always surface to the caller.

SEE ALSO:
  - api/errors.go: status mapping
  - store/sqlstore: wraps driver failures in StoreError
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrBalanceExceeded = errors.New("payment exceeds balance")
	ErrStore           = errors.New("store failure")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key already exists. Safe for the client to treat as done.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateReceipt is returned by stores when an OR number collides.
	ErrDuplicateReceipt = errors.New("duplicate receipt number")

	// ErrDuplicateReference is returned by stores when an ad hoc billing
	// reference already exists.
	ErrDuplicateReference = errors.New("duplicate billing reference")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }
func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }
func (e *AuthenticationError) Unwrap() error { return ErrUnauthenticated }

// BalanceExceededError reports the balance at the time of the check.
type BalanceExceededError struct {
	AssessmentID int64
	Balance      decimal.Decimal
	Requested    decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("Payment amount %s exceeds current balance %s",
		e.Requested.StringFixed(2), e.Balance.StringFixed(2))
}

func (e *BalanceExceededError) Unwrap() error { return ErrBalanceExceeded }

// StoreError wraps a datastore failure. errors.Is matches both ErrStore
// and the wrapped cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error        { return e.Err }
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// StoreFailure wraps err unless it is nil or already typed by this package.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func isTyped(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrBalanceExceeded) ||
		errors.Is(err, ErrStore) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateReceipt) ||
		errors.Is(err, ErrDuplicateReference)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBalanceExceeded) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
