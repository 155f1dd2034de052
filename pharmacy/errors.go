/*
errors.go - Centralized error types for the pharmacy ledger

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every constructor, setter and Ledger operation returns one of these;
  none of them is fatal to the process.

ERROR CATEGORIES:
  1. Validation  - malformed input to a constructor or setter (re-prompt)
  2. NotFound    - an id does not resolve
  3. InvalidState - operation not legal for the entity's current state
                   (double fill, double bill, billing an unfilled prescription)
  4. InsufficientStock - fulfillment blocked; carries what was asked and what is on hand
  5. Capacity    - a collection is at its configured maximum
  6. Auth / Forbidden - bad credentials, or a role without the permission

USAGE:
  Callers branch with errors.Is on the sentinels, or errors.As for details:

    var stock *pharmacy.InsufficientStockError
    if errors.As(err, &stock) {
        fmt.Printf("medicine %d: need %d, have %d\n", stock.MedicineID, stock.Required, stock.Available)
    }

SEE ALSO:
  - ledger.go: Returns these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package pharmacy

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed constructor or setter input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not legal for the
	// entity's current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientStock is returned when fulfillment would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCapacity is returned when a collection is at its configured maximum.
	ErrCapacity = errors.New("capacity reached")

	// ErrAuth is returned for bad credentials.
	ErrAuth = errors.New("invalid username or password")

	// ErrForbidden is returned when a role lacks a permission.
	ErrForbidden = errors.New("insufficient privileges")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Entity names used in NotFoundError, InvalidStateError and CapacityError.
const (
	EntityUser         = "user"
	EntityMedicine     = "medicine"
	EntityPrescription = "prescription"
	EntityTransaction  = "transaction"
)

// NotFoundError identifies the id that did not resolve.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Reasons carried by InvalidStateError.
const (
	ReasonAlreadyFilled = "already filled"
	ReasonNotFilled     = "not filled"
	ReasonAlreadyBilled = "already billed"
)

// InvalidStateError describes why the entity rejected the operation.
type InvalidStateError struct {
	Entity string
	ID     int
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// InsufficientStockError reports the first under-stocked medicine found
// during the fulfillment pre-check.
type InsufficientStockError struct {
	MedicineID int
	Required   int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %d: required %d, available %d",
		e.MedicineID, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// CapacityError names the full collection.
type CapacityError struct {
	Collection string
	Limit      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum %s capacity reached (%d)", e.Collection, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// AuthError does not say whether the username or the password was wrong.
type AuthError struct {
	Username string
}

func (e *AuthError) Error() string { return ErrAuth.Error() }

func (e *AuthError) Unwrap() error { return ErrAuth }

// ForbiddenError reports which role was denied which permission.
type ForbiddenError struct {
	Role       Role
	Permission Permission
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("insufficient privileges: %s may not %s", e.Role, e.Permission)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is recoverable by correcting input
// or choosing a different record.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrCapacity) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrForbidden)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
