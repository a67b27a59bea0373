package store

import (
	"errors"
	"fmt"
)

// Common store errors. Implementations wrap driver errors with these so
// that callers never depend on a specific database.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate indicates an entity with the same key already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity indicates the entity failed validation before storage.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed indicates an update could not be applied.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed indicates a transaction could not be completed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrJobNotFound is ErrNotFound for jobs.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrTaskNotFound is ErrNotFound for background tasks.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError reports whether err is any not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any duplicate error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError adds entity and operation context to a storage failure.
type StoreError struct {
	Entity    string // The entity type (e.g., "job", "task")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the original error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
