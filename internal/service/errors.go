package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/slidegen/internal/store"
)

// Common service errors, checked by callers with errors.Is.
// The API layer maps them to HTTP status codes.
var (
	// ErrInvalidService indicates a service was constructed without a
	// required dependency.
	ErrInvalidService = errors.New("invalid service configuration")

	// ErrMalformedOutput indicates a model answered with text that could
	// not be turned into the expected structure. API layer maps this to 502.
	ErrMalformedOutput = errors.New("model returned malformed output")

	// ErrJobNotFound indicates that the job does not exist.
	// API layer maps this to 404.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished indicates an operation needs a job that is still
	// pending or processing. API layer maps this to 409.
	ErrJobFinished = errors.New("job already finished")
)

// ServiceError wraps unexpected failures of a service operation.
type ServiceError struct {
	// Operation is the operation that failed (e.g. "create_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err for operation. Known sentinel errors are
// returned directly, with store-level not-found mapped to ErrJobNotFound.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrJobNotFound) || errors.Is(err, store.ErrJobNotFound) || errors.Is(err, store.ErrNotFound) {
		return ErrJobNotFound
	}
	if errors.Is(err, ErrJobFinished) {
		return ErrJobFinished
	}
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
