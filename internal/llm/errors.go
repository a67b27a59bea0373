package llm

import (
	"errors"
	"fmt"
)

// Common errors returned by the engine and the registry.
var (
	// ErrExhausted is wrapped by every ExhaustedError.
	ErrExhausted = errors.New("all providers/models exhausted")

	// ErrCancelled indicates the operation observed a cancellation request.
	ErrCancelled = errors.New("operation cancelled")

	// ErrEmptyResponse is returned by adapters when a model produced no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrNoModels indicates a provider was configured without any models.
	ErrNoModels = errors.New("no models configured")

	// ErrUnknownProvider indicates a lookup for an unregistered provider name.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrDuplicateProvider indicates a name was registered twice.
	ErrDuplicateProvider = errors.New("provider already registered")

	// ErrInvalidRequest indicates a request the engine refuses to run.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrMissingKey is returned by adapters that need a credential when the
	// key slot is empty.
	ErrMissingKey = errors.New("api key not set")
)

// ExhaustedError is the single failure surfaced by Engine.Generate.
// It records which action terminated the loop and the most recent backend
// error, so callers never need the attempt history to report a failure.
type ExhaustedError struct {
	Provider string
	Action   ErrorAction
	Cycles   int
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Action == ActionAbort {
		return fmt.Sprintf("[%s] aborted after %d attempts: %v", e.Provider, e.Attempts, e.Last)
	}
	return fmt.Sprintf("[%s] %s across %d cycles (%d attempts), last error: %v",
		e.Provider, ErrExhausted.Error(), e.Cycles, e.Attempts, e.Last)
}

// Unwrap exposes both ErrExhausted and the last backend error to errors.Is
// and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrExhausted}
	}
	return []error{ErrExhausted, e.Last}
}

// IsCancelled reports whether err is the result of a cancellation request
// rather than a backend failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsAborted reports whether err terminated with ActionAbort, whether from
// cancellation or from a systemic backend condition such as a revoked key.
func IsAborted(err error) bool {
	var exh *ExhaustedError
	if errors.As(err, &exh) {
		return exh.Action == ActionAbort
	}
	return IsCancelled(err)
}
