package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrProviderSetup is returned when the target provider cannot be resolved
	// or constructed, before any model is called
	ErrProviderSetup = errors.New("failed to set up provider")

	// ErrDocumentText is returned when a text-only provider needs the document
	// text and extraction fails
	ErrDocumentText = errors.New("failed to extract document text")
)
