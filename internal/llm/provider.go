package llm

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Attachment is an optional multimodal payload, such as the raw bytes of the
// uploaded document.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// Request is the immutable input of one generation. The Engine passes it
// unchanged to every attempt.
type Request struct {
	System          string
	Prompt          string
	Temperature     *float64
	MaxOutputTokens int
	// JSON asks the backend for a JSON object response where supported.
	JSON       bool
	Attachment *Attachment
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}

// Result is returned only when an attempt succeeds.
type Result struct {
	Text     string
	Model    string
	Provider string
	Attempts int
}

// Provider is the capability every backend adapter implements.
type Provider interface {
	// Name is the unique registry name of the provider.
	Name() string

	// Kind selects the Smart Delay minimum.
	Kind() Kind

	// Models lists candidate models, most preferred first.
	Models() []string

	// Keys lists the deduplicated credentials. Keyless providers return nil.
	Keys() []string

	// Call performs exactly one model invocation.
	Call(ctx context.Context, key, model string, req Request) (string, error)

	// Classify maps a failure returned by Call onto an ErrorAction.
	Classify(err error) ErrorAction
}

// ProviderConfig carries what a Factory needs to construct a Provider.
type ProviderConfig struct {
	Keys       []string
	Models     []string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Factory constructs a Provider from configuration.
type Factory func(cfg ProviderConfig) (Provider, error)

// AttemptObserver receives one notification per backend call. Outcome is
// "success" or the String of the classified ErrorAction.
type AttemptObserver interface {
	ObserveAttempt(provider, model, outcome string, elapsed time.Duration)
}
