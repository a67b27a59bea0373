package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/platform/openai"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Name is the registry name of this provider.
const Name = "ollama"

// DefaultBaseURL points at the OpenAI-compatible endpoint of a local server.
const DefaultBaseURL = "http://localhost:11444/v1"

// DefaultTimeout allows large local models to finish a long generation.
const DefaultTimeout = 600 * time.Second

// apiKey is sent because the SDK requires one; Ollama ignores it.
const apiKey = "ollama"

// DefaultModels is used when discovery fails and none are configured.
var DefaultModels = []string{
	"qwen2.5:14b",
	"gemma3:27b",
	"qwen2.5:72b",
	"qwen2.5-coder:32b",
	"deepseek-coder-v2:latest",
}

// ErrUnreachable marks a server that refused or never answered the connection.
var ErrUnreachable = errors.New("ollama server unreachable")

// Provider calls an Ollama server. The key slot carries the base URL, so a
// list of keys is a list of servers tried in order.
type Provider struct {
	keys       []string
	models     []string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*oai.Client
}

var _ llm.Provider = (*Provider)(nil)

// New builds a Provider. An empty key list defaults to the base URL.
func New(cfg llm.ProviderConfig) (*Provider, error) {
	base := NormalizeBaseURL(cfg.BaseURL)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := llm.DedupeKeys(cfg.Keys)
	if len(keys) == 0 {
		keys = []string{base}
	}
	models := llm.DedupeKeys(cfg.Models)
	if len(models) == 0 {
		models = append([]string(nil), DefaultModels...)
	}

	return &Provider{
		keys:       keys,
		models:     models,
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger.With("provider", Name),
		clients:    make(map[string]*oai.Client),
	}, nil
}

// Factory adapts New to llm.Factory.
func Factory(cfg llm.ProviderConfig) (llm.Provider, error) {
	return New(cfg)
}

// NormalizeBaseURL trims trailing slashes and applies the default.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Kind() llm.Kind { return llm.KindLocal }
func (p *Provider) Models() []string { return append([]string(nil), p.models...) }
func (p *Provider) Keys() []string { return append([]string(nil), p.keys...) }

// BaseURL returns the configured server endpoint.
func (p *Provider) BaseURL() string { return p.baseURL }

// Call sends one chat completion to the server named by key, or to the
// configured base URL when key is not a URL.
func (p *Provider) Call(ctx context.Context, key, model string, req llm.Request) (string, error) {
	base := p.baseURL
	if strings.HasPrefix(key, "http") {
		base = NormalizeBaseURL(key)
	}

	text, err := openai.Complete(ctx, p.client(base), model, req, openai.CompleteOptions{})
	if err != nil {
		return "", fmt.Errorf("ollama %s @ %s: %w", model, base, err)
	}
	return text, nil
}

func (p *Provider) client(base string) *oai.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[base]; ok {
		return c
	}
	c := oai.NewClient(
		option.WithBaseURL(base),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	)
	p.clients[base] = &c
	return &c
}

// Classify maps Ollama failures onto engine actions. A server that cannot be
// reached excludes the pair, so another configured endpoint can still serve.
func (p *Provider) Classify(err error) llm.ErrorAction {
	if errors.Is(err, ErrUnreachable) {
		return llm.ActionPermanent
	}
	if action, ok := llm.ClassifyCommon(err); ok {
		return action
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if action, ok := llm.ClassifyStatus(apiErr.StatusCode); ok {
			return action
		}
	}

	msg := err.Error()
	switch {
	case llm.IsConnectionMessage(msg), llm.IsNotFoundMessage(msg):
		return llm.ActionPermanent
	}
	return llm.ActionRetry
}
