package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phrazzld/slidegen/internal/llm"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Registry names of the two flavours served by this package.
const (
	Name        = "openai"
	LiteLLMName = "litellm"
)

// LiteLLMPlaceholderKey stands in for a key when the proxy does its own
// credential handling.
const LiteLLMPlaceholderKey = "litellm"

// DefaultModels is the OpenAI fallback order.
var DefaultModels = []string{
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4o",
	"gpt-4o-mini",
	"o4-mini",
	"o3-mini",
}

// LiteLLMDefaultModels uses provider-prefixed names understood by the proxy.
var LiteLLMDefaultModels = []string{
	"openai/gpt-4o",
	"anthropic/claude-sonnet-4-20250514",
	"groq/llama-3.3-70b-versatile",
}

// Provider talks to an OpenAI-compatible endpoint, one client per key.
type Provider struct {
	name       string
	keys       []string
	models     []string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	// keyOptional lets calls proceed with a placeholder credential.
	keyOptional bool

	mu      sync.Mutex
	clients map[string]*oai.Client
}

var _ llm.Provider = (*Provider)(nil)

// New builds the hosted OpenAI flavour.
func New(cfg llm.ProviderConfig) (*Provider, error) {
	return newProvider(Name, cfg, DefaultModels, false), nil
}

// NewLiteLLM builds the LiteLLM proxy flavour. BaseURL is required.
func NewLiteLLM(cfg llm.ProviderConfig) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%s: base url is required", LiteLLMName)
	}
	p := newProvider(LiteLLMName, cfg, LiteLLMDefaultModels, true)
	if len(p.keys) == 0 {
		p.keys = []string{LiteLLMPlaceholderKey}
	}
	return p, nil
}

// Factory adapts New to llm.Factory.
func Factory(cfg llm.ProviderConfig) (llm.Provider, error) {
	return New(cfg)
}

// LiteLLMFactory adapts NewLiteLLM to llm.Factory.
func LiteLLMFactory(cfg llm.ProviderConfig) (llm.Provider, error) {
	return NewLiteLLM(cfg)
}

func newProvider(name string, cfg llm.ProviderConfig, defaults []string, keyOptional bool) *Provider {
	models := llm.DedupeKeys(cfg.Models)
	if len(models) == 0 {
		models = append([]string(nil), defaults...)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		name:        name,
		keys:        llm.DedupeKeys(cfg.Keys),
		models:      models,
		baseURL:     strings.TrimSpace(cfg.BaseURL),
		httpClient:  httpClient,
		logger:      logger.With("provider", name),
		keyOptional: keyOptional,
		clients:     make(map[string]*oai.Client),
	}
}

func (p *Provider) Name() string { return p.name }
func (p *Provider) Kind() llm.Kind { return llm.KindRemote }
func (p *Provider) Models() []string { return append([]string(nil), p.models...) }
func (p *Provider) Keys() []string { return append([]string(nil), p.keys...) }

// Call sends one chat completion.
func (p *Provider) Call(ctx context.Context, key, model string, req llm.Request) (string, error) {
	client, err := p.client(key)
	if err != nil {
		return "", err
	}
	text, err := Complete(ctx, client, model, req, CompleteOptions{
		Reasoning: p.name == Name && IsReasoningModel(model),
	})
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", p.name, model, err)
	}
	return text, nil
}

func (p *Provider) client(key string) (*oai.Client, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		if !p.keyOptional {
			return nil, fmt.Errorf("%s: %w", p.name, llm.ErrMissingKey)
		}
		key = LiteLLMPlaceholderKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(p.httpClient),
		// The engine owns retries.
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	c := oai.NewClient(opts...)
	p.clients[key] = &c
	return &c, nil
}
