package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/slidegen/internal/config"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/platform/anthropic"
	"github.com/phrazzld/slidegen/internal/platform/gemini"
	"github.com/phrazzld/slidegen/internal/platform/ollama"
	"github.com/phrazzld/slidegen/internal/platform/openai"
)

// Auto asks Detect to pick a provider.
const Auto = "auto"

// ErrNoProvider is returned by Detect when no backend is usable.
var ErrNoProvider = errors.New("no provider is configured or reachable")

// ErrNoKeys is returned by Resolver.Keys when a keyed provider has no credentials.
var ErrNoKeys = errors.New("no API keys available")

// envKeys lists the environment variables consulted per provider, in order.
var envKeys = map[string][]string{
	gemini.Name:        {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	openai.Name:        {"OPENAI_API_KEY"},
	anthropic.Name:     {"ANTHROPIC_API_KEY"},
	openai.LiteLLMName: {"LITELLM_API_KEY"},
}

// detectOrder is the auto-detection priority after a reachable ollama.
var detectOrder = []string{gemini.Name, anthropic.Name, openai.Name, openai.LiteLLMName}

// NewRegistry registers every built-in adapter.
func NewRegistry() *llm.Registry {
	r := llm.NewRegistry()
	for name, f := range map[string]llm.Factory{
		gemini.Name:        gemini.Factory,
		openai.Name:        openai.Factory,
		openai.LiteLLMName: openai.LiteLLMFactory,
		anthropic.Name:     anthropic.Factory,
		ollama.Name:        ollama.Factory,
	} {
		if err := r.Register(name, f); err != nil {
			panic(fmt.Sprintf("register %s: %v", name, err))
		}
	}
	return r
}

// DefaultModels returns the built-in model list of a provider.
func DefaultModels(name string) []string {
	switch name {
	case gemini.Name:
		return gemini.DefaultModels
	case openai.Name:
		return openai.DefaultModels
	case openai.LiteLLMName:
		return openai.LiteLLMDefaultModels
	case anthropic.Name:
		return anthropic.DefaultModels
	case ollama.Name:
		return ollama.DefaultModels
	default:
		return nil
	}
}

// Resolver turns configuration and per-request overrides into provider
// configs.
type Resolver struct {
	cfg    config.LLMConfig
	getenv func(string) string
	logger *slog.Logger
}

// NewResolver creates a Resolver reading the process environment.
func NewResolver(cfg config.LLMConfig, logger *slog.Logger) *Resolver {
	return NewResolverWithEnv(cfg, logger, os.Getenv)
}

// NewResolverWithEnv is NewResolver with an injectable environment lookup.
func NewResolverWithEnv(cfg config.LLMConfig, logger *slog.Logger, getenv func(string) string) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{cfg: cfg, getenv: getenv, logger: logger}
}

// Keys resolves credentials: the explicit list wins, then the configured
// list, then environment variables. Ollama falls back to its base URL.
// The result is trimmed and deduplicated in order.
func (r *Resolver) Keys(provider string, explicit []string) ([]string, error) {
	if keys := llm.DedupeKeys(explicit); len(keys) > 0 {
		return keys, nil
	}
	settings := r.cfg.Provider(provider)
	if keys := llm.DedupeKeys(settings.APIKeys); len(keys) > 0 {
		return keys, nil
	}

	var fromEnv []string
	for _, name := range envKeys[provider] {
		fromEnv = append(fromEnv, r.getenv(name))
	}
	if keys := llm.DedupeKeys(fromEnv); len(keys) > 0 {
		return keys, nil
	}

	switch provider {
	case ollama.Name:
		return []string{ollama.NormalizeBaseURL(settings.BaseURL)}, nil
	case openai.LiteLLMName:
		return []string{openai.LiteLLMPlaceholderKey}, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoKeys, provider)
}

// Config assembles the llm.ProviderConfig for one generation.
func (r *Resolver) Config(provider string, keys, models []string) (llm.ProviderConfig, error) {
	resolved, err := r.Keys(provider, keys)
	if err != nil {
		return llm.ProviderConfig{}, err
	}
	settings := r.cfg.Provider(provider)

	if len(llm.DedupeKeys(models)) == 0 {
		models = settings.Models
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = r.cfg.RequestTimeout
	}
	return llm.ProviderConfig{
		Keys:    resolved,
		Models:  models,
		BaseURL: settings.BaseURL,
		Timeout: timeout,
		Logger:  r.logger,
	}, nil
}

// Detect picks the provider for "auto": a reachable ollama server first,
// then the first remote provider that has credentials.
func (r *Resolver) Detect(ctx context.Context, ollamaReachable func(context.Context) bool) (string, error) {
	if ollamaReachable != nil && ollamaReachable(ctx) {
		r.logger.InfoContext(ctx, "auto-detected provider", "provider", ollama.Name)
		return ollama.Name, nil
	}
	for _, name := range detectOrder {
		if r.hasOwnKeys(name) {
			r.logger.InfoContext(ctx, "auto-detected provider", "provider", name)
			return name, nil
		}
	}
	return "", ErrNoProvider
}

// hasOwnKeys ignores the placeholder fallbacks so that detection only picks
// providers the operator actually configured.
func (r *Resolver) hasOwnKeys(provider string) bool {
	if len(llm.DedupeKeys(r.cfg.Provider(provider).APIKeys)) > 0 {
		return true
	}
	for _, name := range envKeys[provider] {
		if strings.TrimSpace(r.getenv(name)) != "" {
			return true
		}
	}
	return false
}

// OllamaProbe returns a reachability check for the configured ollama server.
func (r *Resolver) OllamaProbe() func(context.Context) bool {
	return func(ctx context.Context) bool {
		p, err := ollama.New(llm.ProviderConfig{
			BaseURL: r.cfg.Ollama.BaseURL,
			Logger:  r.logger,
		})
		if err != nil {
			return false
		}
		return p.CheckConnectivity(ctx)
	}
}

// Info describes one registered provider for listings.
type Info struct {
	Name          string   `json:"name"`
	DefaultModels []string `json:"default_models"`
	Configured    bool     `json:"configured"`
}

// Catalog answers provider discovery queries for the API.
type Catalog struct {
	registry *llm.Registry
	resolver *Resolver
}

// NewCatalog creates a Catalog over reg.
func NewCatalog(reg *llm.Registry, resolver *Resolver) *Catalog {
	return &Catalog{registry: reg, resolver: resolver}
}

// List describes every registered provider. Ollama and litellm always count
// as configured because they fall back to local defaults.
func (c *Catalog) List() []Info {
	names := c.registry.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, Info{
			Name:          name,
			DefaultModels: DefaultModels(name),
			Configured:    name == ollama.Name || name == openai.LiteLLMName || c.resolver.hasOwnKeys(name),
		})
	}
	return infos
}

// OllamaModels lists the models installed on the configured ollama server.
func (c *Catalog) OllamaModels(ctx context.Context) ([]string, error) {
	p, err := ollama.New(llm.ProviderConfig{
		BaseURL: c.resolver.cfg.Ollama.BaseURL,
		Timeout: c.resolver.cfg.Ollama.Timeout,
		Logger:  c.resolver.logger,
	})
	if err != nil {
		return nil, err
	}
	return p.ListInstalled(ctx)
}
