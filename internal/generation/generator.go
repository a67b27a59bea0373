package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/llm"
)

// Auto asks the resolver to pick a provider.
const Auto = "auto"

// documentHeader introduces extracted text for text-only providers.
const documentHeader = "Document content:\n"

// Resolver supplies provider credentials and auto-detection.
type Resolver interface {
	Config(provider string, keys, models []string) (llm.ProviderConfig, error)
	Detect(ctx context.Context, ollamaReachable func(context.Context) bool) (string, error)
}

// attachmentAcceptor is implemented by providers that can read some
// document formats natively.
type attachmentAcceptor interface {
	AcceptsAttachment(mimeType string) bool
}

// Target names the provider, keys and models for one job. Empty fields
// fall back to configuration.
type Target struct {
	Provider string
	Keys     []string
	Models   []string
}

// Request is one generation step of a service.
type Request struct {
	System string
	Prompt string
	// Temperature falls back to the configured default when nil.
	Temperature *float64
	JSON        bool
	Document    *Document
}

// Config wires a Generator.
type Config struct {
	Registry           *llm.Registry
	Resolver           Resolver
	Engine             *llm.Engine
	DefaultProvider    string
	DefaultTemperature float64
	// OllamaProbe is consulted by auto-detection. Nil skips ollama.
	OllamaProbe func(context.Context) bool
	Logger      *slog.Logger
}

// Generator runs service requests against the configured backends.
type Generator struct {
	registry    *llm.Registry
	resolver    Resolver
	engine      *llm.Engine
	provider    string
	temperature float64
	probe       func(context.Context) bool
	logger      *slog.Logger
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Registry == nil || cfg.Resolver == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("%w: registry, resolver and engine are required", ErrInvalidConfig)
	}
	if cfg.DefaultTemperature < 0 || cfg.DefaultTemperature > 2 {
		return nil, fmt.Errorf("%w: default temperature %.2f out of range", ErrInvalidConfig, cfg.DefaultTemperature)
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	if provider == "" {
		provider = Auto
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		registry:    cfg.Registry,
		resolver:    cfg.Resolver,
		engine:      cfg.Engine,
		provider:    provider,
		temperature: cfg.DefaultTemperature,
		probe:       cfg.OllamaProbe,
		logger:      logger.With("component", "generator"),
	}, nil
}

// ResolveProvider returns the concrete provider name for target, running
// auto-detection when needed.
func (g *Generator) ResolveProvider(ctx context.Context, target Target) (string, error) {
	name := strings.ToLower(strings.TrimSpace(target.Provider))
	if name == "" {
		name = g.provider
	}
	if name != Auto {
		return name, nil
	}
	detected, err := g.resolver.Detect(ctx, g.probe)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProviderSetup, err)
	}
	return detected, nil
}

// Generate resolves the provider for target and runs req through the
// engine. Errors from the engine are returned unchanged so callers can use
// llm.IsCancelled and errors.As with *llm.ExhaustedError.
func (g *Generator) Generate(ctx context.Context, target Target, req Request, cc cancel.Checker) (*llm.Result, error) {
	name, err := g.ResolveProvider(ctx, target)
	if err != nil {
		return nil, err
	}

	cfg, err := g.resolver.Config(name, target.Keys, target.Models)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderSetup, name, err)
	}
	p, err := g.registry.New(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderSetup, err)
	}

	lreq, err := g.buildRequest(p, req)
	if err != nil {
		return nil, err
	}
	return g.engine.Generate(ctx, p, lreq, cc)
}

func (g *Generator) buildRequest(p llm.Provider, req Request) (llm.Request, error) {
	temp := req.Temperature
	if temp == nil {
		temp = llm.Float(g.temperature)
	}
	out := llm.Request{
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: temp,
		JSON:        req.JSON,
	}

	doc := req.Document
	if doc == nil || len(doc.Data) == 0 {
		return out, nil
	}

	if a, ok := p.(attachmentAcceptor); ok && a.AcceptsAttachment(doc.MIMEType) {
		out.Attachment = &llm.Attachment{Data: doc.Data, MIMEType: doc.MIMEType}
		return out, nil
	}

	text, err := doc.Text()
	if err != nil {
		return llm.Request{}, fmt.Errorf("%w for %s: %w", ErrDocumentText, p.Name(), err)
	}
	g.logger.Debug("prepending extracted document text",
		"provider", p.Name(),
		"mime_type", doc.MIMEType,
		"chars", len(text))
	out.Prompt = documentHeader + text + "\n\n" + req.Prompt
	return out, nil
}
