package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/phrazzld/slidegen/internal/llm"
)

// Name is the registry name of this provider.
const Name = "anthropic"

// MaxTokens is sent when the request does not set MaxOutputTokens.
const MaxTokens = 8192

// jsonInstruction is appended to the user turn since the Messages API has
// no JSON response mode.
const jsonInstruction = "\n\nIMPORTANT: Respond with valid JSON only. No markdown, no explanation."

// DefaultModels is the fallback order used when none are configured.
var DefaultModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// Provider calls the Anthropic API, one client per key.
type Provider struct {
	keys       []string
	models     []string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*sdk.Client
}

var _ llm.Provider = (*Provider)(nil)

// New builds a Provider from cfg.
func New(cfg llm.ProviderConfig) (*Provider, error) {
	models := llm.DedupeKeys(cfg.Models)
	if len(models) == 0 {
		models = append([]string(nil), DefaultModels...)
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
		keys:       llm.DedupeKeys(cfg.Keys),
		models:     models,
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		httpClient: httpClient,
		logger:     logger.With("provider", Name),
		clients:    make(map[string]*sdk.Client),
	}, nil
}

// Factory adapts New to llm.Factory.
func Factory(cfg llm.ProviderConfig) (llm.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Kind() llm.Kind { return llm.KindRemote }
func (p *Provider) Models() []string { return append([]string(nil), p.models...) }
func (p *Provider) Keys() []string { return append([]string(nil), p.keys...) }

// Call sends one Messages request and joins the text blocks of the reply.
func (p *Provider) Call(ctx context.Context, key, model string, req llm.Request) (string, error) {
	client, err := p.client(key)
	if err != nil {
		return "", err
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += jsonInstruction
	}

	maxTokens := int64(MaxTokens)
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", model, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %s (stop reason %s)", llm.ErrEmptyResponse, model, resp.StopReason)
	}
	return b.String(), nil
}

func (p *Provider) client(key string) (*sdk.Client, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("anthropic: %w", llm.ErrMissingKey)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	c := sdk.NewClient(opts...)
	p.clients[key] = &c
	return &c, nil
}

// Classify maps Anthropic failures onto engine actions. 529 overloaded is
// transient like any other 5xx.
func (p *Provider) Classify(err error) llm.ErrorAction {
	if action, ok := llm.ClassifyCommon(err); ok {
		return action
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if action, ok := llm.ClassifyStatus(apiErr.StatusCode); ok {
			return action
		}
	}

	msg := err.Error()
	switch {
	case llm.IsRateLimitMessage(msg), llm.IsOverloadedMessage(msg):
		return llm.ActionRetry
	}
	return llm.ClassifyMessage(msg)
}
