package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phrazzld/slidegen/internal/llm"
	"google.golang.org/genai"
)

// Name is the registry name of this provider.
const Name = "gemini"

// DefaultModels is the fallback order used when none are configured.
var DefaultModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
}

// Provider calls the Gemini API. One genai client is created lazily per key
// and reused for every model.
type Provider struct {
	keys       []string
	models     []string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
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
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("provider", Name),
		clients:    make(map[string]*genai.Client),
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

// AcceptsAttachment reports whether a document of mimeType can be sent
// inline. Office and ebook formats are sent as extracted text instead.
func (p *Provider) AcceptsAttachment(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/")
}

// Call sends one GenerateContent request.
func (p *Provider) Call(ctx context.Context, key, model string, req llm.Request) (string, error) {
	client, err := p.client(ctx, key)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, model, buildContents(req), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	return extractText(model, resp)
}

func (p *Provider) client(ctx context.Context, key string) (*genai.Client, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("gemini: %w", llm.ErrMissingKey)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.logger.DebugContext(ctx, "created gemini client", "key", llm.MaskKey(key))
	p.clients[key] = c
	return c, nil
}

func buildContents(req llm.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment.Data, req.Attachment.MIMEType))
	}
	if req.Prompt != "" {
		parts = append(parts, genai.NewPartFromText(req.Prompt))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// extractText joins the non-thought text parts of the first candidate.
func extractText(model string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: %s", llm.ErrEmptyResponse, model)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: %s", llm.ErrEmptyResponse, model)
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason %s", ErrBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: %s", llm.ErrEmptyResponse, model)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
