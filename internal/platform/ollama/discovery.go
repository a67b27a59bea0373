package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3/option"
)

// probeTimeout bounds discovery and connectivity checks.
const probeTimeout = 5 * time.Second

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// rootURL strips the /v1 suffix to reach Ollama's native API.
func rootURL(base string) string {
	return strings.TrimSuffix(NormalizeBaseURL(base), "/v1")
}

// DiscoverModels lists the models installed on the server via /api/tags.
// On any failure it logs and returns the configured model list.
func (p *Provider) DiscoverModels(ctx context.Context) []string {
	models, err := p.ListInstalled(ctx)
	if err != nil || len(models) == 0 {
		p.logger.WarnContext(ctx, "could not query ollama models, using configured list",
			"base_url", p.baseURL,
			"error", err)
		return p.Models()
	}
	p.logger.InfoContext(ctx, "discovered ollama models", "models", models)
	return models
}

// ListInstalled queries /api/tags and returns the model names.
func (p *Provider) ListInstalled(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var tags tagsResponse
	err := p.client(p.baseURL).Get(ctx, "api/tags", nil, &tags,
		option.WithBaseURL(rootURL(p.baseURL)+"/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// CheckConnectivity reports whether the OpenAI-compatible /models endpoint
// answers.
func (p *Provider) CheckConnectivity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := p.client(p.baseURL).Models.List(ctx)
	if err != nil {
		p.logger.DebugContext(ctx, "ollama not reachable", "base_url", p.baseURL, "error", err)
		return false
	}
	return true
}
