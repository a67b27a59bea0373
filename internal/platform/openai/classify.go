package openai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/slidegen/internal/llm"

	oai "github.com/openai/openai-go/v3"
)

// Classify maps OpenAI and LiteLLM failures onto engine actions.
func (p *Provider) Classify(err error) llm.ErrorAction {
	return ClassifyError(err)
}

// ClassifyError is the shared rule set for OpenAI-compatible backends.
// insufficient_quota arrives as a 429 but never recovers, so it excludes
// the pair instead of retrying.
func ClassifyError(err error) llm.ErrorAction {
	if action, ok := llm.ClassifyCommon(err); ok {
		return action
	}
	if errors.Is(err, ErrContentFiltered) {
		return llm.ActionRetry
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		msg := strings.Join([]string{apiErr.Code, apiErr.Type, apiErr.Message}, " ")
		switch {
		case llm.IsZeroQuotaMessage(msg):
			return llm.ActionPermanent
		case strings.Contains(msg, "model_not_found"), strings.Contains(msg, "invalid_api_key"):
			return llm.ActionPermanent
		case apiErr.StatusCode == http.StatusBadRequest && llm.IsContentFilterMessage(msg):
			return llm.ActionRetry
		}
		if action, ok := llm.ClassifyStatus(apiErr.StatusCode); ok {
			return action
		}
		return llm.ClassifyMessage(msg)
	}

	msg := err.Error()
	switch {
	case llm.IsZeroQuotaMessage(msg):
		return llm.ActionPermanent
	case llm.IsRateLimitMessage(msg), llm.IsContentFilterMessage(msg):
		return llm.ActionRetry
	}
	return llm.ClassifyMessage(msg)
}
