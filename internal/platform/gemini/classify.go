package gemini

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/slidegen/internal/llm"
	"google.golang.org/genai"
)

// Classify maps Gemini failures onto engine actions.
//
// A quota of "limit: 0" means the key has no allowance for that model at all
// and is excluded, while ordinary 429s are retried after the smart delay.
func (p *Provider) Classify(err error) llm.ErrorAction {
	if action, ok := llm.ClassifyCommon(err); ok {
		return action
	}
	if errors.Is(err, ErrBlocked) {
		return llm.ActionRetry
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
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

func classifyAPIError(e genai.APIError) llm.ErrorAction {
	msg := e.Message + " " + e.Status
	switch {
	case llm.IsZeroQuotaMessage(msg):
		return llm.ActionPermanent
	case e.Code == http.StatusBadRequest:
		// Gemini reports an invalid key as a 400 as well.
		return llm.ActionPermanent
	case strings.EqualFold(e.Status, "NOT_FOUND"):
		return llm.ActionPermanent
	}
	if action, ok := llm.ClassifyStatus(e.Code); ok {
		return action
	}
	return llm.ClassifyMessage(msg)
}
