package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phrazzld/slidegen/internal/llm"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// ErrContentFiltered is returned when the backend stopped on its content filter.
var ErrContentFiltered = errors.New("response stopped by content filter")

var reasoningModel = regexp.MustCompile(`^o\d`)

// IsReasoningModel reports whether model belongs to the o-series, which
// takes its instructions in the developer role and rejects temperature.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	m = strings.TrimPrefix(m, "openai/")
	return reasoningModel.MatchString(m)
}

// CompleteOptions tweaks how Complete builds the request.
type CompleteOptions struct {
	// Reasoning switches to the o-series request shape.
	Reasoning bool
}

// Complete sends one chat completion and returns the first choice's text.
// Attachments are ignored; callers prepend extracted text to the prompt.
func Complete(ctx context.Context, client *oai.Client, model string, req llm.Request, opts CompleteOptions) (string, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		if opts.Reasoning {
			messages = append(messages, oai.DeveloperMessage(req.System))
		} else {
			messages = append(messages, oai.SystemMessage(req.System))
		}
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	params := oai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != nil && !opts.Reasoning {
		params.Temperature = oai.Float(*req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(req.MaxOutputTokens))
	}
	if req.JSON {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", llm.ErrEmptyResponse, model)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: %s", ErrContentFiltered, model)
	}
	return choice.Message.Content, nil
}
