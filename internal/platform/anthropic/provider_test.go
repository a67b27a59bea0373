package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessagesServer(t *testing.T, status int, reply any, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
			(*seen)["x-api-key"] = r.Header.Get("X-Api-Key")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func message(text string) map[string]any {
	return map[string]any{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"stop_reason": "end_turn",
		"content":     []any{map[string]any{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func errorBody(kind, msg string) map[string]any {
	return map[string]any{"type": "error", "error": map[string]any{"type": kind, "message": msg}}
}

func TestCallBuildsRequest(t *testing.T) {
	var seen map[string]any
	srv := newMessagesServer(t, http.StatusOK, message(`{"ok":true}`), &seen)
	p, err := New(llm.ProviderConfig{Keys: []string{"sk-ant-test"}, BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	text, err := p.Call(context.Background(), "sk-ant-test", "claude-sonnet-4-20250514", llm.Request{
		System:      "sys",
		Prompt:      "make json",
		Temperature: llm.Float(0.3),
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	assert.Equal(t, "sk-ant-test", seen["x-api-key"])
	assert.Equal(t, float64(MaxTokens), seen["max_tokens"])
	assert.InDelta(t, 0.3, seen["temperature"], 1e-9)
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 1)
	body, _ := json.Marshal(msgs[0])
	assert.Contains(t, string(body), "Respond with valid JSON only")
}

func TestCallEmptyContent(t *testing.T) {
	reply := message("")
	reply["content"] = []any{}
	srv := newMessagesServer(t, http.StatusOK, reply, nil)
	p, err := New(llm.ProviderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "k", "claude-3-5-haiku-20241022", llm.Request{Prompt: "p"})
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, llm.ActionRetry, p.Classify(err))
}

func TestCallErrorsClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   llm.ErrorAction
	}{
		{"rate limit", http.StatusTooManyRequests, errorBody("rate_limit_error", "slow down"), llm.ActionRetry},
		{"overloaded", 529, errorBody("overloaded_error", "Overloaded"), llm.ActionRetry},
		{"not found", http.StatusNotFound, errorBody("not_found_error", "model: claude-99"), llm.ActionPermanent},
		{"auth", http.StatusUnauthorized, errorBody("authentication_error", "invalid x-api-key"), llm.ActionPermanent},
		{"forbidden", http.StatusForbidden, errorBody("permission_error", "no access"), llm.ActionPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMessagesServer(t, tt.status, tt.body, nil)
			p, err := New(llm.ProviderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
			require.NoError(t, err)

			_, err = p.Call(context.Background(), "k", "claude-3", llm.Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.want, p.Classify(err))
		})
	}
}

func TestClassifyMessages(t *testing.T) {
	p, err := New(llm.ProviderConfig{})
	require.NoError(t, err)

	assert.Equal(t, llm.ActionRetry, p.Classify(errors.New("rate_limit_error 429")))
	assert.Equal(t, llm.ActionPermanent, p.Classify(errors.New("not_found_error 404")))
	assert.Equal(t, llm.ActionPermanent, p.Classify(errors.New("authentication_error invalid api key")))
	assert.Equal(t, llm.ActionRetry, p.Classify(errors.New("overloaded_error")))
	assert.Equal(t, llm.ActionRetry, p.Classify(errors.New("some unknown")))
}

func TestMissingKey(t *testing.T) {
	p, err := New(llm.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModels, p.Models())

	_, err = p.Call(context.Background(), " ", "claude-3", llm.Request{Prompt: "p"})
	require.ErrorIs(t, err, llm.ErrMissingKey)
	assert.Equal(t, llm.ActionAbort, p.Classify(err))
}
