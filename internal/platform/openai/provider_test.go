package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatCall struct {
	Path string
	Auth string
	Body map[string]any
}

func newChatServer(t *testing.T, status int, reply any) (*httptest.Server, func() []chatCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []chatCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, chatCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []chatCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]chatCall(nil), calls...)
	}
}

func completion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": finish,
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func apiError(code, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg, "type": "invalid_request_error", "code": code}}
}

func TestCallBuildsChatRequest(t *testing.T) {
	srv, calls := newChatServer(t, http.StatusOK, completion(`{"title":"x"}`, "stop"))
	p, err := New(llm.ProviderConfig{Keys: []string{"sk-test"}, BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
	require.NoError(t, err)

	text, err := p.Call(context.Background(), "sk-test", "gpt-4o", llm.Request{
		System:          "sys",
		Prompt:          "user prompt",
		Temperature:     llm.Float(0.4),
		MaxOutputTokens: 512,
		JSON:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, text)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/v1/chat/completions", got[0].Path)
	assert.Equal(t, "Bearer sk-test", got[0].Auth)
	assert.Equal(t, "gpt-4o", got[0].Body["model"])
	assert.InDelta(t, 0.4, got[0].Body["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, got[0].Body["response_format"])

	msgs, ok := got[0].Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestCallReasoningModelShape(t *testing.T) {
	srv, calls := newChatServer(t, http.StatusOK, completion("ok", "stop"))
	p, err := New(llm.ProviderConfig{Keys: []string{"sk-test"}, BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "sk-test", "o4-mini", llm.Request{
		System:      "sys",
		Prompt:      "p",
		Temperature: llm.Float(0.7),
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	_, hasTemp := got[0].Body["temperature"]
	assert.False(t, hasTemp, "o-series models reject temperature")
	msgs := got[0].Body["messages"].([]any)
	assert.Equal(t, "developer", msgs[0].(map[string]any)["role"])
}

func TestCallContentFilter(t *testing.T) {
	srv, _ := newChatServer(t, http.StatusOK, completion("", "content_filter"))
	p, err := New(llm.ProviderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "sk", "gpt-4o", llm.Request{Prompt: "p"})
	require.ErrorIs(t, err, ErrContentFiltered)
	assert.Equal(t, llm.ActionRetry, p.Classify(err))
}

func TestCallAPIErrorsClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   llm.ErrorAction
	}{
		{"rate limited", http.StatusTooManyRequests, apiError("rate_limit_exceeded", "Rate limit reached"), llm.ActionRetry},
		{"no quota", http.StatusTooManyRequests, apiError("insufficient_quota", "You exceeded your current quota"), llm.ActionPermanent},
		{"model missing", http.StatusNotFound, apiError("model_not_found", "The model does not exist"), llm.ActionPermanent},
		{"bad key", http.StatusUnauthorized, apiError("invalid_api_key", "Incorrect API key provided"), llm.ActionPermanent},
		{"server error", http.StatusInternalServerError, apiError("server_error", "boom"), llm.ActionRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newChatServer(t, tt.status, tt.body)
			p, err := New(llm.ProviderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
			require.NoError(t, err)

			_, err = p.Call(context.Background(), "sk", "gpt-4o", llm.Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.want, p.Classify(err))
		})
	}
}

func TestCallMissingKey(t *testing.T) {
	p, err := New(llm.ProviderConfig{})
	require.NoError(t, err)
	_, err = p.Call(context.Background(), "", "gpt-4o", llm.Request{Prompt: "p"})
	require.ErrorIs(t, err, llm.ErrMissingKey)
	assert.Equal(t, llm.ActionAbort, p.Classify(err))
}

func TestLiteLLM(t *testing.T) {
	_, err := NewLiteLLM(llm.ProviderConfig{})
	require.Error(t, err, "base url is required")

	srv, calls := newChatServer(t, http.StatusOK, completion("ok", "stop"))
	p, err := NewLiteLLM(llm.ProviderConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	assert.Equal(t, LiteLLMName, p.Name())
	assert.Equal(t, []string{LiteLLMPlaceholderKey}, p.Keys())
	assert.Equal(t, LiteLLMDefaultModels, p.Models())

	_, err = p.Call(context.Background(), "", "openai/o3-mini", llm.Request{Prompt: "p", Temperature: llm.Float(0.2)})
	require.NoError(t, err)
	got := calls()
	require.Len(t, got, 1)
	_, hasTemp := got[0].Body["temperature"]
	assert.True(t, hasTemp, "the proxy translates parameters itself")
}

func TestIsReasoningModel(t *testing.T) {
	for model, want := range map[string]bool{
		"o1":            true,
		"o3-mini":       true,
		"o4-mini":       true,
		"openai/o3":     true,
		"gpt-4o":        false,
		"omni-moderate": false,
		"":              false,
	} {
		assert.Equal(t, want, IsReasoningModel(model), model)
	}
}

func TestClassifyMessages(t *testing.T) {
	assert.Equal(t, llm.ActionPermanent, ClassifyError(errors.New("insufficient_quota")))
	assert.Equal(t, llm.ActionRetry, ClassifyError(errors.New("Error 429 rate_limit_exceeded")))
	assert.Equal(t, llm.ActionPermanent, ClassifyError(errors.New("invalid_api_key")))
	assert.Equal(t, llm.ActionPermanent, ClassifyError(errors.New("model_not_found 404")))
	assert.Equal(t, llm.ActionRetry, ClassifyError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, llm.ActionRetry, ClassifyError(errors.New("something else")))
}

func TestEngineRotatesPastInvalidKey(t *testing.T) {
	var (
		mu   sync.Mutex
		auth []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer sk-bad" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apiError("invalid_api_key", "Incorrect API key provided: sk-bad"))
			return
		}
		_ = json.NewEncoder(w).Encode(completion("hello", "stop"))
	}))
	t.Cleanup(srv.Close)

	p, err := New(llm.ProviderConfig{
		Keys:       []string{"sk-bad", "sk-good"},
		Models:     []string{"gpt-4o"},
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	engine := llm.NewEngine(llm.Options{
		MaxCycles: 1,
		Delay:     llm.DelayPolicy{MinRemote: time.Millisecond},
	})
	res, err := engine.Generate(context.Background(), p, llm.Request{Prompt: "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 2, res.Attempts)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer sk-bad", "Bearer sk-good"}, auth)
}
