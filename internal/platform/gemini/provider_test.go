package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type capturedRequest struct {
	Path string
	Key  string
	Body string
}

// newTestServer answers generateContent calls with handler and records them.
func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, capturedRequest{Path: r.URL.Path, Key: r.Header.Get("x-goog-api-key"), Body: string(body)})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), seen...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
}

func newTestProvider(t *testing.T, srv *httptest.Server, keys ...string) *Provider {
	t.Helper()
	p, err := New(llm.ProviderConfig{
		Keys:       keys,
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNewDefaults(t *testing.T) {
	p, err := New(llm.ProviderConfig{Keys: []string{" k1 ", "k1", "k2"}})
	require.NoError(t, err)

	assert.Equal(t, Name, p.Name())
	assert.Equal(t, llm.KindRemote, p.Kind())
	assert.Equal(t, DefaultModels, p.Models())
	assert.Equal(t, []string{"k1", "k2"}, p.Keys())
}

func TestCallSendsPromptAndAttachment(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("  {\"title\":\"Deck\"}  "))
	})
	p := newTestProvider(t, srv, "AIza-test-key")

	text, err := p.Call(context.Background(), "AIza-test-key", "gemini-2.5-flash", llm.Request{
		System:      "You are a presenter.",
		Prompt:      "Make slides",
		Temperature: llm.Float(0.4),
		JSON:        true,
		Attachment:  &llm.Attachment{Data: []byte("%PDF-1.4"), MIMEType: "application/pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "  {\"title\":\"Deck\"}  ", text, "trimming is left to the engine")

	seen := requests()
	require.Len(t, seen, 1)
	assert.True(t, strings.HasSuffix(seen[0].Path, "/models/gemini-2.5-flash:generateContent"), seen[0].Path)
	assert.Equal(t, "AIza-test-key", seen[0].Key)
	assert.Contains(t, seen[0].Body, "Make slides")
	assert.Contains(t, seen[0].Body, "You are a presenter.")
	assert.Contains(t, seen[0].Body, "application/pdf")
	assert.Contains(t, seen[0].Body, "application/json")
}

func TestCallReusesClientPerKey(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("ok"))
	})
	p := newTestProvider(t, srv, "key-a", "key-b")
	ctx := context.Background()

	for _, key := range []string{"key-a", "key-a", "key-b"} {
		_, err := p.Call(ctx, key, "gemini-2.5-pro", llm.Request{Prompt: "hi"})
		require.NoError(t, err)
	}

	assert.Len(t, p.clients, 2)
	seen := requests()
	require.Len(t, seen, 3)
	assert.Equal(t, "key-b", seen[2].Key)
}

func TestCallMissingKeyAborts(t *testing.T) {
	p, err := New(llm.ProviderConfig{})
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "", "gemini-2.5-flash", llm.Request{Prompt: "hi"})
	require.ErrorIs(t, err, llm.ErrMissingKey)
	assert.Equal(t, llm.ActionAbort, p.Classify(err))
}

func TestCallEmptyCandidates(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{}})
	})
	p := newTestProvider(t, srv, "k")

	_, err := p.Call(context.Background(), "k", "gemini-2.5-flash", llm.Request{Prompt: "hi"})
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, llm.ActionRetry, p.Classify(err))
}

func TestCallSafetyBlockIsRetried(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": []any{map[string]any{"finishReason": "SAFETY"}},
		})
	})
	p := newTestProvider(t, srv, "k")

	_, err := p.Call(context.Background(), "k", "gemini-2.5-flash", llm.Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, llm.ActionRetry, p.Classify(err))
}

func TestCallRateLimitedIsRetried(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"},
		})
	})
	p := newTestProvider(t, srv, "k")

	_, err := p.Call(context.Background(), "k", "gemini-2.5-flash", llm.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, llm.ActionRetry, p.Classify(err))
}

func TestClassifyAPIErrors(t *testing.T) {
	p, err := New(llm.ProviderConfig{})
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want llm.ErrorAction
	}{
		{"rate limited", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded"}, llm.ActionRetry},
		{"zero quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Quota exceeded, limit: 0"}, llm.ActionPermanent},
		{"invalid key", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."}, llm.ActionPermanent},
		{"bad request", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "unsupported mime type"}, llm.ActionPermanent},
		{"unauthenticated", genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}, llm.ActionPermanent},
		{"forbidden", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, llm.ActionPermanent},
		{"not found", genai.APIError{Code: 404, Status: "NOT_FOUND", Message: "models/nope is not found"}, llm.ActionPermanent},
		{"server error", genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}, llm.ActionRetry},
		{"wrapped", fmt.Errorf("gemini m: %w", genai.APIError{Code: 500}), llm.ActionRetry},
		{"cancelled", context.Canceled, llm.ActionAbort},
		{"message zero quota", errors.New("limit: 0 for model"), llm.ActionPermanent},
		{"message auth", errors.New("API key not valid"), llm.ActionPermanent},
		{"unknown", errors.New("weird"), llm.ActionRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.err))
		})
	}
}

func TestAcceptsAttachment(t *testing.T) {
	p, err := New(llm.ProviderConfig{Keys: []string{"k"}})
	require.NoError(t, err)

	assert.True(t, p.AcceptsAttachment("application/pdf"))
	assert.True(t, p.AcceptsAttachment("text/markdown"))
	assert.False(t, p.AcceptsAttachment("application/epub+zip"))
	assert.False(t, p.AcceptsAttachment("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
}
