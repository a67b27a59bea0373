package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/llm"
)

// MockProvider implements llm.Provider for testing
type MockProvider struct {
	NameValue  string
	KindValue  llm.Kind
	ModelList  []string
	KeyList    []string
	Attachable func(mimeType string) bool

	// CallFn allows test cases to script responses per key and model
	CallFn func(ctx context.Context, key, model string, req llm.Request) (string, error)

	// ClassifyFn overrides the default classification (common rules, then retry)
	ClassifyFn func(err error) llm.ErrorAction

	// Default response values
	Text string
	Err  error

	// Call tracking for verification
	Calls struct {
		mu sync.Mutex

		// Count tracks how many times Call was invoked
		Count int

		// Keys and Models record every (key, model) attempted, in order
		Keys   []string
		Models []string

		// Requests contains every request passed to Call
		Requests []llm.Request
	}
}

var _ llm.Provider = (*MockProvider)(nil)

// Name implements llm.Provider
func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// Kind implements llm.Provider
func (m *MockProvider) Kind() llm.Kind { return m.KindValue }

// Models implements llm.Provider
func (m *MockProvider) Models() []string {
	if len(m.ModelList) == 0 {
		return []string{"mock-model"}
	}
	return m.ModelList
}

// Keys implements llm.Provider
func (m *MockProvider) Keys() []string { return m.KeyList }

// Call implements llm.Provider
func (m *MockProvider) Call(ctx context.Context, key, model string, req llm.Request) (string, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Keys = append(m.Calls.Keys, key)
	m.Calls.Models = append(m.Calls.Models, model)
	m.Calls.Requests = append(m.Calls.Requests, req)
	m.Calls.mu.Unlock()

	if m.CallFn != nil {
		return m.CallFn(ctx, key, model, req)
	}
	return m.Text, m.Err
}

// Classify implements llm.Provider
func (m *MockProvider) Classify(err error) llm.ErrorAction {
	if m.ClassifyFn != nil {
		return m.ClassifyFn(err)
	}
	if action, ok := llm.ClassifyCommon(err); ok {
		return action
	}
	return llm.ActionRetry
}

// AcceptsAttachment lets a mock stand in for a multimodal provider
func (m *MockProvider) AcceptsAttachment(mimeType string) bool {
	return m.Attachable != nil && m.Attachable(mimeType)
}

// RequestAt returns a copy of the i-th recorded request
func (m *MockProvider) RequestAt(i int) llm.Request {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Requests[i]
}

// CallCount returns the number of recorded calls
func (m *MockProvider) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}

// Reset resets the call tracking state
func (m *MockProvider) Reset() {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()

	m.Calls.Count = 0
	m.Calls.Keys = nil
	m.Calls.Models = nil
	m.Calls.Requests = nil
}

// Factory returns an llm.Factory that always yields m
func (m *MockProvider) Factory() llm.Factory {
	return func(llm.ProviderConfig) (llm.Provider, error) { return m, nil }
}

// NewMockProviderWithText creates a MockProvider that always answers text
func NewMockProviderWithText(text string) *MockProvider {
	return &MockProvider{Text: text}
}

// NewMockProviderWithResponses creates a MockProvider that answers each call
// with the next response in order, repeating the last one
func NewMockProviderWithResponses(responses ...string) *MockProvider {
	var (
		mu sync.Mutex
		i  int
	)
	return &MockProvider{
		CallFn: func(context.Context, string, string, llm.Request) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(responses) == 0 {
				return "", nil
			}
			r := responses[min(i, len(responses)-1)]
			i++
			return r, nil
		},
	}
}

// NewTestEngine returns an engine that never sleeps, for fast tests
func NewTestEngine(maxCycles int) *llm.Engine {
	return llm.NewEngine(llm.Options{
		MaxCycles: maxCycles,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
}

// CancelAfter returns a checker that reports cancelled once n checks passed
func CancelAfter(n int) cancel.Checker {
	return &countingChecker{limit: n}
}

type countingChecker struct {
	mu    sync.Mutex
	seen  int
	limit int
}

func (c *countingChecker) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++
	return c.seen > c.limit
}
