package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/events"
	"github.com/phrazzld/slidegen/internal/generation"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockJobStore mocks store.JobStore
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Update(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Job), args.Error(1)
}

// MockJobRunner mocks JobRunner
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Cancel(jobID uuid.UUID) bool {
	return m.Called(jobID).Bool(0)
}

func (m *MockJobRunner) CancelAll() int {
	return m.Called().Int(0)
}

// MockEventEmitter mocks events.EventEmitter
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockSignal mocks CancelSignal
type MockSignal struct {
	mock.Mock
}

func (m *MockSignal) IsCancelled() bool {
	return m.Called().Bool(0)
}

func (m *MockSignal) Clear() error {
	return m.Called().Error(0)
}

// reply is one scripted Generator answer.
type reply struct {
	text  string
	model string
	err   error
}

// scriptedGenerator answers Generate calls in order and records requests.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  []reply
	requests []generation.Request
	targets  []generation.Target
}

func newScriptedGenerator(replies ...reply) *scriptedGenerator {
	return &scriptedGenerator{replies: replies}
}

func (g *scriptedGenerator) Generate(ctx context.Context, target generation.Target, req generation.Request, cc cancel.Checker) (*llm.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	g.targets = append(g.targets, target)
	if len(g.replies) == 0 {
		return nil, &llm.ExhaustedError{Provider: "mock", Action: llm.ActionRetry, Last: llm.ErrEmptyResponse}
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Result{Text: r.text, Model: r.model, Provider: "mock", Attempts: 1}, nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func textInput(text string) Input {
	return Input{
		Document: generation.NewDocument([]byte(text), "text/plain"),
		Target:   generation.Target{Provider: "mock"},
	}
}
