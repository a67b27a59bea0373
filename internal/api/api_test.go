package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/api/middleware"
	"github.com/phrazzld/slidegen/internal/api/shared"
	"github.com/phrazzld/slidegen/internal/config"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/providers"
	"github.com/phrazzld/slidegen/internal/service"
	"github.com/phrazzld/slidegen/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) CreateJobAndEnqueue(ctx context.Context, kind domain.JobKind, doc domain.Document, opts domain.JobOptions) (*domain.Job, error) {
	args := m.Called(ctx, kind, doc, opts)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockJobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	args := m.Called(ctx, limit)
	jobs, _ := args.Get(0).([]*domain.Job)
	return jobs, args.Error(1)
}

func (m *MockJobService) CancelJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

type fakeSignal struct {
	cancelled bool
	err       error
}

func (s *fakeSignal) RequestCancel() error { s.cancelled = s.err == nil; return s.err }
func (s *fakeSignal) Clear() error         { s.cancelled = false; return s.err }
func (s *fakeSignal) IsCancelled() bool    { return s.cancelled }

type fakeCatalog struct {
	models []string
	err    error
}

func (c fakeCatalog) List() []providers.Info {
	return []providers.Info{{Name: "gemini", DefaultModels: []string{"gemini-2.5-pro"}, Configured: true}}
}

func (c fakeCatalog) OllamaModels(context.Context) ([]string, error) { return c.models, c.err }

type testServer struct {
	jobs    *MockJobService
	signal  *fakeSignal
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(*RouterConfig)) *testServer {
	t.Helper()
	ts := &testServer{jobs: &MockJobService{}, signal: &fakeSignal{}}
	cfg := RouterConfig{
		Jobs:      NewJobHandler(ts.jobs, 1, nil),
		Signal:    NewSignalHandler(ts.signal, nil),
		Providers: NewProviderHandler(fakeCatalog{models: []string{"llama3"}}, nil),
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	ts.handler = NewRouter(cfg)
	t.Cleanup(func() { ts.jobs.AssertExpectations(t) })
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func pendingJob(t *testing.T, kind domain.JobKind) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(kind,
		domain.Document{Filename: "notes.txt", MIMEType: "text/plain", Data: []byte("text")},
		domain.JobOptions{Provider: "openai"})
	require.NoError(t, err)
	return job
}

func TestCreateJob(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ts := newTestServer(t, nil)
		job := pendingJob(t, domain.JobKindSummary)

		ts.jobs.On("CreateJobAndEnqueue", mock.Anything, domain.JobKindSummary,
			mock.MatchedBy(func(doc domain.Document) bool {
				return doc.Filename == "notes.txt" && doc.MIMEType == "text/plain" && string(doc.Data) == "chapter one"
			}),
			mock.MatchedBy(func(opts domain.JobOptions) bool {
				return opts.Provider == "openai" &&
					assert.ObjectsAreEqual([]string{"sk-a", "sk-b"}, opts.APIKeys) &&
					assert.ObjectsAreEqual([]string{"gpt-4o", "gpt-4o-mini"}, opts.Models)
			}),
		).Return(job, nil).Once()

		w := ts.do(multipartRequest(t, map[string]string{
			"kind":     "summary",
			"provider": "OpenAI",
			"models":   "gpt-4o, gpt-4o-mini",
			"api_keys": "sk-a\nsk-b",
		}, "notes.txt", []byte("chapter one")))

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		var resp JobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, job.ID.String(), resp.ID)
		assert.Equal(t, "pending", resp.Status)
		assert.NotContains(t, w.Body.String(), "sk-a")
	})

	t.Run("resume state is decoded", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.jobs.On("CreateJobAndEnqueue", mock.Anything, domain.JobKindReview, mock.Anything,
			mock.MatchedBy(func(opts domain.JobOptions) bool {
				return opts.ResumeState != nil && opts.ResumeState.LibrarianModel == "m1"
			}),
		).Return(pendingJob(t, domain.JobKindReview), nil).Once()

		w := ts.do(multipartRequest(t, map[string]string{
			"kind":         "review",
			"resume_state": `{"model1_name":"m1","librarian_data":{"category":"Fiction","genre":"Drama"}}`,
		}, "book.txt", []byte("once upon a time")))
		assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	})

	tests := []struct {
		name    string
		fields  map[string]string
		file    string
		content []byte
		status  int
		message string
	}{
		{"missing file", map[string]string{"kind": "slides"}, "", nil, http.StatusBadRequest, "Invalid file: is required"},
		{"bad kind", map[string]string{"kind": "poem"}, "a.txt", []byte("x"), http.StatusBadRequest, "Invalid kind: invalid value"},
		{"bad mode", map[string]string{"kind": "slides", "mode": "huge"}, "a.txt", []byte("x"), http.StatusBadRequest, "Invalid mode: invalid value"},
		{"bad resume json", map[string]string{"kind": "review", "resume_state": "{"}, "a.txt", []byte("x"), http.StatusBadRequest, "Invalid resume_state: must be valid JSON"},
		{"unsupported type", map[string]string{"kind": "slides"}, "img.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), http.StatusUnsupportedMediaType, "Unsupported document type"},
		{"too large", map[string]string{"kind": "slides"}, "big.txt", bytes.Repeat([]byte("a"), 2<<20), http.StatusRequestEntityTooLarge, "Uploaded file is too large"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			w := ts.do(multipartRequest(t, tc.fields, tc.file, tc.content))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decodeError(t, w).Error)
			ts.jobs.AssertNotCalled(t, "CreateJobAndEnqueue")
		})
	}

	t.Run("service validation error", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.jobs.On("CreateJobAndEnqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.ErrResumeNotReview).Once()

		w := ts.do(multipartRequest(t, map[string]string{
			"kind":         "slides",
			"resume_state": `{"model1_name":"m1"}`,
		}, "a.txt", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Resume state is only valid for review jobs", decodeError(t, w).Error)
	})
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t, nil)
	job := pendingJob(t, domain.JobKindSlides)
	missing := uuid.New()

	ts.jobs.On("GetJob", mock.Anything, job.ID).Return(job, nil).Once()
	ts.jobs.On("GetJob", mock.Anything, missing).Return(nil, service.ErrJobNotFound).Once()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "slides", resp.Kind)
	assert.Equal(t, "detail", resp.Mode)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp404 := decodeError(t, w)
	assert.Equal(t, "Job not found", resp404.Error)
	assert.NotEmpty(t, resp404.TraceID)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id: has invalid format", decodeError(t, w).Error)
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.jobs.On("ListJobs", mock.Anything, 5).Return([]*domain.Job{pendingJob(t, domain.JobKindSummary)}, nil).Once()
	ts.jobs.On("ListJobs", mock.Anything, service.DefaultListLimit).Return(nil, errors.New("db down")).Once()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to list jobs", decodeError(t, w).Error)
	assert.NotContains(t, w.Body.String(), "db down")

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJob(t *testing.T) {
	ts := newTestServer(t, nil)
	running := pendingJob(t, domain.JobKindReview)
	done := uuid.New()

	ts.jobs.On("CancelJob", mock.Anything, running.ID).Return(running, nil).Once()
	ts.jobs.On("CancelJob", mock.Anything, done).Return(nil, service.ErrJobFinished).Once()

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/jobs/"+running.ID.String()+"/cancel", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/jobs/"+done.String()+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Job already finished", decodeError(t, w).Error)
}

func TestGlobalSignal(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/cancel", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, ts.signal.cancelled)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/cancel", nil))
	assert.JSONEq(t, `{"cancelled":true}`, w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/api/cancel", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":false}`, w.Body.String())

	ts.signal.err = errors.New("read-only filesystem")
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/cancel", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to request cancellation", decodeError(t, w).Error)
}

func TestProviders(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/providers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"gemini"`)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/providers/ollama/models", nil))
	assert.JSONEq(t, `{"models":["llama3"],"reachable":true}`, w.Body.String())

	down := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Providers = NewProviderHandler(fakeCatalog{err: errors.New("connection refused")}, nil)
	})
	w = down.do(httptest.NewRequest(http.MethodGet, "/api/providers/ollama/models", nil))
	var resp OllamaModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Reachable)
	assert.Equal(t, providers.DefaultModels("ollama"), resp.Models)
}

func TestRouterAuthHealthAndMetrics(t *testing.T) {
	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-jwt-secret-that-is-32-chars-long",
		TokenLifetimeMinutes: 5,
	})
	require.NoError(t, err)

	unhealthy := false
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Auth = middleware.NewAuthMiddleware(jwtSvc)
		cfg.Health = func(context.Context) error {
			if unhealthy {
				return errors.New("db unreachable")
			}
			return nil
		}
	})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/providers", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwtSvc.GenerateToken(context.Background(), "test")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, ts.do(req).Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	unhealthy = true
	w = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.HasPrefix(w.Body.String(), "# metrics"))
}

func TestSubmitRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.SubmitLimiter = middleware.NewRateLimiter(0.001, 1)
	})
	ts.jobs.On("CreateJobAndEnqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(pendingJob(t, domain.JobKindSlides), nil).Once()

	first := ts.do(multipartRequest(t, map[string]string{"kind": "slides"}, "a.txt", []byte("x")))
	second := ts.do(multipartRequest(t, map[string]string{"kind": "slides"}, "a.txt", []byte("x")))
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
