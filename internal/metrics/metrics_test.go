package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveAttempt(t *testing.T) {
	r := NewRecorder()
	r.ObserveAttempt("gemini", "gemini-2.5-pro", "retry", 2*time.Second)
	r.ObserveAttempt("gemini", "gemini-2.5-pro", "success", time.Second)
	r.ObserveAttempt("gemini", "gemini-2.5-pro", "success", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts.WithLabelValues("gemini", "gemini-2.5-pro", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("gemini", "gemini-2.5-pro", "retry")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_HandleEvent(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	finished, err := events.NewEvent(events.JobFinished, uuid.New(),
		events.JobFinishedPayload{Kind: "review", Status: "cancelled"})
	require.NoError(t, err)
	require.NoError(t, r.HandleEvent(ctx, finished))

	requested, err := events.NewEvent(events.JobRequested, uuid.New(), events.JobRequestPayload{Kind: "review"})
	require.NoError(t, err)
	require.NoError(t, r.HandleEvent(ctx, requested))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobs.WithLabelValues("review", "cancelled")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.jobs))

	broken := &events.Event{Type: events.JobFinished, Payload: []byte("{")}
	assert.Error(t, r.HandleEvent(ctx, broken))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveAttempt("ollama", "llama3", "success", 100*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `slidegen_llm_attempts_total{model="llama3",outcome="success",provider="ollama"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
