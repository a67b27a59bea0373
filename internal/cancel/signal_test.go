package cancel

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSignal(t *testing.T) (*Signal, string) {
	t.Helper()
	marker := filepath.Join(t.TempDir(), "cancel_signal.flag")
	return New(marker), marker
}

func TestSignalRequestAndClear(t *testing.T) {
	s, marker := newTestSignal(t)

	assert.False(t, s.IsCancelled())

	require.NoError(t, s.RequestCancel())
	assert.True(t, s.IsCancelled())
	assert.FileExists(t, marker)

	require.NoError(t, s.Clear())
	assert.False(t, s.IsCancelled())
	assert.NoFileExists(t, marker)
}

func TestSignalClearIsIdempotent(t *testing.T) {
	s, _ := newTestSignal(t)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	assert.False(t, s.IsCancelled())
}

func TestSignalObservesExternalMarker(t *testing.T) {
	s, marker := newTestSignal(t)

	require.NoError(t, os.WriteFile(marker, []byte("CANCEL"), 0o644))
	assert.True(t, s.IsCancelled())

	// A second Signal instance, as in another process, sees the same marker.
	other := New(marker)
	assert.True(t, other.IsCancelled())

	require.NoError(t, other.Clear())
	assert.False(t, s.IsCancelled())
}

func TestSignalFlagSurvivesMarkerWriteFailure(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing-dir", "cancel.flag"))

	err := s.RequestCancel()
	assert.Error(t, err)
	assert.True(t, s.IsCancelled())
}

func TestSignalConcurrentUse(t *testing.T) {
	s, _ := newTestSignal(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.RequestCancel()
		}()
		go func() {
			defer wg.Done()
			_ = s.IsCancelled()
		}()
	}
	wg.Wait()

	assert.True(t, s.IsCancelled())
	require.NoError(t, s.Clear())
	assert.False(t, s.IsCancelled())
}

func TestNewDefaultsMarker(t *testing.T) {
	s := New("")
	assert.Equal(t, DefaultMarker, s.marker)
}

func TestToken(t *testing.T) {
	parent, _ := newTestSignal(t)
	a := NewToken(parent)
	b := NewToken(parent)

	a.Cancel()
	assert.True(t, a.IsCancelled())
	assert.False(t, b.IsCancelled(), "cancelling one job must not touch another")

	require.NoError(t, parent.RequestCancel())
	assert.True(t, b.IsCancelled())

	require.NoError(t, parent.Clear())
	a.Reset()
	assert.False(t, a.IsCancelled())
	assert.False(t, b.IsCancelled())

	orphan := NewToken(nil)
	assert.False(t, orphan.IsCancelled())
	assert.False(t, Never.IsCancelled())
}

func TestWatchLatchesExternalMarker(t *testing.T) {
	s, marker := newTestSignal(t)
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	require.NoError(t, s.Watch(ctx, nil))

	require.NoError(t, os.WriteFile(marker, []byte("CANCEL"), 0o644))
	require.Eventually(t, s.flag.Load, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(marker))
	require.Eventually(t, func() bool { return !s.flag.Load() }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.IsCancelled())
}

func TestWatchFailsForMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope", "cancel.flag"))
	assert.Error(t, s.Watch(context.Background(), nil))
}
