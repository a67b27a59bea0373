package cancel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
)

// DefaultMarker is the marker file name used when none is configured.
const DefaultMarker = "cancel_signal.flag"

// Checker is anything that can be polled for a cancellation request.
type Checker interface {
	IsCancelled() bool
}

// Signal is a cancellation flag shared across goroutines and processes.
// The zero value is not usable; construct it with New.
type Signal struct {
	flag   atomic.Bool
	marker string
}

// New returns a Signal whose durable marker lives at markerPath.
// An empty path falls back to DefaultMarker in the working directory.
func New(markerPath string) *Signal {
	if markerPath == "" {
		markerPath = DefaultMarker
	}
	return &Signal{marker: filepath.Clean(markerPath)}
}

// RequestCancel sets the in-memory flag and writes the marker file.
// The flag is set even when the marker cannot be written, in which case the
// write error is returned.
func (s *Signal) RequestCancel() error {
	s.flag.Store(true)
	if err := os.WriteFile(s.marker, []byte("CANCEL"), 0o644); err != nil {
		return fmt.Errorf("write cancel marker: %w", err)
	}
	return nil
}

// IsCancelled reports whether cancellation was requested in this process or
// through the marker file.
func (s *Signal) IsCancelled() bool {
	if s.flag.Load() {
		return true
	}
	_, err := os.Stat(s.marker)
	return err == nil
}

// Clear resets the flag and removes the marker. Clearing a signal that was
// never set is a no-op.
func (s *Signal) Clear() error {
	s.flag.Store(false)
	if err := os.Remove(s.marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cancel marker: %w", err)
	}
	return nil
}

// latch sets only the in-memory flag. The watcher uses it once the marker
// has been observed.
func (s *Signal) latch() {
	s.flag.Store(true)
}
