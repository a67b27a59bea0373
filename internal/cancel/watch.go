package cancel

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the marker's directory and mirrors external changes into
// the in-memory flag: creating the marker latches the flag, removing it
// clears the flag. IsCancelled keeps checking the marker itself, so Watch
// only shortens the path for the common case.
//
// Watching stops when ctx is done.
func (s *Signal) Watch(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create marker watcher: %w", err)
	}

	dir := filepath.Dir(s.marker)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch marker directory %s: %w", dir, err)
	}

	logger = logger.With("component", "cancel_watcher", "marker", s.marker)
	logger.Debug("watching cancel marker")

	go func() {
		defer func() {
			_ = fsw.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.marker {
					continue
				}
				switch {
				case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
					s.latch()
					logger.Info("cancel marker created, cancellation requested")
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					s.flag.Store(false)
					logger.Info("cancel marker removed, cancellation cleared")
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("cancel marker watcher error", "error", err)
			}
		}
	}()

	return nil
}
