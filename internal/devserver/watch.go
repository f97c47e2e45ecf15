package devserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const rescanDebounce = 100 * time.Millisecond

// watchDataDir rescans dir whenever a database file is created, removed or
// renamed. Bursts of events collapse into one rescan.
func watchDataDir(ctx context.Context, dir string, rs Rescanner, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		logger.Error("failed to watch data directory", "dir", dir, "error", err)
		<-ctx.Done()
		return nil
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !isSQLiteFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(rescanDebounce, func() {
				logger.Debug("data dir changed, rescanning", "file", event.Name)
				if err := rs.Rescan(); err != nil {
					logger.Error("rescan failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
