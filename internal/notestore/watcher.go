package notestore

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of events from editors that write in steps.
const watchDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the slot file's directory and reloads
// the collection whenever another process modifies the slot (hand edits, sync
// tools). Events caused by this process's own writes are filtered out inside
// ReloadIfChanged via the slot checksum. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, svc *Service, slotPath string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Event names arrive cleaned, so a raw "./notes.json" would never match.
	slotPath = filepath.Clean(slotPath)
	dir := filepath.Dir(slotPath)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("slot", slotPath))

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	scheduleReload := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(watchDebounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			reloaded, err := svc.ReloadIfChanged()
			if err != nil {
				logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if reloaded {
				logger.Info("watcher: slot reloaded after external change")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != slotPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			scheduleReload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
