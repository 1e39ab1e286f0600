package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultConfigDebounce coalesces the burst of events an editor save produces.
const DefaultConfigDebounce = 100 * time.Millisecond

// ConfigWatcher signals when the config file changes on disk.
// The parent directory is watched so that atomic replace-on-save is seen.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	logger   *zap.Logger
}

// NewConfigWatcher creates a watcher for the file at path.
func NewConfigWatcher(path string, debounce time.Duration, logger *zap.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		logger:   logger,
	}
}

// Start begins watching. Run must be called to deliver changes.
func (cw *ConfigWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(cw.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(cw.path), err)
	}
	cw.watcher = w
	return nil
}

// Changes returns the notification channel. Pending notifications coalesce.
func (cw *ConfigWatcher) Changes() <-chan struct{} {
	return cw.changes
}

// Run forwards debounced change notifications until ctx is cancelled.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer cw.watcher.Close()

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cw.logger.Debug("config file event", zap.String("op", event.Op.String()))
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(cw.debounce)

		case <-debounceTimer.C:
			select {
			case cw.changes <- struct{}{}:
			default:
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
