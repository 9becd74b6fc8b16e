package providers

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"narrativ/internal/events"
	"narrativ/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// KeyWatcher publishes events.TopicAPIKeysChanged when the config file that
// holds provider keys is written or created.
type KeyWatcher struct {
	path     string
	bus      *events.Bus
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewKeyWatcher watches path. The parent directory is watched so editors that
// replace the file are still seen.
func NewKeyWatcher(path string, bus *events.Bus, logger *slog.Logger) *KeyWatcher {
	return &KeyWatcher{
		path:     filepath.Clean(path),
		bus:      bus,
		logger:   logging.NewComponentLogger(logger, "key-watcher"),
		debounce: defaultDebounce,
	}
}

// SetDebounce overrides the quiet period before publishing.
func (w *KeyWatcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching. It is non-blocking.
func (w *KeyWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.logger.Debug("watching provider keys", logging.String("path", w.path))
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *KeyWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	watcher := w.watcher
	w.mu.Unlock()

	<-done
	if err := watcher.Close(); err != nil {
		w.logger.Debug("close key watcher", logging.Error(err))
	}
}

func (w *KeyWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("key watcher error", logging.Error(err))
		case <-pending:
			pending = nil
			w.logger.Debug("provider keys changed", logging.String("path", w.path))
			w.bus.Publish(events.Event{Topic: events.TopicAPIKeysChanged})
		}
	}
}
