package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"narrativ/internal/config"
	"narrativ/internal/logging"
)

// Daemon serves the API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIAddress   string
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, h Handlers, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || h.Planner == nil || h.Images == nil || h.Store == nil {
		return nil, errors.New("daemon requires config, planner, image generator, and board store")
	}
	if h.PublicBaseURL == "" {
		h.PublicBaseURL = cfg.Images.PublicBaseURL
	}
	if h.DefaultProvider == "" {
		h.DefaultProvider = cfg.Images.Provider
	}
	if h.Token == "" {
		h.Token = cfg.Paths.APIToken
	}
	if h.LogPath == "" {
		h.LogPath = cfg.DaemonLogPath()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		api:      newAPIServer(cfg.Paths.APIBind, h, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another narrativd instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("narrativd started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("narrativd stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		APIAddress:   d.api.addr(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
