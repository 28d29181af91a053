package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"sitekeeper/internal/api"
	"sitekeeper/internal/config"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/sites"
)

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components *Components
	server     *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	APIAddress   string `json:"apiAddress,omitempty"`
	DatabasePath string `json:"databasePath"`
	LockFilePath string `json:"lockFilePath"`
	Sites        int    `json:"sites"`
	Connected    int    `json:"connected"`
}

// New constructs a daemon over wired components.
func New(cfg *config.Config, components *Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || components == nil || logger == nil {
		return nil, errors.New("daemon requires config, components, and logger")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		components: components,
		server:     api.NewServer(cfg, components.APIServices(), logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the lock, prunes expired logs, and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sitekeeper daemon instance is already running")
	}

	pruned := logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, "sitekeeper*.log*", d.cfg.Logging.RetentionDays, time.Now())

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("sitekeeper daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
		logging.Int("logs_pruned", pruned),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the API server and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("sitekeeper daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.components.Close()
}

// APIAddress returns the address the API is bound to while running.
func (d *Daemon) APIAddress() string {
	if !d.running.Load() {
		return ""
	}
	return d.server.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.APIAddress(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	list, err := d.components.Sites.List(ctx)
	if err != nil {
		d.logger.Warn("site summary unavailable", logging.Error(err))
		return status
	}
	status.Sites = len(list)
	for _, site := range list {
		if sites.IsConnected(site) {
			status.Connected++
		}
	}
	return status
}

// LockHeld reports whether some process holds the daemon lock at path. It
// briefly takes the lock when it is free.
func LockHeld(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
