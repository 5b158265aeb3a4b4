// Package daemon wires the services together, enforces single-instance
// execution, and serves the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"courseforge/internal/api"
	"courseforge/internal/config"
	"courseforge/internal/logging"
	"courseforge/internal/media"
	"courseforge/internal/metadata"
	"courseforge/internal/notifications"
	"courseforge/internal/runlog"
	"courseforge/internal/store"
	"courseforge/internal/synthesis"
	"courseforge/internal/transcript"
	"courseforge/internal/workflow"
)

// Daemon owns the run coordinator, the artifact store, and the API server.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *workflow.Manager
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// New constructs a daemon with all services wired from config.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	artifactStore, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	grace := time.Duration(cfg.Workflow.LogGraceSeconds) * time.Second
	bus := runlog.NewBus(0, grace)

	manager := workflow.NewManager(cfg.Workflow, workflow.Deps{
		Metadata:   metadata.NewService(cfg.YouTube),
		Transcript: transcript.NewService(cfg.Apify, cfg.Transcript),
		Synthesis:  synthesis.NewService(cfg.OpenRouter, cfg.Anthropic),
		Media:      media.NewService(cfg.Apify, cfg.Media, cfg.Cloudinary, cfg.Paths.MediaDir),
		Store:      artifactStore,
		Notifier:   notifications.NewService(cfg.Notifications),
		Bus:        bus,
		Logger:     logger,
	})

	lockPath := filepath.Join(cfg.Paths.DataDir, "courseforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    artifactStore,
		manager:  manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, manager, artifactStore, d.statusSnapshot, logger)
	return d, nil
}

// Start acquires the instance lock, launches the API server, and begins the
// manager's background sweeps.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courseforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	go func() {
		_ = d.manager.Run(d.ctx)
	}()

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()))
	return nil
}

// Stop shuts down the API server, cancels active runs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

func (d *Daemon) statusSnapshot(ctx context.Context) api.DaemonStatus {
	total, err := d.store.CountCourses(ctx)
	if err != nil {
		d.logger.Warn("count courses failed", logging.Error(err))
	}
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveRuns:   d.manager.ActiveRuns(),
		TotalCourses: total,
	}
}
