package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tubewatch/internal/config"
	"tubewatch/internal/logging"
	"tubewatch/internal/reconciler"
	"tubewatch/internal/server"
	"tubewatch/internal/storage"
)

// Daemon coordinates the background services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *storage.Store
	httpServer *server.Server
	reconciler *reconciler.Reconciler

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	serveErr chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	Bind         string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *storage.Store, srv *server.Server, rec *reconciler.Reconciler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || srv == nil || rec == nil {
		return nil, errors.New("daemon requires config, store, server, and reconciler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "tubewatchd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		httpServer: srv,
		reconciler: rec,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		serveErr:   make(chan error, 1),
	}, nil
}

// Start acquires the instance lock and launches the HTTP listener, the
// reconcile ticker, and the record purge ticker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tubewatch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.httpServer.Start(); err != nil {
			d.serveErr <- err
			cancel()
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.reconcileLoop(runCtx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.purgeLoop(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Server.Bind))
	return nil
}

// Wait blocks until the run context ends or the listener fails.
func (d *Daemon) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-d.serveErr:
		return err
	}
}

// Stop shuts down background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown incomplete", logging.Error(err))
	}

	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
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

// Status reports runtime information for the CLI.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Bind:         d.cfg.Server.Bind,
	}
}

// reconcileLoop runs one cycle immediately and then on the configured
// interval. Cycle failures are logged and retried on the next tick.
func (d *Daemon) reconcileLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Reconciler.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	d.runReconcile(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runReconcile(ctx)
		}
	}
}

func (d *Daemon) runReconcile(ctx context.Context) {
	if err := d.reconciler.Run(ctx); err != nil {
		d.logger.Error("reconcile cycle failed", logging.Error(err))
	}
}

// purgeLoop sweeps expired notification records and delivery locks.
func (d *Daemon) purgeLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Reconciler.PurgeIntervalMin) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := d.store.PurgeExpired(ctx, time.Now())
			if err != nil {
				d.logger.Error("purge expired records failed", logging.Error(err))
				continue
			}
			if purged > 0 {
				d.logger.Info("purged expired records", logging.Int64("count", purged))
			}
		}
	}
}
