// Package daemon assembles the long-running service: catalog store, blob
// store, render workers, and the HTTP API, guarded by a filesystem lock so
// only one instance owns the catalog at a time.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/config"
	"gifshelf/internal/deps"
	"gifshelf/internal/export"
	"gifshelf/internal/logging"
	"gifshelf/internal/pipeline"
	"gifshelf/internal/renderer"
	"gifshelf/internal/renderqueue"
	"gifshelf/internal/server"
)

// Daemon owns every runtime component and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store  *catalog.Store
	blobs  *blobstore.Store
	queue  *renderqueue.Queue
	server *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports runtime information for the status command and endpoint.
type Status struct {
	Running      bool
	PID          int
	CatalogPath  string
	LockFilePath string
	APIAddress   string
	Images       int
	Folders      int
	DiskTotal    uint64
	DiskFree     uint64
	Dependencies []deps.Status
}

// New opens the stores and wires the pipeline, render queue, and HTTP server.
// Nothing is started; call Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.New(cfg.Paths.UploadsDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc := renderer.NewService(cfg.Renderer.PythonBinary, cfg.Renderer.ScriptPath)
	p := pipeline.New(store, blobs, svc, logger)
	queue := renderqueue.New(p, cfg.Renderer, logger)
	exports := export.NewService(store, blobs, logger)
	srv := server.New(cfg, store, blobs, p, queue, exports, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "gifshelfd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		blobs:    blobs,
		queue:    queue,
		server:   srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, launches the render workers, and binds
// the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gifshelf daemon instance is already running")
	}

	for _, dep := range deps.Check(deps.RendererRequirements(d.cfg)) {
		if !dep.Available {
			d.logger.Warn("renderer dependency unavailable",
				logging.String("name", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.queue.Start()
	if err := d.server.Start(runCtx); err != nil {
		d.queue.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()))
	return nil
}

// Stop shuts down the API, drains the workers, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.server.Stop()
	d.queue.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held since New. Safe after Stop.
func (d *Daemon) Close() error {
	return d.store.Close()
}

// APIAddress returns the bound API address once started.
func (d *Daemon) APIAddress() string {
	return d.server.Addr()
}

// Status snapshots the daemon's runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		CatalogPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.server.Addr(),
	}
	if images, folders, err := d.store.Counts(ctx); err == nil {
		status.Images = images
		status.Folders = folders
	}
	if usage, err := d.blobs.Usage(); err == nil {
		status.DiskTotal = usage.TotalBytes
		status.DiskFree = usage.FreeBytes
	}
	status.Dependencies = deps.Check(deps.RendererRequirements(d.cfg))
	return status
}
