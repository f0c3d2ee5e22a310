package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"lexisub/internal/chunk"
	"lexisub/internal/config"
	"lexisub/internal/deps"
	"lexisub/internal/logging"
	"lexisub/internal/metrics"
	"lexisub/internal/workflow"
)

// Daemon coordinates the workflow manager and the control API and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *workflow.Manager
	metrics  *metrics.Collector
	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	StartedAt    time.Time           `json:"startedAt,omitzero"`
	APIAddress   string              `json:"apiAddress,omitempty"`
	LockFilePath string              `json:"lockFilePath"`
	ActiveTasks  int                 `json:"activeTasks"`
	TasksByStage map[chunk.State]int `json:"tasksByStage"`
	Dependencies []deps.Status       `json:"dependencies"`
}

// New constructs a daemon. collector may be nil when metrics are disabled.
func New(cfg *config.Config, manager *workflow.Manager, collector *metrics.Collector, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		manager:  manager,
		metrics:  collector,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, d, d.logger)
	return d, nil
}

// Start acquires the lock, starts the workflow manager and the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another lexisub daemon instance is already running (lock %s)", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.manager.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startedAt.Store(time.Now().UTC().UnixNano())
	d.running.Store(true)
	d.logger.Info("lexisub daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api_address", d.api.address()),
	)
	return nil
}

// Stop shuts the API down, stops the workflow and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.manager.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("lexisub daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Address returns the bound API address, empty when not listening.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status reports runtime information and dependency availability.
func (d *Daemon) Status() Status {
	byStage := make(map[chunk.State]int)
	for _, rec := range d.manager.Tracker().Snapshot() {
		byStage[rec.Stage]++
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.address(),
		LockFilePath: d.lockPath,
		ActiveTasks:  d.manager.Active(),
		TasksByStage: byStage,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if ns := d.startedAt.Load(); ns > 0 && status.Running {
		status.StartedAt = time.Unix(0, ns).UTC()
	}
	return status
}
