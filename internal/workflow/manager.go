package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/logging"
	"lexisub/internal/progress"
	"lexisub/internal/services"
)

var (
	// ErrTaskInFlight reports a submission or take for a task that is still
	// running.
	ErrTaskInFlight = errors.New("task already in flight")
	// ErrTaskNotFound reports an unknown task id.
	ErrTaskNotFound = fmt.Errorf("%w: task", services.ErrNotFound)
	// ErrQueueFull reports that the pending queue cannot accept more work.
	ErrQueueFull = fmt.Errorf("%w: task queue full", services.ErrTransient)
	// ErrNotRunning reports a submission while the manager is stopped.
	ErrNotRunning = errors.New("workflow manager not running")
)

// Runner executes one registered task; *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req chunk.Request, tracker *progress.Tracker, cancelled func() bool) (Result, error)
}

// ManagerOptions sizes the worker pool and retention.
type ManagerOptions struct {
	Workers         int
	QueueSize       int
	Retention       time.Duration
	JanitorInterval time.Duration
}

type job struct {
	req       chunk.Request
	cancelled *atomic.Bool
	done      chan struct{}
}

// Manager admits, schedules and tracks chunk tasks.
type Manager struct {
	runner  Runner
	tracker *progress.Tracker
	logger  *slog.Logger
	opts    ManagerOptions

	mu      sync.Mutex
	active  map[string]*job
	queue   chan *job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a stopped manager with its own tracker.
func NewManager(runner Runner, opts ManagerOptions, logger *slog.Logger) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers
	}
	return &Manager{
		runner:  runner,
		tracker: progress.NewTracker(),
		logger:  logging.NewComponentLogger(logger, "workflow-manager"),
		opts:    opts,
		active:  make(map[string]*job),
	}
}

// Tracker exposes the progress tracker.
func (m *Manager) Tracker() *progress.Tracker {
	return m.tracker
}

// Start launches the worker pool and the retention janitor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.queue = make(chan *job, m.opts.QueueSize)
	m.running = true

	m.wg.Add(m.opts.Workers)
	for i := 0; i < m.opts.Workers; i++ {
		go m.worker(runCtx, m.queue)
	}
	if m.opts.Retention > 0 && m.opts.JanitorInterval > 0 {
		m.wg.Add(1)
		go m.janitor(runCtx)
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", m.opts.Workers),
		logging.Int("queue_size", m.opts.QueueSize),
	)
	return nil
}

// Stop cancels running tasks, waits for workers, and fails anything still
// queued as cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	queue := m.queue
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	for {
		select {
		case j := <-queue:
			m.tracker.Update(j.req.TaskID, chunk.StateFailed, 0,
				services.Wrap(services.ErrCancelled, string(chunk.StatePending), "shutdown", "daemon stopped before task started", nil))
			m.release(j)
		default:
			m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
			return
		}
	}
}

// Submit validates and enqueues req. When a run for the same task id is
// already active, the existing record is returned with ErrTaskInFlight.
func (m *Manager) Submit(ctx context.Context, req chunk.Request) (progress.Record, error) {
	normalized, err := req.Normalize()
	if err != nil {
		return progress.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return progress.Record{}, ErrNotRunning
	}
	rec, fresh := m.tracker.Begin(normalized.TaskID)
	if !fresh {
		return rec, ErrTaskInFlight
	}
	j := &job{req: normalized, cancelled: &atomic.Bool{}, done: make(chan struct{})}
	select {
	case m.queue <- j:
	case <-ctx.Done():
		m.tracker.Remove(normalized.TaskID)
		return progress.Record{}, ctx.Err()
	default:
		m.tracker.Remove(normalized.TaskID)
		return progress.Record{}, ErrQueueFull
	}
	m.active[normalized.TaskID] = j
	logging.WithContext(services.WithTaskID(ctx, normalized.TaskID), m.logger).Info("task submitted",
		logging.String(logging.FieldEventType, "task_submitted"),
		logging.String("media_ref", normalized.MediaRef),
		logging.Float64("start_offset", normalized.StartOffset),
		logging.Float64("end_offset", normalized.EndOffset),
		logging.String("source_lang", normalized.SourceLang),
		logging.String("target_lang", normalized.TargetLang),
	)
	return rec, nil
}

// Cancel flags an active task. The running stage finishes; the next stage
// boundary fails the task as cancelled.
func (m *Manager) Cancel(taskID string) error {
	m.mu.Lock()
	j, ok := m.active[taskID]
	m.mu.Unlock()
	if !ok {
		if _, known := m.tracker.Get(taskID); known {
			return nil
		}
		return ErrTaskNotFound
	}
	j.cancelled.Store(true)
	m.logger.Info("task cancellation requested",
		logging.String(logging.FieldTaskID, taskID),
		logging.String(logging.FieldEventType, "task_cancel_requested"),
	)
	return nil
}

// Progress returns the current record.
func (m *Manager) Progress(taskID string) (progress.Record, bool) {
	return m.tracker.Get(taskID)
}

// Take returns a terminal record and evicts it.
func (m *Manager) Take(taskID string) (progress.Record, error) {
	rec, ok := m.tracker.Get(taskID)
	if !ok {
		return progress.Record{}, ErrTaskNotFound
	}
	if !rec.Terminal() {
		return rec, ErrTaskInFlight
	}
	m.tracker.Remove(taskID)
	return rec, nil
}

// Wait blocks until the task is terminal or ctx ends.
func (m *Manager) Wait(ctx context.Context, taskID string) (progress.Record, error) {
	m.mu.Lock()
	j, ok := m.active[taskID]
	m.mu.Unlock()
	if ok {
		select {
		case <-j.done:
		case <-ctx.Done():
			return progress.Record{}, ctx.Err()
		}
	}
	rec, found := m.tracker.Get(taskID)
	if !found {
		return progress.Record{}, ErrTaskNotFound
	}
	return rec, nil
}

// Active returns how many tasks are queued or running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) worker(ctx context.Context, queue <-chan *job) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-queue:
			m.execute(ctx, j)
		}
	}
}

func (m *Manager) execute(ctx context.Context, j *job) {
	defer m.release(j)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task panicked: %v", r)
			m.tracker.Update(j.req.TaskID, chunk.StateFailed, 0, err)
			logging.ErrorWithContext(m.logger, "task panicked", "task_panic",
				logging.String(logging.FieldTaskID, j.req.TaskID),
				logging.Error(err),
			)
		}
	}()
	_, _ = m.runner.Run(ctx, j.req, m.tracker, j.cancelled.Load)
}

func (m *Manager) release(j *job) {
	m.mu.Lock()
	if m.active[j.req.TaskID] == j {
		delete(m.active, j.req.TaskID)
	}
	m.mu.Unlock()
	close(j.done)
}

func (m *Manager) janitor(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.tracker.Evict(m.opts.Retention); n > 0 {
				m.logger.Debug("evicted finished task records",
					logging.Int("evicted", n),
					logging.String(logging.FieldEventType, "retention_evict"),
				)
			}
		}
	}
}
