// Package progress tracks per-task pipeline progress for polling callers.
package progress

import (
	"sort"
	"sync"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/services"
)

// Failure is the error surface of a failed task.
type Failure struct {
	Category services.Category `json:"category"`
	Message  string            `json:"message"`
}

// Record is a point-in-time view of one task.
type Record struct {
	TaskID    string      `json:"taskId"`
	Stage     chunk.State `json:"stage"`
	Percent   float64     `json:"percent"`
	Error     *Failure    `json:"error"`
	Result    any         `json:"result,omitempty"`
	StartedAt time.Time   `json:"startedAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Terminal reports whether the task has finished.
func (r Record) Terminal() bool {
	return r.Stage.Terminal()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker is a concurrency-safe map of task records.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewTracker constructs an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{records: make(map[string]*Record), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin registers a pending record for taskID. When a non-terminal record
// already exists it is returned with false and nothing changes; a terminal
// record is replaced.
func (t *Tracker) Begin(taskID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.records[taskID]; ok && !existing.Terminal() {
		return *existing, false
	}
	now := t.now()
	rec := &Record{TaskID: taskID, Stage: chunk.StatePending, StartedAt: now, UpdatedAt: now}
	t.records[taskID] = rec
	return *rec, true
}

// Update records a stage and percent. Percent never decreases and is clamped
// to [0, 100]. A non-nil err marks the task failed with its category.
// Updates to unknown or terminal tasks are ignored.
func (t *Tracker) Update(taskID string, stage chunk.State, percent float64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[taskID]
	if !ok || rec.Terminal() {
		return
	}
	if err != nil {
		rec.Stage = chunk.StateFailed
		rec.Error = &Failure{Category: services.Classify(err), Message: err.Error()}
		rec.Result = nil
		rec.UpdatedAt = t.now()
		return
	}
	if stage != "" && rec.Stage.CanTransition(stage) {
		rec.Stage = stage
	}
	rec.Percent = maxPercent(rec.Percent, percent)
	rec.UpdatedAt = t.now()
}

// Complete marks the task completed at 100 percent with its result.
func (t *Tracker) Complete(taskID string, result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[taskID]
	if !ok || rec.Terminal() {
		return
	}
	rec.Stage = chunk.StateCompleted
	rec.Percent = 100
	rec.Result = result
	rec.UpdatedAt = t.now()
}

// Get returns a copy of the record.
func (t *Tracker) Get(taskID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[taskID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Remove deletes the record and returns its last state.
func (t *Tracker) Remove(taskID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[taskID]
	if !ok {
		return Record{}, false
	}
	delete(t.records, taskID)
	return *rec, true
}

// Evict removes terminal records last updated more than olderThan ago and
// returns how many were dropped.
func (t *Tracker) Evict(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-olderThan)
	removed := 0
	for id, rec := range t.records {
		if rec.Terminal() && rec.UpdatedAt.Before(cutoff) {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns every record ordered by start time.
func (t *Tracker) Snapshot() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func maxPercent(current, next float64) float64 {
	if next > 100 {
		next = 100
	}
	if next > current {
		return next
	}
	return current
}
