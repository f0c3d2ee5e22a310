package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"lexisub/internal/logging"
	"lexisub/internal/services"
)

// ErrScratchBusy reports a task directory already held by another run.
var ErrScratchBusy = errors.New("task scratch directory is in use")

const lockName = ".lock"

// TaskDir creates and locks <scratch>/<taskID>/. The directory stays locked
// until Release.
func (l *Launcher) TaskDir(taskID string) (string, error) {
	name, err := safeName(taskID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(l.root, name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[name]; held {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task scratch dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("lock task scratch dir: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrScratchBusy, dir)
	}
	l.locks[name] = lock
	return dir, nil
}

// Release unlocks and removes the task scratch directory. Failures are
// logged and never returned to the caller.
func (l *Launcher) Release(taskID string) {
	name, err := safeName(taskID)
	if err != nil {
		return
	}
	dir := filepath.Join(l.root, name)

	l.mu.Lock()
	lock := l.locks[name]
	delete(l.locks, name)
	l.mu.Unlock()

	if lock != nil {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(l.logger, "failed to unlock task scratch dir", "cleanup_failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
			)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(l.logger, "failed to remove task scratch dir", "cleanup_failed",
			logging.String(logging.FieldTaskID, taskID),
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch space not reclaimed"),
		)
	}
}

func safeName(taskID string) (string, error) {
	name := strings.TrimSpace(taskID)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", services.Wrap(services.ErrValidation, "launcher", "task dir", fmt.Sprintf("invalid task id %q", taskID), nil)
	}
	return name, nil
}
