package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"lexisub/internal/logging"
	"lexisub/internal/services"
)

// ErrOutsideScratch rejects a declared output that is not under the scratch root.
var ErrOutsideScratch = errors.New("output path outside scratch root")

const stderrTailBytes = 4096

// pipeGrace bounds how long Wait keeps copying output after the process
// exits. Descendants that left the group may still hold the pipes open.
const pipeGrace = 2 * time.Second

// Spec describes one external process invocation.
type Spec struct {
	// Stage names the pipeline stage for errors and logs.
	Stage      string
	Executable string
	Args       []string
	Env        []string
	Dir        string
	// Timeout bounds wall-clock runtime; zero means no deadline.
	Timeout time.Duration
	// Outputs are files the process is expected to create under the scratch root.
	Outputs []string
	// Inputs are files the process reads. They are never removed and may not
	// double as outputs.
	Inputs []string
}

// Result reports a finished process.
type Result struct {
	ExitCode int
	Outputs  []string
	Stdout   []byte
	Stderr   string
	Duration time.Duration
}

// Launcher spawns processes and manages per-task scratch directories.
type Launcher struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

// New constructs a launcher rooted at scratchRoot, creating it if needed.
func New(scratchRoot string, logger *slog.Logger) (*Launcher, error) {
	if strings.TrimSpace(scratchRoot) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "launcher", "init", "scratch root is required", nil)
	}
	abs, err := filepath.Abs(scratchRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{
		root:   abs,
		logger: logging.NewComponentLogger(logger, "launcher"),
		locks:  make(map[string]*flock.Flock),
	}, nil
}

// ScratchRoot returns the absolute scratch directory.
func (l *Launcher) ScratchRoot() string {
	return l.root
}

// Run starts spec.Executable, waits for it under spec.Timeout, and returns
// its exit status. Timeouts kill the process group; context cancellation does
// the same and reports services.ErrCancelled.
func (l *Launcher) Run(ctx context.Context, spec Spec) (Result, error) {
	stage := spec.Stage
	if stage == "" {
		stage = filepath.Base(spec.Executable)
	}
	outputs, err := l.checkOutputs(spec.Outputs, spec.Inputs)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	logger := logging.WithContext(ctx, l.logger)

	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd := exec.Command(spec.Executable, spec.Args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = pipeGrace

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, services.Wrap(services.ErrCancelled, stage, "launch", "cancelled before start", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		l.removeOutputs(logger, outputs)
		return Result{ExitCode: -1}, &services.StageExecutionError{
			Stage:      stage,
			Executable: spec.Executable,
			ExitCode:   -1,
			Err:        err,
		}
	}
	pgid := cmd.Process.Pid
	logger.Debug("process started",
		logging.String("executable", spec.Executable),
		logging.Int("pid", pgid),
		logging.Duration("timeout", spec.Timeout),
	)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var waitErr error
	var timedOut, cancelled bool
	select {
	case waitErr = <-done:
	case <-deadline:
		timedOut = true
		l.killGroup(logger, pgid)
		waitErr = <-done
	case <-ctx.Done():
		cancelled = true
		l.killGroup(logger, pgid)
		waitErr = <-done
	}

	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		logging.WarnWithContext(logger, "process left output pipes open after exit", "process_pipes_held",
			logging.String("executable", spec.Executable),
			logging.String(logging.FieldImpact, "output written after exit was discarded"),
		)
		waitErr = nil
	}

	result := Result{
		ExitCode: exitCode(cmd, waitErr),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	switch {
	case timedOut:
		l.removeOutputs(logger, outputs)
		return result, &services.StageTimeoutError{Stage: stage, Executable: spec.Executable, Timeout: spec.Timeout}
	case cancelled:
		l.removeOutputs(logger, outputs)
		return result, services.Wrap(services.ErrCancelled, stage, "run", "process killed on cancellation", ctx.Err())
	case waitErr != nil:
		l.removeOutputs(logger, outputs)
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			result.ExitCode = -1
		}
		return result, &services.StageExecutionError{
			Stage:      stage,
			Executable: spec.Executable,
			ExitCode:   result.ExitCode,
			Stderr:     result.Stderr,
		}
	}

	produced, missing := partitionOutputs(outputs)
	if len(missing) > 0 {
		l.removeOutputs(logger, outputs)
		return result, &services.StageExecutionError{
			Stage:      stage,
			Executable: spec.Executable,
			ExitCode:   0,
			Stderr:     result.Stderr,
			Err:        fmt.Errorf("declared output not produced: %s", strings.Join(missing, ", ")),
		}
	}
	result.Outputs = produced
	logger.Debug("process finished",
		logging.String("executable", spec.Executable),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (l *Launcher) checkOutputs(outputs, inputs []string) ([]string, error) {
	protected := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if abs, err := filepath.Abs(in); err == nil {
			protected[abs] = struct{}{}
		}
	}
	resolved := make([]string, 0, len(outputs))
	for _, out := range outputs {
		abs, err := filepath.Abs(out)
		if err != nil {
			return nil, fmt.Errorf("resolve output %q: %w", out, err)
		}
		if !l.inScratch(abs) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideScratch, abs)
		}
		if _, ok := protected[abs]; ok {
			return nil, services.Wrap(services.ErrValidation, "launcher", "check outputs", "output path is also an input: "+abs, nil)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

func (l *Launcher) inScratch(abs string) bool {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (l *Launcher) killGroup(logger *slog.Logger, pgid int) {
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		logging.WarnWithContext(logger, "failed to kill process group", "process_kill_failed",
			logging.Int("pgid", pgid),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the process table for orphans"),
		)
	}
}

// removeOutputs deletes declared outputs. Failures are logged and never returned.
func (l *Launcher) removeOutputs(logger *slog.Logger, outputs []string) {
	for _, path := range outputs {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove partial output", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "partial file left in scratch"),
			)
		}
	}
}

func partitionOutputs(outputs []string) (produced, missing []string) {
	for _, path := range outputs {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			missing = append(missing, path)
			continue
		}
		produced = append(produced, path)
	}
	return produced, missing
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
