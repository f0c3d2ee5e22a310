package launcher_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"lexisub/internal/launcher"
	"lexisub/internal/logging"
	"lexisub/internal/services"
)

func newLauncher(t *testing.T) *launcher.Launcher {
	t.Helper()
	l, err := launcher.New(filepath.Join(t.TempDir(), "scratch"), logging.NewNop())
	if err != nil {
		t.Fatalf("launcher.New: %v", err)
	}
	return l
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunReturnsProducedOutputs(t *testing.T) {
	l := newLauncher(t)
	out := filepath.Join(l.ScratchRoot(), "out.txt")
	script := writeScript(t, `printf 'data' > "$1"; echo ok`)

	res, err := l.Run(context.Background(), launcher.Spec{
		Stage:      "test",
		Executable: script,
		Args:       []string{out},
		Timeout:    5 * time.Second,
		Outputs:    []string{out},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	if len(res.Outputs) != 1 || res.Outputs[0] != out {
		t.Fatalf("unexpected outputs %v", res.Outputs)
	}
	if strings.TrimSpace(string(res.Stdout)) != "ok" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestRunNonZeroExitRemovesPartialOutput(t *testing.T) {
	l := newLauncher(t)
	out := filepath.Join(l.ScratchRoot(), "partial.wav")
	script := writeScript(t, `printf 'half' > "$1"; echo boom >&2; exit 3`)

	res, err := l.Run(context.Background(), launcher.Spec{
		Stage:      "extract",
		Executable: script,
		Args:       []string{out},
		Timeout:    5 * time.Second,
		Outputs:    []string{out},
	})
	var execErr *services.StageExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected StageExecutionError, got %v", err)
	}
	if execErr.ExitCode != 3 || res.ExitCode != 3 {
		t.Fatalf("exit code = %d/%d, want 3", execErr.ExitCode, res.ExitCode)
	}
	if !strings.Contains(execErr.Stderr, "boom") {
		t.Fatalf("stderr tail missing: %q", execErr.Stderr)
	}
	if services.Classify(err) != services.CategoryStageExecution {
		t.Fatalf("unexpected category %q", services.Classify(err))
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat err=%v", statErr)
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	l := newLauncher(t)
	pidFile := filepath.Join(l.ScratchRoot(), "child.pid")
	out := filepath.Join(l.ScratchRoot(), "never.wav")
	script := writeScript(t, `sleep 30 & echo $! > "$1"; printf 'x' > "$2"; wait`)

	start := time.Now()
	_, err := l.Run(context.Background(), launcher.Spec{
		Stage:      "transcribe",
		Executable: script,
		Args:       []string{pidFile, out},
		Timeout:    300 * time.Millisecond,
		Outputs:    []string{out},
	})
	elapsed := time.Since(start)

	var timeoutErr *services.StageTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected StageTimeoutError, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatal("timeout error should match ErrTimeout")
	}
	if elapsed > 10*time.Second {
		t.Fatalf("Run returned after %s, timeout not enforced", elapsed)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output should be removed after timeout, stat err=%v", statErr)
	}

	data, readErr := os.ReadFile(pidFile)
	if readErr != nil {
		t.Fatalf("read child pid: %v", readErr)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		t.Fatalf("parse child pid: %v", convErr)
	}
	waitUntil := time.Now().Add(3 * time.Second)
	for !processGone(pid) {
		if time.Now().After(waitUntil) {
			t.Fatalf("grandchild %d survived the timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunTimeoutNotHeldByDetachedChild(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	l := newLauncher(t)
	script := writeScript(t, `setsid sleep 6 & sleep 60`)

	start := time.Now()
	_, err := l.Run(context.Background(), launcher.Spec{
		Stage:      "transcribe",
		Executable: script,
		Timeout:    300 * time.Millisecond,
	})
	elapsed := time.Since(start)

	var timeoutErr *services.StageTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected StageTimeoutError, got %v", err)
	}
	if elapsed > 4*time.Second {
		t.Fatalf("Run returned after %s; a detached child holding stdout kept it blocked", elapsed)
	}
}

func TestRunSucceedsWhenDetachedChildHoldsPipes(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	l := newLauncher(t)
	script := writeScript(t, `setsid sleep 6 & echo done`)

	start := time.Now()
	res, err := l.Run(context.Background(), launcher.Spec{Stage: "test", Executable: script, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("Run returned after %s", elapsed)
	}
}

// processGone reports whether pid no longer runs. A zombie awaiting reaping
// by init counts as gone.
func processGone(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return true
	}
	stat := string(data)
	idx := strings.LastIndex(stat, ")")
	if idx < 0 || idx+2 >= len(stat) {
		return false
	}
	state := stat[idx+2]
	return state == 'Z' || state == 'X'
}

func TestRunCancellationKillsProcess(t *testing.T) {
	l := newLauncher(t)
	script := writeScript(t, `exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := l.Run(ctx, launcher.Spec{Stage: "test", Executable: script, Timeout: time.Minute})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRunRejectsOutputsOutsideScratch(t *testing.T) {
	l := newLauncher(t)
	marker := filepath.Join(t.TempDir(), "ran")
	script := writeScript(t, `touch "$1"`)

	_, err := l.Run(context.Background(), launcher.Spec{
		Executable: script,
		Args:       []string{marker},
		Outputs:    []string{filepath.Join(t.TempDir(), "escape.wav")},
	})
	if !errors.Is(err, launcher.ErrOutsideScratch) {
		t.Fatalf("expected ErrOutsideScratch, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Fatal("process must not be launched when outputs are rejected")
	}

	_, err = l.Run(context.Background(), launcher.Spec{
		Executable: script,
		Args:       []string{marker},
		Outputs:    []string{filepath.Join(l.ScratchRoot(), "..", "sibling.wav")},
	})
	if !errors.Is(err, launcher.ErrOutsideScratch) {
		t.Fatalf("expected ErrOutsideScratch for dot-dot path, got %v", err)
	}
}

func TestFailedRunNeverTouchesSource(t *testing.T) {
	l := newLauncher(t)
	source := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(source, []byte("original media bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	before := fileDigest(t, source)

	out := filepath.Join(l.ScratchRoot(), "audio.wav")
	script := writeScript(t, `cat "$1" > "$2"; exit 1`)
	_, err := l.Run(context.Background(), launcher.Spec{
		Executable: script,
		Args:       []string{source, out},
		Outputs:    []string{out},
		Inputs:     []string{source},
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if after := fileDigest(t, source); after != before {
		t.Fatal("source media changed after failed run")
	}

	inScratch := filepath.Join(l.ScratchRoot(), "input.mkv")
	if err := os.WriteFile(inScratch, []byte("media"), 0o644); err != nil {
		t.Fatalf("write scratch input: %v", err)
	}
	_, err = l.Run(context.Background(), launcher.Spec{
		Executable: script,
		Outputs:    []string{inScratch},
		Inputs:     []string{inScratch},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for input used as output, got %v", err)
	}
	if _, statErr := os.Stat(inScratch); statErr != nil {
		t.Fatalf("input must survive: %v", statErr)
	}
}

func fileDigest(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return sha256.Sum256(data)
}

func TestRunLaunchFailure(t *testing.T) {
	l := newLauncher(t)
	_, err := l.Run(context.Background(), launcher.Spec{
		Stage:      "extract",
		Executable: filepath.Join(t.TempDir(), "missing-binary"),
	})
	var execErr *services.StageExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected StageExecutionError, got %v", err)
	}
	if execErr.ExitCode != -1 {
		t.Fatalf("launch failure exit code = %d, want -1", execErr.ExitCode)
	}
}

func TestRunMissingOutputOnCleanExit(t *testing.T) {
	l := newLauncher(t)
	out := filepath.Join(l.ScratchRoot(), "expected.json")
	script := writeScript(t, `exit 0`)
	_, err := l.Run(context.Background(), launcher.Spec{
		Executable: script,
		Outputs:    []string{out},
	})
	var execErr *services.StageExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected StageExecutionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "not produced") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTaskDirLockAndRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	first, err := launcher.New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	second, err := launcher.New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir, err := first.TaskDir("task-1")
	if err != nil {
		t.Fatalf("TaskDir: %v", err)
	}
	if dir != filepath.Join(first.ScratchRoot(), "task-1") {
		t.Fatalf("unexpected dir %q", dir)
	}
	if _, err := second.TaskDir("task-1"); !errors.Is(err, launcher.ErrScratchBusy) {
		t.Fatalf("expected ErrScratchBusy, got %v", err)
	}
	if _, err := first.TaskDir("../escape"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	first.Release("task-1")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("task dir should be removed, stat err=%v", err)
	}
	if _, err := second.TaskDir("task-1"); err != nil {
		t.Fatalf("TaskDir after release: %v", err)
	}
	second.Release("task-1")
}
