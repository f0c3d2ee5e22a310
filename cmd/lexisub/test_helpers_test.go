package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/config"
	"lexisub/internal/daemon"
	"lexisub/internal/progress"
	"lexisub/internal/testsupport"
	"lexisub/internal/workflow"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, req chunk.Request, tracker *progress.Tracker, cancelled func() bool) (workflow.Result, error) {
	res := workflow.Result{
		TaskID: req.TaskID,
		SRT:    "1\n00:00:00,000 --> 00:00:01,500\nHello\n",
	}
	tracker.Complete(req.TaskID, res)
	return res, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	daemon     *daemon.Daemon
	mediaPath  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIToken("cli-secret"),
		testsupport.WithTranscriptionBackend("openai"),
	)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	mediaPath := testsupport.WriteMedia(t, base, "clip.mkv")

	return &cliTestEnv{cfg: cfg, configPath: configPath, mediaPath: mediaPath}
}

// startDaemon runs a daemon backed by stubRunner on an ephemeral port.
func (e *cliTestEnv) startDaemon(t *testing.T) string {
	t.Helper()
	mgr := workflow.NewManager(stubRunner{}, workflow.ManagerOptions{Workers: 1, QueueSize: 4}, nil)
	d, err := daemon.New(e.cfg, mgr, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	e.daemon = d
	return d.Address()
}

func runCLI(t *testing.T, args []string, configPath, addr string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nscratch_dir = %q\nlog_dir = %q\ncache_dir = %q\napi_bind = %q\napi_token = %q\n\n"+
			"[transcription]\nbackend = %q\nopenai_api_key = %q\n\n"+
			"[translation]\nbackend = %q\n",
		cfg.Paths.ScratchDir,
		cfg.Paths.LogDir,
		cfg.Paths.CacheDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.Transcription.Backend,
		"sk-test",
		cfg.Translation.Backend,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
