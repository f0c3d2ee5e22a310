package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lexisub/internal/deps"
)

func TestDepsCommandReportsMissingFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "no-ffmpeg")
	appendConfig(t, env.configPath, "\n[extraction]\nffmpeg_binary = \""+missing+"\"\n")

	out, _, err := runCLI(t, []string{"deps", "--json"}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "required dependencies missing") {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
	var statuses []deps.Status
	if err := json.Unmarshal([]byte(out), &statuses); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(statuses) == 0 || statuses[0].Available {
		t.Fatalf("expected unavailable ffmpeg, got %+v", statuses)
	}
}

func TestDepsCommandPassesWithStubBinary(t *testing.T) {
	env := setupCLITestEnv(t)
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	appendConfig(t, env.configPath, "\n[extraction]\nffmpeg_binary = \""+stub+"\"\n")

	out, _, err := runCLI(t, []string{"deps"}, env.configPath, "")
	if err != nil {
		t.Fatalf("deps: %v\n%s", err, out)
	}
	requireContains(t, out, stub)
}

func appendConfig(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append config: %v", err)
	}
}
