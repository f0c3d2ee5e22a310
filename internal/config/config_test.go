package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lexisub/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnvKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LEXISUB_LLM_API_KEY", "llm-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".local", "share", "lexisub", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7590" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.APIKey != "llm-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Transcription.OpenAIAPIKey != "openai-key" {
		t.Fatalf("expected OpenAI key from env, got %q", cfg.Transcription.OpenAIAPIKey)
	}
	if cfg.Transcription.Backend != "whisperx" {
		t.Fatalf("expected whisperx default backend, got %q", cfg.Transcription.Backend)
	}
	if cfg.Transcription.FallbackBackend != "" {
		t.Fatalf("expected no fallback by default, got %q", cfg.Transcription.FallbackBackend)
	}
	if !cfg.Translation.CacheEnabled {
		t.Fatal("expected translation cache enabled by default")
	}
	if got := cfg.TranslationCachePath(); got != filepath.Join(tempHome, ".cache", "lexisub", "translations.db") {
		t.Fatalf("unexpected cache path %q", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "lexisub.toml")

	type payload struct {
		Translation struct {
			Backend   string `toml:"backend"`
			Model     string `toml:"model"`
			BatchSize int    `toml:"batch_size"`
			Quality   string `toml:"quality"`
		} `toml:"translation"`
		Workflow struct {
			MaxConcurrentTasks int `toml:"max_concurrent_tasks"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Translation.Backend = "Dictionary"
	custom.Translation.Model = "opus-mt"
	custom.Translation.BatchSize = 4
	custom.Translation.Quality = "HIGH"
	custom.Workflow.MaxConcurrentTasks = 5
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Translation.Backend != "dictionary" {
		t.Fatalf("expected normalized backend, got %q", cfg.Translation.Backend)
	}
	if cfg.Translation.Quality != "high" {
		t.Fatalf("expected normalized quality, got %q", cfg.Translation.Quality)
	}
	if cfg.Translation.Model != "opus-mt" || cfg.Translation.BatchSize != 4 {
		t.Fatalf("unexpected translation settings: %+v", cfg.Translation)
	}
	if cfg.Workflow.MaxConcurrentTasks != 5 {
		t.Fatalf("expected 5 workers, got %d", cfg.Workflow.MaxConcurrentTasks)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "lexisub.toml")
	if err := os.WriteFile(configPath, []byte("[workflow]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[transcription]") {
		t.Fatalf("sample config missing transcription section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.ScratchDir, "lexisub") {
		t.Fatalf("expected scratch dir to contain lexisub, got %q", cfg.Paths.ScratchDir)
	}

	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"extraction timeout", func(c *config.Config) { c.Extraction.TimeoutSeconds = 0 }},
		{"unknown transcription backend", func(c *config.Config) { c.Transcription.Backend = "vosk" }},
		{"fallback equals primary", func(c *config.Config) { c.Transcription.FallbackBackend = c.Transcription.Backend }},
		{"whispercpp without model", func(c *config.Config) { c.Transcription.Backend = "whispercpp" }},
		{"unknown translation backend", func(c *config.Config) { c.Translation.Backend = "babelfish" }},
		{"batch size", func(c *config.Config) { c.Translation.BatchSize = 0 }},
		{"quality", func(c *config.Config) { c.Translation.Quality = "ultra" }},
		{"workers", func(c *config.Config) { c.Workflow.MaxConcurrentTasks = 0 }},
		{"min token length", func(c *config.Config) { c.Vocabulary.MinTokenLength = 0 }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
