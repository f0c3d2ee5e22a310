package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	knownTranscriptionBackends = []string{"whisperx", "whispercpp", "openai"}
	knownTranslationBackends   = []string{"llm", "dictionary"}
	knownQualities             = []string{"fast", "standard", "high"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"extraction.timeout_seconds":    c.Extraction.TimeoutSeconds,
		"extraction.sample_rate":        c.Extraction.SampleRate,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"translation.timeout_seconds":   c.Translation.TimeoutSeconds,
	})
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if !contains(knownTranscriptionBackends, t.Backend) {
		return fmt.Errorf("transcription.backend %q is not one of %s", t.Backend, strings.Join(knownTranscriptionBackends, ", "))
	}
	if t.FallbackBackend != "" {
		if !contains(knownTranscriptionBackends, t.FallbackBackend) {
			return fmt.Errorf("transcription.fallback_backend %q is not one of %s", t.FallbackBackend, strings.Join(knownTranscriptionBackends, ", "))
		}
		if t.FallbackBackend == t.Backend {
			return errors.New("transcription.fallback_backend must differ from transcription.backend")
		}
	}
	switch t.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.whisperx_vad_method must be silero or pyannote, got %q", t.WhisperXVADMethod)
	}
	if usesBackend(t, "whispercpp") && strings.TrimSpace(t.WhisperCPPModel) == "" {
		return errors.New("transcription.whispercpp_model must be set when the whispercpp backend is selected")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	t := c.Translation
	if !contains(knownTranslationBackends, t.Backend) {
		return fmt.Errorf("translation.backend %q is not one of %s", t.Backend, strings.Join(knownTranslationBackends, ", "))
	}
	if t.BatchSize <= 0 {
		return errors.New("translation.batch_size must be positive")
	}
	if !contains(knownQualities, t.Quality) {
		return fmt.Errorf("translation.quality %q is not one of %s", t.Quality, strings.Join(knownQualities, ", "))
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_tasks":     c.Workflow.MaxConcurrentTasks,
		"workflow.queue_size":               c.Workflow.QueueSize,
		"workflow.retention_seconds":        c.Workflow.RetentionSeconds,
		"workflow.janitor_interval_seconds": c.Workflow.JanitorIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Vocabulary.MinTokenLength < 1 {
		return errors.New("vocabulary.min_token_length must be at least 1")
	}
	if c.Vocabulary.MaxCandidates < 0 {
		return errors.New("vocabulary.max_candidates must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func usesBackend(t Transcription, name string) bool {
	return t.Backend == name || t.FallbackBackend == name
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
