package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeTranslation()
	c.normalizeLLM()
	if err := c.normalizeVocabulary(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("LEXISUB_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Extraction.FFmpegBinary = strings.TrimSpace(c.Extraction.FFmpegBinary)
	if c.Extraction.FFmpegBinary == "" {
		c.Extraction.FFmpegBinary = defaultFFmpegBinary
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultTranscriptionBackend
	}
	t.FallbackBackend = strings.ToLower(strings.TrimSpace(t.FallbackBackend))
	t.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(t.WhisperXVADMethod))
	if t.WhisperXVADMethod == "" {
		t.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	t.WhisperXHuggingFace = strings.TrimSpace(t.WhisperXHuggingFace)
	if t.WhisperXHuggingFace == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			t.WhisperXHuggingFace = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			t.WhisperXHuggingFace = strings.TrimSpace(value)
		}
	}
	t.OpenAIAPIKey = strings.TrimSpace(t.OpenAIAPIKey)
	if t.OpenAIAPIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.OpenAIAPIKey = strings.TrimSpace(value)
		}
	}
	t.OpenAIBaseURL = strings.TrimRight(strings.TrimSpace(t.OpenAIBaseURL), "/")
	if t.OpenAIBaseURL == "" {
		t.OpenAIBaseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(t.WhisperCPPModel) != "" {
		if expanded, err := expandPath(t.WhisperCPPModel); err == nil {
			t.WhisperCPPModel = expanded
		}
	}
}

func (c *Config) normalizeTranslation() {
	t := &c.Translation
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultTranslationBackend
	}
	t.Model = strings.TrimSpace(t.Model)
	t.Device = strings.ToLower(strings.TrimSpace(t.Device))
	if t.Device == "" {
		t.Device = defaultTranslationDevice
	}
	t.Quality = strings.ToLower(strings.TrimSpace(t.Quality))
	if t.Quality == "" {
		t.Quality = defaultTranslationQuality
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("LEXISUB_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
}

func (c *Config) normalizeVocabulary() error {
	if strings.TrimSpace(c.Vocabulary.LexiconDir) == "" {
		return nil
	}
	expanded, err := expandPath(c.Vocabulary.LexiconDir)
	if err != nil {
		return fmt.Errorf("vocabulary.lexicon_dir: %w", err)
	}
	c.Vocabulary.LexiconDir = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
