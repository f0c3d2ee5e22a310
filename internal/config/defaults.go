package config

const (
	defaultScratchDir            = "~/.local/share/lexisub/scratch"
	defaultLogDir                = "~/.local/share/lexisub/logs"
	defaultCacheDir              = "~/.cache/lexisub"
	defaultAPIBind               = "127.0.0.1:7590"
	defaultFFmpegBinary          = "ffmpeg"
	defaultExtractionTimeout     = 120
	defaultSampleRate            = 16000
	defaultTranscriptionBackend  = "whisperx"
	defaultTranscriptionTimeout  = 900
	defaultWhisperXModel         = "large-v3"
	defaultWhisperXVADMethod     = "silero"
	defaultWhisperCPPBinary      = "whisper-cli"
	defaultOpenAIBaseURL         = "https://api.openai.com/v1"
	defaultOpenAIModel           = "whisper-1"
	defaultTranslationBackend    = "llm"
	defaultTranslationDevice     = "cpu"
	defaultTranslationBatchSize  = 8
	defaultTranslationQuality    = "standard"
	defaultTranslationTimeout    = 60
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/lexisub/lexisub"
	defaultLLMTitle              = "lexisub translator"
	defaultLLMTimeoutSeconds     = 60
	defaultMinTokenLength        = 2
	defaultMaxCandidates         = 200
	defaultMaxConcurrentTasks    = 2
	defaultQueueSize             = 32
	defaultRetentionSeconds      = 3600
	defaultJanitorIntervalSecond = 60
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
			CacheDir:   defaultCacheDir,
			APIBind:    defaultAPIBind,
		},
		Extraction: Extraction{
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultExtractionTimeout,
			SampleRate:     defaultSampleRate,
		},
		Transcription: Transcription{
			Backend:           defaultTranscriptionBackend,
			TimeoutSeconds:    defaultTranscriptionTimeout,
			WhisperXModel:     defaultWhisperXModel,
			WhisperXVADMethod: defaultWhisperXVADMethod,
			WhisperCPPBinary:  defaultWhisperCPPBinary,
			OpenAIBaseURL:     defaultOpenAIBaseURL,
			OpenAIModel:       defaultOpenAIModel,
		},
		Translation: Translation{
			Backend:        defaultTranslationBackend,
			Device:         defaultTranslationDevice,
			BatchSize:      defaultTranslationBatchSize,
			Quality:        defaultTranslationQuality,
			TimeoutSeconds: defaultTranslationTimeout,
			CacheEnabled:   true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Vocabulary: Vocabulary{
			MinTokenLength: defaultMinTokenLength,
			MaxCandidates:  defaultMaxCandidates,
		},
		Workflow: Workflow{
			MaxConcurrentTasks:     defaultMaxConcurrentTasks,
			QueueSize:              defaultQueueSize,
			RetentionSeconds:       defaultRetentionSeconds,
			JanitorIntervalSeconds: defaultJanitorIntervalSecond,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}
