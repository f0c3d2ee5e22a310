package translation

import (
	"log/slog"
	"time"

	"lexisub/internal/config"
	"lexisub/internal/logging"
	"lexisub/internal/vocabulary"
)

// Setup wires the built-in backends from configuration.
type Setup struct {
	Config  *config.Config
	Catalog *vocabulary.Catalog
	Memory  *Memory
	Logger  *slog.Logger
	// OnCacheHit is invoked for each translation served from Memory.
	OnCacheHit  func()
	ChatOptions []ChatOption
}

// NewFactoryFromConfig registers the llm and dictionary backends. When a
// Memory is supplied every instance is wrapped with it.
func NewFactoryFromConfig(s Setup) (*Factory, error) {
	logger := logging.NewComponentLogger(s.Logger, "translation")
	var opts []FactoryOption
	if s.Memory != nil {
		memory := s.Memory
		opts = append(opts, WithWrapper(func(b Backend, build BuildParams) Backend {
			return memory.Wrap(b, build, s.OnCacheHit, func(err error) {
				logging.WarnWithContext(logger, "translation memory unavailable", "translation_cache_error",
					logging.String(logging.FieldBackend, b.Name()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "translation served without cache"),
				)
			})
		}))
	}
	f := NewFactory(opts...)

	llm := s.Config.LLM
	client := NewChatClient(ChatConfig{
		APIKey:   llm.APIKey,
		Endpoint: llm.BaseURL,
		Referer:  llm.Referer,
		Title:    llm.Title,
		Timeout:  time.Duration(llm.TimeoutSeconds) * time.Second,
	}, s.ChatOptions...)
	if err := f.Register(BackendLLM, NewLLMConstructor(client, llm.Model)); err != nil {
		return nil, err
	}
	if err := f.Register(BackendDictionary, NewDictionaryConstructor(s.Catalog)); err != nil {
		return nil, err
	}
	return f, nil
}

// ParamsFromConfig builds the factory parameters for one task.
func ParamsFromConfig(cfg *config.Config, sourceLang, targetLang string) FactoryParams {
	t := cfg.Translation
	return FactoryParams{
		Model:      t.Model,
		Device:     t.Device,
		BatchSize:  t.BatchSize,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Quality:    t.Quality,
	}
}
