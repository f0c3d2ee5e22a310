package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexisub/internal/audio"
	"lexisub/internal/config"
	"lexisub/internal/launcher"
	"lexisub/internal/logging"
	"lexisub/internal/metrics"
	"lexisub/internal/transcription"
	"lexisub/internal/translation"
	"lexisub/internal/vocabulary"
)

// Pipeline bundles a configured Orchestrator with the resources it holds.
type Pipeline struct {
	Orchestrator *Orchestrator
	Launcher     *launcher.Launcher
	Factory      *translation.Factory
	Memory       *translation.Memory
}

// Close releases the translation memory.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	return p.Memory.Close()
}

// Build wires launcher, extractor, backends and lexicons from cfg. collector
// may be nil.
func Build(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	run, err := launcher.New(cfg.Paths.ScratchDir, logger)
	if err != nil {
		return nil, err
	}

	transcriber, err := transcription.DefaultRegistry().Build(cfg, transcription.OptionsFromConfig(cfg, run, logger))
	if err != nil {
		return nil, err
	}

	catalog, err := vocabulary.LoadCatalog(cfg.Vocabulary.LexiconDir)
	if err != nil {
		return nil, fmt.Errorf("load lexicons: %w", err)
	}
	vocab, err := vocabulary.NewExtractor(catalog, vocabulary.Options{
		MinTokenLength: cfg.Vocabulary.MinTokenLength,
		MaxCandidates:  cfg.Vocabulary.MaxCandidates,
	})
	if err != nil {
		return nil, err
	}

	var memory *translation.Memory
	if cfg.Translation.CacheEnabled {
		memory, err = translation.OpenMemory(cfg.TranslationCachePath())
		if err != nil {
			return nil, fmt.Errorf("open translation memory: %w", err)
		}
	}
	factory, err := translation.NewFactoryFromConfig(translation.Setup{
		Config:     cfg,
		Catalog:    catalog,
		Memory:     memory,
		Logger:     logger,
		OnCacheHit: collector.CacheHit,
	})
	if err != nil {
		_ = memory.Close()
		return nil, err
	}

	orch, err := NewOrchestrator(Dependencies{
		Scratch:     run,
		Audio:       audio.NewExtractor(run, cfg.Extraction.FFmpegBinary, cfg.Extraction.SampleRate, cfg.ExtractionTimeout()),
		Transcriber: transcriber,
		Translators: factory,
		Translation: TranslationSettings{
			Backend:   cfg.Translation.Backend,
			Model:     cfg.Translation.Model,
			Device:    cfg.Translation.Device,
			BatchSize: cfg.Translation.BatchSize,
			Quality:   cfg.Translation.Quality,
			Timeout:   cfg.TranslationTimeout(),
		},
		Vocabulary: vocab,
		Metrics:    collector,
		Logger:     logger,
	})
	if err != nil {
		_ = memory.Close()
		return nil, err
	}
	return &Pipeline{Orchestrator: orch, Launcher: run, Factory: factory, Memory: memory}, nil
}

// ManagerOptionsFromConfig maps the workflow config section.
func ManagerOptionsFromConfig(cfg *config.Config) ManagerOptions {
	return ManagerOptions{
		Workers:         cfg.Workflow.MaxConcurrentTasks,
		QueueSize:       cfg.Workflow.QueueSize,
		Retention:       cfg.Retention(),
		JanitorInterval: time.Duration(cfg.Workflow.JanitorIntervalSeconds) * time.Second,
	}
}
