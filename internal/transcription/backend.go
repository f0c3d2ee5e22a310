package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/config"
	"lexisub/internal/launcher"
	"lexisub/internal/logging"
	"lexisub/internal/services"
)

// Backend converts audio into ordered segments. Segment text may be empty.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, language string) ([]chunk.Segment, error)
}

// Runner executes an external process; *launcher.Launcher satisfies it.
type Runner interface {
	Run(ctx context.Context, spec launcher.Spec) (launcher.Result, error)
}

// WhisperXOptions configures the whisperx backend.
type WhisperXOptions struct {
	Binary      string
	Model       string
	CUDAEnabled bool
	VADMethod   string
	HFToken     string
}

// WhisperCPPOptions configures the whispercpp backend.
type WhisperCPPOptions struct {
	Binary string
	Model  string
}

// OpenAIOptions configures the openai backend.
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Options carries everything a constructor may need. Each backend reads
// only its own section.
type Options struct {
	Runner     Runner
	HTTPClient *http.Client
	Logger     *slog.Logger
	Timeout    time.Duration

	WhisperX   WhisperXOptions
	WhisperCPP WhisperCPPOptions
	OpenAI     OpenAIOptions
}

// OptionsFromConfig maps the transcription config section onto Options.
func OptionsFromConfig(cfg *config.Config, runner Runner, logger *slog.Logger) Options {
	t := cfg.Transcription
	return Options{
		Runner:  runner,
		Logger:  logger,
		Timeout: cfg.TranscriptionTimeout(),
		WhisperX: WhisperXOptions{
			Model:       t.WhisperXModel,
			CUDAEnabled: t.WhisperXCUDAEnabled,
			VADMethod:   t.WhisperXVADMethod,
			HFToken:     t.WhisperXHuggingFace,
		},
		WhisperCPP: WhisperCPPOptions{
			Binary: t.WhisperCPPBinary,
			Model:  t.WhisperCPPModel,
		},
		OpenAI: OpenAIOptions{
			BaseURL: t.OpenAIBaseURL,
			APIKey:  t.OpenAIAPIKey,
			Model:   t.OpenAIModel,
		},
	}
}

// Constructor builds a backend from Options.
type Constructor func(Options) (Backend, error)

// Registry maps backend names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry holding the built-in backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(WhisperXName, NewWhisperX)
	_ = r.Register(WhisperCPPName, NewWhisperCPP)
	_ = r.Register(OpenAIName, NewOpenAI)
	return r
}

// Register adds a constructor. Names are case-insensitive and unique.
func (r *Registry) Register(name string, ctor Constructor) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || ctor == nil {
		return errors.New("transcription: register requires a name and constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[key]; exists {
		return fmt.Errorf("transcription: backend %q already registered", key)
	}
	r.ctors[key] = ctor
	return nil
}

// New constructs the named backend.
func (r *Registry) New(name string, opts Options) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	ctor, ok := r.ctors[key]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "transcribing", "select backend",
			fmt.Sprintf("unknown transcription backend %q (known: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	backend, err := ctor(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcribing", "construct "+key, "", err)
	}
	return backend, nil
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the configured primary backend, wrapped with the
// configured fallback when one is set.
func (r *Registry) Build(cfg *config.Config, opts Options) (Backend, error) {
	primary, err := r.New(cfg.Transcription.Backend, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Transcription.FallbackBackend == "" {
		return primary, nil
	}
	fallback, err := r.New(cfg.Transcription.FallbackBackend, opts)
	if err != nil {
		return nil, err
	}
	return WithFallback(primary, fallback, opts.Logger), nil
}

func invocationError(backend string, err error) error {
	if errors.Is(err, services.ErrCancelled) {
		return err
	}
	var existing *services.BackendInvocationError
	if errors.As(err, &existing) {
		return err
	}
	return &services.BackendInvocationError{Backend: backend, Op: "transcribe", Err: err}
}
