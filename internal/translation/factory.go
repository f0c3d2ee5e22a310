package translation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lexisub/internal/services"
)

// Result is the structured output of a translation.
type Result struct {
	TranslatedText string `json:"translatedText"`
	Backend        string `json:"backend"`
}

// Backend translates one piece of text.
type Backend interface {
	Name() string
	Translate(ctx context.Context, text string, call CallParams) (Result, error)
}

// Constructor builds a backend from construction parameters only.
type Constructor func(BuildParams) (Backend, error)

type cacheKey struct {
	name  string
	build BuildParams
}

// Factory creates and caches backends.
type Factory struct {
	mu        sync.Mutex
	ctors     map[string]Constructor
	instances map[cacheKey]Backend
	wrap      func(Backend, BuildParams) Backend
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithWrapper decorates every newly constructed backend, for example with a
// translation memory.
func WithWrapper(wrap func(Backend, BuildParams) Backend) FactoryOption {
	return func(f *Factory) {
		f.wrap = wrap
	}
}

// NewFactory returns a factory with no registered backends.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		ctors:     make(map[string]Constructor),
		instances: make(map[cacheKey]Backend),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a named constructor.
func (f *Factory) Register(name string, ctor Constructor) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || ctor == nil {
		return errors.New("translation: register requires a name and constructor")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.ctors[key]; exists {
		return fmt.Errorf("translation: backend %q already registered", key)
	}
	f.ctors[key] = ctor
	return nil
}

// Get returns the cached backend for (name, build params), constructing it
// on first use, together with the call parameters for Translate.
func (f *Factory) Get(name string, params FactoryParams) (Backend, CallParams, error) {
	build, call := params.Split()
	key := cacheKey{name: strings.ToLower(strings.TrimSpace(name)), build: build}

	f.mu.Lock()
	defer f.mu.Unlock()
	if backend, ok := f.instances[key]; ok {
		return backend, call, nil
	}
	ctor, ok := f.ctors[key.name]
	if !ok {
		return nil, CallParams{}, services.Wrap(services.ErrConfiguration, "translating", "select backend",
			fmt.Sprintf("unknown translation backend %q (known: %s)", name, strings.Join(f.namesLocked(), ", ")), nil)
	}
	backend, err := ctor(build)
	if err != nil {
		return nil, CallParams{}, services.Wrap(services.ErrConfiguration, "translating", "construct "+key.name, "", err)
	}
	if f.wrap != nil {
		backend = f.wrap(backend, build)
	}
	f.instances[key] = backend
	return backend, call, nil
}

// Instances reports how many backends have been constructed.
func (f *Factory) Instances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// Names lists registered backends.
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namesLocked()
}

func (f *Factory) namesLocked() []string {
	names := make([]string, 0, len(f.ctors))
	for name := range f.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invocationError(backend string, err error) error {
	var existing *services.BackendInvocationError
	if errors.As(err, &existing) {
		return err
	}
	return &services.BackendInvocationError{Backend: backend, Op: "translate", Err: err}
}
