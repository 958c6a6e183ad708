package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Constructor func(cfg Config) (Analyzer, error)

// Registry maps case-insensitive analyzer names and aliases to
// constructors. An alias may carry a default model that is injected
// when the caller leaves Config.Model empty, so "gemini-pro" and
// "gemini-flash" select different models through the same constructor.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	canon  map[string]string
	models map[string]string
}

// NewRegistry returns a registry with the built-in providers
// registered: "gemini" (alias "google") plus the model-variant aliases
// "gemini-pro" and "gemini-flash".
func NewRegistry() *Registry {
	r := &Registry{
		ctors:  make(map[string]Constructor),
		canon:  make(map[string]string),
		models: make(map[string]string),
	}

	r.Register("gemini", []Alias{
		{Name: "google"},
		{Name: "gemini-pro", DefaultModel: "gemini-2.5-pro"},
		{Name: "gemini-flash", DefaultModel: "gemini-2.5-flash"},
	}, func(cfg Config) (Analyzer, error) {
		return NewGemini(cfg)
	})

	return r
}

// Alias is an alternate registry name, optionally pinning a default
// model variant.
type Alias struct {
	Name         string
	DefaultModel string
}

// Register adds a constructor under a canonical name plus aliases.
// Duplicate names and nil constructors are rejected.
func (r *Registry) Register(name string, aliases []Alias, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("analyzer %q: nil constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := strings.ToLower(name)
	if _, exists := r.canon[canonical]; exists {
		return fmt.Errorf("analyzer %q already registered", name)
	}
	for _, alias := range aliases {
		if _, exists := r.canon[strings.ToLower(alias.Name)]; exists {
			return fmt.Errorf("analyzer alias %q already registered", alias.Name)
		}
	}

	r.ctors[canonical] = ctor
	r.canon[canonical] = canonical
	for _, alias := range aliases {
		a := strings.ToLower(alias.Name)
		r.canon[a] = canonical
		if alias.DefaultModel != "" {
			r.models[a] = alias.DefaultModel
		}
	}
	return nil
}

// New constructs the named analyzer, injecting the alias's default
// model when the config does not set one. Unknown names report the
// full set of known names.
func (r *Registry) New(name string, cfg Config) (Analyzer, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	canonical, ok := r.canon[key]
	var ctor Constructor
	if ok {
		ctor = r.ctors[canonical]
		if cfg.Model == "" {
			cfg.Model = r.models[key]
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownAnalyzer, name, strings.Join(r.Names(), ", "))
	}
	return ctor(cfg)
}

// Names lists the canonical analyzer names, sorted.
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
