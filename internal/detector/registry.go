package detector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrUnknownDetector = errors.New("unknown detector")

// Options carries the construction knobs the registry exposes. Zero
// values mean "use the detector's default".
type Options struct {
	DetectionProbability float64
	ConfidenceThreshold  float64
	Seed                 int64

	Command                string
	ModelComplexity        int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64

	Logger *zap.Logger
}

type Constructor func(opts Options) (Detector, error)

// Registry maps case-insensitive detector names and aliases to
// constructors. It is built once at process start and passed to
// whatever needs to create detectors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
	canon map[string]string
}

// NewRegistry returns a registry with the built-in detectors
// registered: "synthetic" (aliases "dummy", "test") and "mediapipe"
// (alias "mp").
func NewRegistry() *Registry {
	r := &Registry{
		ctors: make(map[string]Constructor),
		canon: make(map[string]string),
	}

	r.Register("synthetic", []string{"dummy", "test"}, func(opts Options) (Detector, error) {
		cfg := DefaultSyntheticConfig()
		if opts.DetectionProbability > 0 {
			cfg.DetectionProbability = opts.DetectionProbability
		}
		if opts.ConfidenceThreshold > 0 {
			cfg.ConfidenceThreshold = opts.ConfidenceThreshold
		}
		if opts.Seed != 0 {
			cfg.Seed = opts.Seed
		}
		return NewSynthetic(cfg), nil
	})

	r.Register("mediapipe", []string{"mp"}, func(opts Options) (Detector, error) {
		if strings.TrimSpace(opts.Command) == "" {
			return nil, errors.New("mediapipe detector requires a worker command")
		}
		cfg := DefaultSidecarConfig(strings.Fields(opts.Command), opts.Logger)
		if opts.ModelComplexity > 0 {
			cfg.ModelComplexity = opts.ModelComplexity
		}
		if opts.MinDetectionConfidence > 0 {
			cfg.MinDetectionConfidence = opts.MinDetectionConfidence
		}
		if opts.MinTrackingConfidence > 0 {
			cfg.MinTrackingConfidence = opts.MinTrackingConfidence
		}
		return NewSidecar(cfg), nil
	})

	return r
}

// Register adds a constructor under a canonical name plus aliases.
// Duplicate names and nil constructors are rejected.
func (r *Registry) Register(name string, aliases []string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("detector %q: nil constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := strings.ToLower(name)
	if _, exists := r.canon[canonical]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	for _, alias := range aliases {
		if _, exists := r.canon[strings.ToLower(alias)]; exists {
			return fmt.Errorf("detector alias %q already registered", alias)
		}
	}

	r.ctors[canonical] = ctor
	r.canon[canonical] = canonical
	for _, alias := range aliases {
		r.canon[strings.ToLower(alias)] = canonical
	}
	return nil
}

// New constructs the named detector. Unknown names report the full set
// of known names.
func (r *Registry) New(name string, opts Options) (Detector, error) {
	r.mu.RLock()
	canonical, ok := r.canon[strings.ToLower(strings.TrimSpace(name))]
	var ctor Constructor
	if ok {
		ctor = r.ctors[canonical]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownDetector, name, strings.Join(r.Names(), ", "))
	}
	return ctor(opts)
}

// Names lists the canonical detector names, sorted.
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
