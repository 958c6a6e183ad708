package detector

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistryNew(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name         string
		detector     string
		opts         Options
		expectErr    bool
		expectedName string
	}{
		{"canonical name", "synthetic", Options{}, false, "synthetic"},
		{"case insensitive", "SYNTHETIC", Options{}, false, "synthetic"},
		{"alias", "dummy", Options{}, false, "synthetic"},
		{"surrounding whitespace", " synthetic ", Options{}, false, "synthetic"},
		{"mediapipe needs a command", "mediapipe", Options{}, true, ""},
		{"mediapipe with command", "mp", Options{Command: "pose-worker"}, false, "mediapipe"},
		{"unknown", "openpose", Options{}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := r.New(tt.detector, tt.opts)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if det.Name() != tt.expectedName {
				t.Errorf("expected detector %q, got %q", tt.expectedName, det.Name())
			}
		})
	}
}

func TestRegistryUnknownListsAvailable(t *testing.T) {
	r := NewRegistry()

	_, err := r.New("openpose", Options{})
	if !errors.Is(err, ErrUnknownDetector) {
		t.Fatalf("expected ErrUnknownDetector, got %v", err)
	}
	for _, name := range []string{"mediapipe", "synthetic"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should list %q: %v", name, err)
		}
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("synthetic", nil, func(Options) (Detector, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := r.Register("custom", []string{"mp"}, func(Options) (Detector, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate alias to be rejected")
	}
	if err := r.Register("nilctor", nil, nil); err == nil {
		t.Error("expected nil constructor to be rejected")
	}

	if err := r.Register("custom", []string{"cx"}, func(opts Options) (Detector, error) {
		return NewSynthetic(DefaultSyntheticConfig()), nil
	}); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if _, err := r.New("cx", Options{}); err != nil {
		t.Errorf("alias of registered detector failed: %v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	names := NewRegistry().Names()
	expected := []string{"mediapipe", "synthetic"}

	if len(names) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, names)
		}
	}
}
