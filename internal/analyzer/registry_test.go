package analyzer

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistryNew(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name          string
		analyzer      string
		model         string
		expectedModel string
	}{
		{"bare name uses provider default", "gemini", "", "gemini-2.5-flash"},
		{"google alias", "google", "", "gemini-2.5-flash"},
		{"pro variant", "gemini-pro", "", "gemini-2.5-pro"},
		{"flash variant", "gemini-flash", "", "gemini-2.5-flash"},
		{"case insensitive variant", "GEMINI-PRO", "", "gemini-2.5-pro"},
		{"explicit model wins over variant", "gemini-pro", "gemini-1.5-pro", "gemini-1.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.New(tt.analyzer, Config{APIKey: "test-key", Model: tt.model})
			if err != nil {
				t.Fatalf("Failed to create analyzer: %v", err)
			}
			g, ok := a.(*Gemini)
			if !ok {
				t.Fatalf("expected a Gemini analyzer, got %T", a)
			}
			if g.Model() != tt.expectedModel {
				t.Errorf("expected model %q, got %q", tt.expectedModel, g.Model())
			}
		})
	}
}

func TestRegistryNewUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.New("claude", Config{APIKey: "test-key"})
	if !errors.Is(err, ErrUnknownAnalyzer) {
		t.Fatalf("expected ErrUnknownAnalyzer, got %v", err)
	}
	if !strings.Contains(err.Error(), "gemini") {
		t.Errorf("error should list available analyzers: %v", err)
	}
}

func TestRegistryNewRequiresAPIKey(t *testing.T) {
	if _, err := NewRegistry().New("gemini", Config{}); err == nil {
		t.Error("expected an error without an API key")
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("gemini", nil, func(Config) (Analyzer, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := r.Register("other", []Alias{{Name: "google"}}, func(Config) (Analyzer, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate alias to be rejected")
	}
	if err := r.Register("nilctor", nil, nil); err == nil {
		t.Error("expected nil constructor to be rejected")
	}

	// A rejected alias must not leave the canonical name claimed.
	if err := r.Register("other", nil, func(Config) (Analyzer, error) { return nil, nil }); err != nil {
		t.Errorf("registering after a rejected call failed: %v", err)
	}
}
