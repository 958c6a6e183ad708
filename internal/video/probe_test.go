package video

import (
	"math"
	"testing"
)

func TestSnapRotation(t *testing.T) {
	tests := []struct {
		deg      float64
		expected int
	}{
		{0, 0},
		{90, 90},
		{89.9, 90},
		{180, 180},
		{270, 270},
		{-90, 270},
		{-270, 90},
		{359, 0},
		{44, 0},
		{46, 90},
	}

	for _, tt := range tests {
		if got := snapRotation(tt.deg); got != tt.expected {
			t.Errorf("snapRotation(%v) = %d, expected %d", tt.deg, got, tt.expected)
		}
	}
}

func TestStreamRotation(t *testing.T) {
	t.Run("display matrix side data is negated", func(t *testing.T) {
		stream := probeStream{
			SideDataList: []probeSideData{{SideDataType: "Display Matrix", Rotation: -90}},
		}
		if got := streamRotation(stream); got != 90 {
			t.Errorf("expected 90, got %d", got)
		}
	})

	t.Run("legacy rotate tag is direct", func(t *testing.T) {
		stream := probeStream{Tags: map[string]string{"rotate": "90"}}
		if got := streamRotation(stream); got != 90 {
			t.Errorf("expected 90, got %d", got)
		}
	})

	t.Run("side data wins over tag", func(t *testing.T) {
		stream := probeStream{
			SideDataList: []probeSideData{{Rotation: -270}},
			Tags:         map[string]string{"rotate": "180"},
		}
		if got := streamRotation(stream); got != 270 {
			t.Errorf("expected 270, got %d", got)
		}
	})

	t.Run("no rotation info", func(t *testing.T) {
		if got := streamRotation(probeStream{}); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30000/1001", 29.97002997002997},
		{"25/1", 25},
		{"25", 25},
		{"", 0},
		{"30/0", 0},
		{"x/1", 0},
	}

	for _, tt := range tests {
		if got := parseRate(tt.input); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("parseRate(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayDims(t *testing.T) {
	tests := []struct {
		name          string
		rotation      int
		width, height int
		expW, expH    int
	}{
		{"upright", 0, 1920, 1080, 1920, 1080},
		{"quarter turn swaps", 90, 1920, 1080, 1080, 1920},
		{"half turn keeps", 180, 1920, 1080, 1920, 1080},
		{"three quarter turn swaps", 270, 1920, 1080, 1080, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Metadata{Width: tt.width, Height: tt.height, Rotation: tt.rotation}
			w, h := m.DisplayDims()
			if w != tt.expW || h != tt.expH {
				t.Errorf("DisplayDims() = %dx%d, expected %dx%d", w, h, tt.expW, tt.expH)
			}
		})
	}
}
