package video

import (
	"math"
	"testing"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"bare seconds", "4", 4},
		{"bare fractional seconds", "12.5", 12.5},
		{"minutes and seconds", "0:04", 4},
		{"minutes and fractional seconds", "1:30.5", 90.5},
		{"hours minutes seconds", "1:02:03", 3723},
		{"surrounding whitespace", " 0:30 ", 30},
		{"not a timestamp", "abc", 0},
		{"empty", "", 0},
		{"negative seconds", "-5", 0},
		{"too many segments", "1:2:3:4", 0},
		{"garbage minutes", "x:30", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.input)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ParseTimestamp(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFrameIndexAt(t *testing.T) {
	tests := []struct {
		name        string
		seconds     float64
		fps         float64
		totalFrames int
		expected    int
	}{
		{"start of video", 0, 30, 100, 0},
		{"one second in", 1, 30, 100, 30},
		{"fractional offset floors", 1.5, 30, 100, 45},
		{"past the end clamps to last", 10, 30, 100, 99},
		{"negative clamps to first", -1, 30, 100, 0},
		{"unknown total leaves index", 2, 30, 0, 60},
		{"ntsc rate", 3.34, 29.97, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FrameIndexAt(tt.seconds, tt.fps, tt.totalFrames)
			if got != tt.expected {
				t.Errorf("FrameIndexAt(%v, %v, %d) = %d, expected %d",
					tt.seconds, tt.fps, tt.totalFrames, got, tt.expected)
			}
		})
	}
}

func TestPhaseFrameName(t *testing.T) {
	got := PhaseFrameName("loading_toss", "0:04")
	if got != "loading_toss_0-04.jpg" {
		t.Errorf("expected loading_toss_0-04.jpg, got %s", got)
	}

	got = PhaseFrameName("follow_through", "1:02:03")
	if got != "follow_through_1-02-03.jpg" {
		t.Errorf("expected follow_through_1-02-03.jpg, got %s", got)
	}
}
