package video

import (
	"math"
	"strconv"
	"strings"
)

// ParseTimestamp converts "M:SS", "H:MM:SS" or a bare seconds value into
// seconds. Malformed input yields 0 rather than an error so a bad
// timestamp in an analysis result never fails the caller.
func ParseTimestamp(ts string) float64 {
	parts := strings.Split(strings.TrimSpace(ts), ":")

	var seconds float64
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		seconds = v
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0
		}
		s, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0
		}
		seconds = float64(m)*60 + s
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0
		}
		s, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0
		}
		seconds = float64(h)*3600 + float64(m)*60 + s
	default:
		return 0
	}

	if seconds < 0 {
		return 0
	}
	return seconds
}

// FrameIndexAt maps a second offset to a frame index, clamped to the
// valid range. Timestamps past the end resolve to the last frame,
// negative ones to the first.
func FrameIndexAt(seconds, fps float64, totalFrames int) int {
	idx := int(math.Floor(seconds * fps))
	if idx < 0 {
		idx = 0
	}
	if totalFrames > 0 && idx > totalFrames-1 {
		idx = totalFrames - 1
	}
	return idx
}
