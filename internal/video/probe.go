package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/poselab/swinglab/internal/pose"
)

// Metadata describes one video file as reported by ffprobe. Width and
// Height are the stored (coded) dimensions; Rotation is the container
// rotation that must be applied for upright playback.
type Metadata struct {
	Path        string
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
	Duration    float64
	Rotation    int
}

// DisplayDims returns the upright frame geometry, swapping width and
// height for 90 and 270 degree rotations.
func (m Metadata) DisplayDims() (int, int) {
	if m.Rotation == 90 || m.Rotation == 270 {
		return m.Height, m.Width
	}
	return m.Width, m.Height
}

// Info converts the metadata into the shape persisted in keypoints
// output, using upright dimensions.
func (m Metadata) Info() pose.VideoInfo {
	w, h := m.DisplayDims()
	return pose.VideoInfo{
		Path:        m.Path,
		Width:       w,
		Height:      h,
		FPS:         m.FPS,
		TotalFrames: m.TotalFrames,
	}
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []probeSideData   `json:"side_data_list"`
}

type probeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe reads stream metadata for a video file via ffprobe.
func Probe(ctx context.Context, ffprobePath, videoPath string) (Metadata, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return Metadata{}, fmt.Errorf("video file not accessible: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "v:0",
		videoPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w: %s", videoPath, err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Metadata{}, fmt.Errorf("no video stream in %s", videoPath)
	}
	stream := out.Streams[0]

	meta := Metadata{
		Path:     videoPath,
		Width:    stream.Width,
		Height:   stream.Height,
		Rotation: streamRotation(stream),
	}

	meta.FPS = parseRate(stream.RFrameRate)
	if meta.FPS == 0 {
		meta.FPS = parseRate(stream.AvgFrameRate)
	}

	meta.Duration, _ = strconv.ParseFloat(stream.Duration, 64)
	if meta.Duration == 0 {
		meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}

	meta.TotalFrames, _ = strconv.Atoi(stream.NbFrames)
	if meta.TotalFrames == 0 && meta.Duration > 0 && meta.FPS > 0 {
		meta.TotalFrames = int(math.Round(meta.Duration * meta.FPS))
	}

	return meta, nil
}

// streamRotation resolves the container rotation: the display-matrix
// side data carries the negated angle, the legacy rotate tag carries it
// directly. The result is snapped to {0, 90, 180, 270}.
func streamRotation(stream probeStream) int {
	for _, sd := range stream.SideDataList {
		if sd.Rotation != 0 {
			return snapRotation(-sd.Rotation)
		}
	}
	if v, ok := stream.Tags["rotate"]; ok {
		if deg, err := strconv.ParseFloat(v, 64); err == nil {
			return snapRotation(deg)
		}
	}
	return 0
}

func snapRotation(deg float64) int {
	r := int(math.Round(deg/90)) * 90
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}

func parseRate(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
