// Package probe extracts intrinsic video properties through ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrorKind classifies probe failures.
type ErrorKind string

const (
	ErrUnreadable ErrorKind = "unreadable"
	ErrZeroFrames ErrorKind = "zero_frames"
)

// Error reports a failed probe. Probe failures are fatal for the
// single file only; batch drivers skip and continue.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe error (%s): %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("probe error (%s): %s", e.Kind, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Metadata holds the intrinsic properties of a video file. A reported
// frame rate that is zero, negative, or non-finite does not fail the
// probe; it is surfaced as FPSValid=false and every consumer must
// handle that state explicitly instead of dividing by FPS.
type Metadata struct {
	Path       string  `json:"path"`
	Container  string  `json:"container"`
	Codec      string  `json:"codec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FPSValid   bool    `json:"fps_valid"`
	FrameCount int64   `json:"frame_count"`
	Duration   float64 `json:"duration"`
	SizeBytes  int64   `json:"size_bytes"`
}

// ffprobe JSON output shapes.
type probeOutput struct {
	Format  formatInfo   `json:"format"`
	Streams []streamInfo `json:"streams"`
}

type formatInfo struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type streamInfo struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NbFrames     string `json:"nb_frames"`
	FrameRate    string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Prober runs ffprobe against local files.
type Prober struct {
	ffprobePath string
}

// NewProber creates a new prober
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// Probe extracts metadata from a video file. The media handle is owned
// by the ffprobe child process and is released on every exit path,
// including failures.
func (p *Prober) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Kind: ErrUnreadable, Path: path,
			Err: fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())}
	}

	return parseOutput(path, stdout.Bytes())
}

// parseOutput converts raw ffprobe JSON into Metadata.
func parseOutput(path string, raw []byte) (*Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: ErrUnreadable, Path: path,
			Err: fmt.Errorf("failed to parse ffprobe output: %w", err)}
	}

	meta := &Metadata{
		Path:      path,
		Container: out.Format.FormatName,
	}
	if size, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
		meta.SizeBytes = size
	}
	if duration, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && duration > 0 && !math.IsInf(duration, 0) {
		meta.Duration = duration
	}

	var video *streamInfo
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return nil, &Error{Kind: ErrUnreadable, Path: path,
			Err: fmt.Errorf("no video stream found")}
	}

	meta.Codec = video.CodecName
	meta.Width = video.Width
	meta.Height = video.Height
	meta.FPS, meta.FPSValid = parseFrameRate(video.AvgFrameRate, video.FrameRate)

	if frames, err := strconv.ParseInt(video.NbFrames, 10, 64); err == nil {
		meta.FrameCount = frames
	}
	// Containers like MKV omit nb_frames; estimate from duration when
	// the frame rate is trustworthy.
	if meta.FrameCount == 0 && meta.FPSValid && meta.Duration > 0 {
		meta.FrameCount = int64(math.Round(meta.Duration * meta.FPS))
	}
	// Duration the other way around, guarded against invalid fps.
	if meta.Duration == 0 && meta.FPSValid && meta.FrameCount > 0 {
		meta.Duration = float64(meta.FrameCount) / meta.FPS
	}

	if meta.FrameCount == 0 && meta.Duration == 0 {
		return nil, &Error{Kind: ErrZeroFrames, Path: path,
			Err: fmt.Errorf("container reports no frames and no duration")}
	}
	return meta, nil
}

// parseFrameRate parses ffprobe rational frame rates ("30000/1001").
// avg_frame_rate is preferred, r_frame_rate is the fallback. Any rate
// that is zero, negative, or non-finite yields (0, false).
func parseFrameRate(avg, raw string) (float64, bool) {
	for _, s := range []string{avg, raw} {
		if fps, ok := parseRational(s); ok {
			return fps, true
		}
	}
	return 0, false
}

func parseRational(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	num, den := s, "1"
	if idx := strings.Index(s, "/"); idx >= 0 {
		num, den = s[:idx], s[idx+1:]
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	fps := n / d
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, false
	}
	return fps, true
}
