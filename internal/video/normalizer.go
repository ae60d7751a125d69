package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rskworld/videoset/internal/fsx"
	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/probe"
)

// NormalizeErrorKind classifies normalization failures.
type NormalizeErrorKind string

const (
	NormalizeInvalidSpec        NormalizeErrorKind = "invalid_spec"
	NormalizeUnreadable         NormalizeErrorKind = "unreadable"
	NormalizeZeroFrames         NormalizeErrorKind = "zero_frames"
	NormalizeFPSInvalid         NormalizeErrorKind = "fps_invalid"
	NormalizeDurationOutOfRange NormalizeErrorKind = "duration_out_of_range"
	NormalizeDecodeFailure      NormalizeErrorKind = "decode_failure"
)

// NormalizeError reports a failed normalization. Non-fatal at the
// batch level: the file is skipped and the batch continues.
type NormalizeError struct {
	Kind NormalizeErrorKind
	Path string
	Err  error
}

func (e *NormalizeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize error (%s): %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("normalize error (%s): %s", e.Kind, e.Path)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// Resize holds target output dimensions.
type Resize struct {
	Width  int
	Height int
}

// TargetSpec describes the acceptance criteria and the optional
// resize/transcode step of a normalization pass.
type TargetSpec struct {
	// Resize, when set, re-encodes frames center-cropped then scaled
	// to exactly Width x Height.
	Resize *Resize
	// TargetFormat is the output container (mp4, mov, ...). Empty
	// derives it from the output filename.
	TargetFormat string
	// MinDuration and MaxDuration bound accepted videos in seconds.
	// A zero MaxDuration means unbounded.
	MinDuration float64
	MaxDuration float64
	// AssumeFPS, when positive, accepts fps-invalid videos and encodes
	// the output at this rate. Zero rejects them.
	AssumeFPS float64
}

// Validate checks the spec itself before any file is touched.
func (s TargetSpec) Validate() error {
	if s.Resize != nil && (s.Resize.Width <= 0 || s.Resize.Height <= 0) {
		return &NormalizeError{Kind: NormalizeInvalidSpec,
			Err: fmt.Errorf("resize dimensions must be positive, got %dx%d", s.Resize.Width, s.Resize.Height)}
	}
	if s.MinDuration < 0 || s.MaxDuration < 0 {
		return &NormalizeError{Kind: NormalizeInvalidSpec,
			Err: fmt.Errorf("duration bounds must be non-negative")}
	}
	if s.MaxDuration > 0 && s.MinDuration > s.MaxDuration {
		return &NormalizeError{Kind: NormalizeInvalidSpec,
			Err: fmt.Errorf("min duration %v exceeds max duration %v", s.MinDuration, s.MaxDuration)}
	}
	return nil
}

// Normalized describes a successfully normalized output file.
type Normalized struct {
	Path      string
	SizeBytes int64
}

// Normalizer validates videos against a TargetSpec and optionally
// re-encodes them through ffmpeg.
type Normalizer struct {
	ffmpegPath string
	meta       MetadataSource
	log        *logging.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(ffmpegPath string, meta MetadataSource, log *logging.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{ffmpegPath: ffmpegPath, meta: meta, log: log}
}

// Normalize validates inputPath and writes the normalized video to
// outputPath. The output is staged under a unique temporary name and
// renamed into place only when the encode completed, so a decode
// failure never leaves a partial file visible.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string, spec TargetSpec) (*Normalized, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	meta, err := n.meta.Metadata(ctx, inputPath)
	if err != nil {
		return nil, probeToNormalizeError(inputPath, err)
	}
	if err := validateAgainstSpec(meta, spec); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &NormalizeError{Kind: NormalizeDecodeFailure, Path: inputPath, Err: err}
	}
	staging := filepath.Join(filepath.Dir(outputPath), fsx.StagingName(filepath.Base(outputPath)))

	args := buildNormalizeArgs(inputPath, staging, outputPath, meta, spec)
	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Discard whatever ffmpeg managed to write.
		os.Remove(staging)
		return nil, &NormalizeError{Kind: NormalizeDecodeFailure, Path: inputPath,
			Err: fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())}
	}

	if err := os.Rename(staging, outputPath); err != nil {
		os.Remove(staging)
		return nil, &NormalizeError{Kind: NormalizeDecodeFailure, Path: inputPath, Err: err}
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		return nil, &NormalizeError{Kind: NormalizeDecodeFailure, Path: inputPath, Err: err}
	}
	return &Normalized{Path: outputPath, SizeBytes: fi.Size()}, nil
}

// validateAgainstSpec is the pass/fail gate that runs before any
// resize or conversion work.
func validateAgainstSpec(meta *probe.Metadata, spec TargetSpec) error {
	if !meta.FPSValid && spec.AssumeFPS <= 0 {
		return &NormalizeError{Kind: NormalizeFPSInvalid, Path: meta.Path,
			Err: fmt.Errorf("source frame rate is invalid and no fallback fps is configured")}
	}

	// The probe cannot cross-estimate frame count and duration without
	// a valid rate; with an assumed rate those estimates happen here.
	frameCount := meta.FrameCount
	duration := meta.Duration
	if !meta.FPSValid && spec.AssumeFPS > 0 {
		if frameCount == 0 && duration > 0 {
			frameCount = int64(math.Round(duration * spec.AssumeFPS))
		}
		if duration == 0 && frameCount > 0 {
			duration = float64(frameCount) / spec.AssumeFPS
		}
	}

	if frameCount == 0 {
		return &NormalizeError{Kind: NormalizeZeroFrames, Path: meta.Path}
	}
	if duration < spec.MinDuration {
		return &NormalizeError{Kind: NormalizeDurationOutOfRange, Path: meta.Path,
			Err: fmt.Errorf("duration %.2fs below minimum %.2fs", duration, spec.MinDuration)}
	}
	if spec.MaxDuration > 0 && duration > spec.MaxDuration {
		return &NormalizeError{Kind: NormalizeDurationOutOfRange, Path: meta.Path,
			Err: fmt.Errorf("duration %.2fs above maximum %.2fs", duration, spec.MaxDuration)}
	}
	return nil
}

// buildNormalizeArgs builds the ffmpeg invocation. The resize strategy
// is a deterministic center-crop-then-scale: the frame is scaled so
// the target rectangle is covered, then cropped to it.
func buildNormalizeArgs(inputPath, staging, outputPath string, meta *probe.Metadata, spec TargetSpec) []string {
	args := []string{
		"-i", inputPath,
		"-y",
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
	}

	if spec.Resize != nil {
		filter := fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase:flags=%s,crop=%d:%d",
			spec.Resize.Width, spec.Resize.Height, DefaultInterpolation,
			spec.Resize.Width, spec.Resize.Height,
		)
		args = append(args, "-vf", filter)
	}

	if !meta.FPSValid && spec.AssumeFPS > 0 {
		args = append(args, "-r", fmt.Sprintf("%g", spec.AssumeFPS))
	}

	// The staging name has no meaningful extension, so the container
	// must be explicit.
	format := spec.TargetFormat
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(outputPath), ".")
	}
	args = append(args, "-f", containerFormat(format), staging)
	return args
}

// containerFormat maps file extensions to ffmpeg muxer names.
func containerFormat(ext string) string {
	switch strings.ToLower(ext) {
	case "mkv":
		return "matroska"
	case "mov":
		return "mov"
	case "avi":
		return "avi"
	default:
		return "mp4"
	}
}

func probeToNormalizeError(path string, err error) error {
	var perr *probe.Error
	if errors.As(err, &perr) && perr.Kind == probe.ErrZeroFrames {
		return &NormalizeError{Kind: NormalizeZeroFrames, Path: path, Err: err}
	}
	return &NormalizeError{Kind: NormalizeUnreadable, Path: path, Err: err}
}
