package video

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/probe"
)

// SampleErrorKind classifies sampling failures.
type SampleErrorKind string

const (
	SampleUnreadable    SampleErrorKind = "unreadable"
	SampleDecodeFailure SampleErrorKind = "decode_failure"
)

// SampleError reports a failed or truncated sampling pass.
type SampleError struct {
	Kind SampleErrorKind
	Path string
	Err  error
}

func (e *SampleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sample error (%s): %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("sample error (%s): %s", e.Kind, e.Path)
}

func (e *SampleError) Unwrap() error { return e.Err }

// IntervalSpec selects the sampling interval: either a target rate in
// frames per second or a fixed stride in source frames. Stride wins
// when both are set.
type IntervalSpec struct {
	TargetFPS     float64
	Stride        int
	DefaultStride int
}

// EffectiveStride computes the stride in source frames for one video.
// When the source frame rate is invalid the configured default stride
// is used instead of dividing by a bad value; the result is always at
// least 1.
func EffectiveStride(meta *probe.Metadata, spec IntervalSpec) int {
	if spec.Stride > 0 {
		return spec.Stride
	}
	if spec.TargetFPS > 0 && meta != nil && meta.FPSValid {
		stride := int(math.Round(meta.FPS / spec.TargetFPS))
		if stride < 1 {
			return 1
		}
		return stride
	}
	if spec.DefaultStride > 0 {
		return spec.DefaultStride
	}
	return DefaultStride
}

// FrameRecord identifies one extracted frame.
type FrameRecord struct {
	Video     string  `json:"video"`
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path"`
}

// Frames is a finite, non-restartable sequence of frame records in
// strictly increasing index order. After Next returns false, Err
// reports whether the sequence was truncated by a decode error.
type Frames struct {
	records []FrameRecord
	pos     int
	err     error
}

// Next returns the next frame record.
func (f *Frames) Next() (FrameRecord, bool) {
	if f.pos >= len(f.records) {
		return FrameRecord{}, false
	}
	rec := f.records[f.pos]
	f.pos++
	return rec, true
}

// Err returns the decode error that truncated the sequence, if any.
func (f *Frames) Err() error { return f.err }

// Count returns the total number of frames produced.
func (f *Frames) Count() int { return len(f.records) }

// Sampler extracts frames from videos at a configured interval.
type Sampler struct {
	ffmpegPath string
	format     string
	quality    int
	meta       MetadataSource
	log        *logging.Logger
}

// NewSampler creates a new sampler. format is the image extension
// (jpg, png); quality is the ffmpeg -q:v value for jpg output.
func NewSampler(ffmpegPath, format string, quality int, meta MetadataSource, log *logging.Logger) *Sampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if format == "" {
		format = "jpg"
	}
	if quality <= 0 {
		quality = DefaultFrameQuality
	}
	return &Sampler{ffmpegPath: ffmpegPath, format: format, quality: quality, meta: meta, log: log}
}

// Sample extracts frames from inputPath into outputDir as
// <stem>_<index>.<format>. Frames are decoded into a hidden staging
// directory so partially written images never appear under final
// names; each staged frame is finalized in index order. If the decode
// fails partway, the frames produced so far are kept and the error is
// reported through Frames.Err.
func (s *Sampler) Sample(ctx context.Context, inputPath, outputDir string, spec IntervalSpec) (*Frames, error) {
	meta, err := s.meta.Metadata(ctx, inputPath)
	if err != nil {
		return nil, &SampleError{Kind: SampleUnreadable, Path: inputPath, Err: err}
	}
	stride := EffectiveStride(meta, spec)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &SampleError{Kind: SampleDecodeFailure, Path: inputPath, Err: err}
	}
	stagingDir := filepath.Join(outputDir, ".tmp-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, &SampleError{Kind: SampleDecodeFailure, Path: inputPath, Err: err}
	}
	defer os.RemoveAll(stagingDir)

	pattern := filepath.Join(stagingDir, "frame_%06d."+s.format)
	args := []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride),
		"-vsync", "vfr",
		"-q:v", fmt.Sprintf("%d", s.quality),
		"-start_number", "0",
		"-y",
		pattern,
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	records, finErr := s.finalizeFrames(stagingDir, outputDir, inputPath, meta, stride)
	if finErr != nil {
		return nil, &SampleError{Kind: SampleDecodeFailure, Path: inputPath, Err: finErr}
	}

	frames := &Frames{records: records}
	if runErr != nil {
		decodeErr := &SampleError{Kind: SampleDecodeFailure, Path: inputPath,
			Err: fmt.Errorf("ffmpeg failed: %w, stderr: %s", runErr, stderr.String())}
		if len(records) == 0 {
			return nil, decodeErr
		}
		// Truncated mid-stream: keep what was produced, surface the
		// error to the caller.
		frames.err = decodeErr
	}
	return frames, nil
}

// finalizeFrames moves staged frames into outputDir under their final
// indexed names, in increasing index order.
func (s *Sampler) finalizeFrames(stagingDir, outputDir, inputPath string, meta *probe.Metadata, stride int) ([]FrameRecord, error) {
	staged, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(staged))
	for _, f := range staged {
		if !f.IsDir() && strings.HasSuffix(f.Name(), "."+s.format) {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	records := make([]FrameRecord, 0, len(names))
	for i, name := range names {
		final := filepath.Join(outputDir, fmt.Sprintf("%s_%06d.%s", stem, i, s.format))
		if err := os.Rename(filepath.Join(stagingDir, name), final); err != nil {
			return records, err
		}
		timestamp := 0.0
		if meta.FPSValid {
			timestamp = float64(i*stride) / meta.FPS
		}
		records = append(records, FrameRecord{
			Video:     inputPath,
			Index:     i,
			Timestamp: timestamp,
			Path:      final,
		})
	}
	return records, nil
}
