// Package video implements the normalization and frame sampling passes
// that run over an organized dataset tree.
package video

import (
	"context"

	"github.com/rskworld/videoset/internal/probe"
)

// MetadataSource serves probe metadata for a video path. Satisfied by
// catalog.Resolver and by probe.Prober via ProberSource.
type MetadataSource interface {
	Metadata(ctx context.Context, path string) (*probe.Metadata, error)
}

// ProberSource adapts a bare Prober to the MetadataSource interface
// for callers that run without a catalog.
type ProberSource struct {
	Prober *probe.Prober
}

// Metadata probes the file directly.
func (s ProberSource) Metadata(ctx context.Context, path string) (*probe.Metadata, error) {
	return s.Prober.Probe(ctx, path)
}

// Numeric fallbacks. Explicit constants rather than implicit ffmpeg
// defaults so they stay testable.
const (
	// DefaultStride is the sampling stride used when the source frame
	// rate is invalid and no other fallback is configured.
	DefaultStride = 30
	// DefaultInterpolation is the scaler used for resizes.
	DefaultInterpolation = "bicubic"
	// DefaultFrameQuality is the ffmpeg -q:v value for sampled frames.
	DefaultFrameQuality = 2
)
