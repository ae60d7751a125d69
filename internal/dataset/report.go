package dataset

import (
	"encoding/json"
	"sort"
	"time"
)

// SplitCounts holds per-split file counts.
type SplitCounts struct {
	Train      int `json:"train"`
	Test       int `json:"test"`
	Validation int `json:"validation"`
}

// Total returns the sum over all splits.
func (c SplitCounts) Total() int {
	return c.Train + c.Test + c.Validation
}

func (c *SplitCounts) add(split Split, n int) {
	switch split {
	case SplitTrain:
		c.Train += n
	case SplitTest:
		c.Test += n
	case SplitValidation:
		c.Validation += n
	}
}

// SkippedFile records a non-fatal per-file failure with its reason.
type SkippedFile struct {
	Path     string `json:"path"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason"`
}

// Skip reasons recorded in reports. Free-form reasons (wrapped error
// strings) are also allowed.
const (
	SkipReasonUnsupported = "unsupported_format"
	SkipReasonUnreadable  = "unreadable"
	SkipReasonTimeout     = "timeout"
	SkipReasonCategory    = "category_not_allowed"
)

// Report summarizes an organization run. Reports from concurrent
// workers merge by plain counter addition, so the combined result does
// not depend on worker completion order.
type Report struct {
	Categories map[string]SplitCounts `json:"categories"`
	Totals     SplitCounts            `json:"totals"`
	Skipped    []SkippedFile          `json:"skipped,omitempty"`
	BytesMoved int64                  `json:"bytes_moved"`
	StartedAt  time.Time              `json:"started_at"`
	Elapsed    time.Duration          `json:"elapsed_ns"`
}

// NewReport creates an empty report stamped with the current time.
func NewReport() *Report {
	return &Report{
		Categories: make(map[string]SplitCounts),
		StartedAt:  time.Now(),
	}
}

// RecordPlacement counts one placed file.
func (r *Report) RecordPlacement(category string, split Split, bytes int64) {
	counts := r.Categories[category]
	counts.add(split, 1)
	r.Categories[category] = counts
	r.Totals.add(split, 1)
	r.BytesMoved += bytes
}

// RecordCategory ensures a category appears in the report even when it
// contributed no files.
func (r *Report) RecordCategory(category string) {
	if _, ok := r.Categories[category]; !ok {
		r.Categories[category] = SplitCounts{}
	}
}

// RecordSkip counts one skipped file.
func (r *Report) RecordSkip(category, path, reason string) {
	r.Skipped = append(r.Skipped, SkippedFile{Path: path, Category: category, Reason: reason})
}

// SkippedCount returns the number of skipped files.
func (r *Report) SkippedCount() int { return len(r.Skipped) }

// Merge folds another report into this one. Addition is commutative
// and associative, so merge order across workers does not matter.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for category, counts := range other.Categories {
		merged := r.Categories[category]
		merged.Train += counts.Train
		merged.Test += counts.Test
		merged.Validation += counts.Validation
		r.Categories[category] = merged
	}
	r.Totals.Train += other.Totals.Train
	r.Totals.Test += other.Totals.Test
	r.Totals.Validation += other.Totals.Validation
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.BytesMoved += other.BytesMoved
	if !other.StartedAt.IsZero() && (r.StartedAt.IsZero() || other.StartedAt.Before(r.StartedAt)) {
		r.StartedAt = other.StartedAt
	}
}

// Finish stamps the elapsed time and sorts skip entries for stable
// output.
func (r *Report) Finish() {
	r.Elapsed = time.Since(r.StartedAt)
	sort.Slice(r.Skipped, func(i, j int) bool { return r.Skipped[i].Path < r.Skipped[j].Path })
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
