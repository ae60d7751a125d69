package dataset

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rskworld/videoset/internal/fsx"
	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/metrics"
)

// OrganizerOptions is the full, explicit configuration of one
// organization run. Built once, immutable afterwards.
type OrganizerOptions struct {
	Ratios     SplitRatios
	Seed       int64
	Move       bool
	Formats    []string
	Categories []string
	Strict     bool
}

// Organizer partitions a raw per-category input tree into the
// train/test/validation dataset tree.
type Organizer struct {
	opts OrganizerOptions
	log  *logging.Logger
}

// NewOrganizer creates a new organizer
func NewOrganizer(opts OrganizerOptions, log *logging.Logger) *Organizer {
	return &Organizer{opts: opts, log: log}
}

// Organize discovers categories under inputRoot, assigns every file to
// a split, and places it at outputRoot/<split>/<category>/<filename>.
// Per-file failures are recorded in the report and skipped; only an
// invalid configuration or an unusable input/output root aborts the
// run. On context cancellation the files placed so far stay fully
// visible and the partial report is returned alongside the context
// error.
func (o *Organizer) Organize(ctx context.Context, inputRoot, outputRoot string) (*Report, error) {
	if err := o.opts.Ratios.Validate(); err != nil {
		return nil, err
	}

	if fi, err := os.Stat(inputRoot); err != nil || !fi.IsDir() {
		return nil, &OrganizeError{Kind: OrganizeInputNotFound, Path: inputRoot, Err: err}
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, &OrganizeError{Kind: OrganizeOutputUnwritable, Path: outputRoot, Err: err}
	}

	disc, err := Discover(inputRoot, DiscoverOptions{
		Formats:    o.opts.Formats,
		Categories: o.opts.Categories,
		Strict:     o.opts.Strict,
	})
	if err != nil {
		return nil, err
	}

	report := NewReport()
	for _, skip := range disc.Skipped {
		report.RecordSkip(skip.Category, skip.Path, skip.Reason)
		metrics.RecordSkip(skip.Reason)
	}

	for _, category := range disc.Categories {
		report.RecordCategory(category.Name)

		assignment, err := AssignSplits(category.Name, category.Entries, o.opts.Ratios, o.opts.Seed)
		if err != nil {
			return nil, err
		}
		counts := assignment.Counts()
		o.log.WithCategory(category.Name).Infof("Assigned %d files: train=%d test=%d validation=%d",
			counts.Total(), counts.Train, counts.Test, counts.Validation)

		for _, split := range Splits() {
			for _, entry := range assignment[split] {
				if err := ctx.Err(); err != nil {
					report.Finish()
					return report, err
				}
				o.placeFile(entry, split, outputRoot, report)
			}
		}
	}

	report.Finish()
	return report, nil
}

// placeFile stages one file into its split/category folder. Failures
// are non-fatal: the file is recorded as skipped and the run moves on.
func (o *Organizer) placeFile(entry Entry, split Split, outputRoot string, report *Report) {
	dstDir := filepath.Join(outputRoot, string(split), entry.Category)
	name := filepath.Base(entry.Path)

	final, bytes, err := fsx.Place(entry.Path, dstDir, name, o.opts.Move)
	if err != nil {
		o.log.LogFileSkipped(entry.Category, entry.Path, err.Error())
		report.RecordSkip(entry.Category, entry.Path, err.Error())
		metrics.RecordSkip(SkipReasonUnreadable)
		return
	}

	o.log.LogFilePlaced(entry.Category, string(split), final, bytes)
	report.RecordPlacement(entry.Category, split, bytes)
	metrics.RecordPlacement(string(split), bytes)
}
