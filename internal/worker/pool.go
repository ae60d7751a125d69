// Package worker runs per-file processing over independent videos with
// a bounded amount of concurrency and a per-file timeout.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rskworld/videoset/internal/dataset"
	"github.com/rskworld/videoset/internal/logging"
)

// FileFunc processes one entry. Returning an error skips the entry;
// the batch continues.
type FileFunc func(ctx context.Context, entry dataset.Entry) error

// Outcome aggregates the results of a batch. Per-worker partial
// outcomes merge by counter addition, so worker completion order never
// affects the final result.
type Outcome struct {
	Processed int                   `json:"processed"`
	Failed    int                   `json:"failed"`
	Skipped   []dataset.SkippedFile `json:"skipped,omitempty"`
	Elapsed   time.Duration         `json:"elapsed_ns"`
}

func (o *Outcome) merge(other *Outcome) {
	o.Processed += other.Processed
	o.Failed += other.Failed
	o.Skipped = append(o.Skipped, other.Skipped...)
}

// Pool processes entries with count workers. Each entry is handled by
// exactly one worker; workers share nothing mutable beyond the
// read-only configuration captured in fn.
type Pool struct {
	count   int
	timeout time.Duration
	log     *logging.Logger
}

// NewPool creates a new pool. count < 1 runs single-threaded; a zero
// timeout disables the per-file bound.
func NewPool(count int, timeout time.Duration, log *logging.Logger) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{count: count, timeout: timeout, log: log}
}

// Run processes all entries and returns the merged outcome. Batch
// cancellation stops dispatching new entries; files already being
// processed run to their own timeout.
func (p *Pool) Run(ctx context.Context, entries []dataset.Entry, fn FileFunc) *Outcome {
	started := time.Now()

	work := make(chan dataset.Entry)
	partials := make(chan *Outcome, p.count)

	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			partials <- p.worker(ctx, work, fn)
		}()
	}

	for _, entry := range entries {
		select {
		case work <- entry:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()
	close(partials)

	outcome := &Outcome{}
	for partial := range partials {
		outcome.merge(partial)
	}
	outcome.Elapsed = time.Since(started)
	return outcome
}

func (p *Pool) worker(ctx context.Context, work <-chan dataset.Entry, fn FileFunc) *Outcome {
	log := p.log.WithWorkerID(uuid.NewString())
	outcome := &Outcome{}

	for entry := range work {
		err := p.processOne(ctx, entry, fn)
		if err == nil {
			outcome.Processed++
			continue
		}

		outcome.Failed++
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = dataset.SkipReasonTimeout
		}
		log.LogFileSkipped(entry.Category, entry.Path, reason)
		outcome.Skipped = append(outcome.Skipped, dataset.SkippedFile{
			Path:     entry.Path,
			Category: entry.Category,
			Reason:   reason,
		})
	}
	return outcome
}

func (p *Pool) processOne(ctx context.Context, entry dataset.Entry, fn FileFunc) error {
	if p.timeout <= 0 {
		return fn(ctx, entry)
	}
	fileCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := fn(fileCtx, entry)
	// A killed ffmpeg surfaces as a wrapped exec error; report the
	// timeout itself when the deadline was the cause.
	if err != nil && fileCtx.Err() == context.DeadlineExceeded {
		return context.DeadlineExceeded
	}
	return err
}
