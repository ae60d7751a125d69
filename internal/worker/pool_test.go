package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rskworld/videoset/internal/dataset"
	"github.com/rskworld/videoset/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testEntries(n int) []dataset.Entry {
	entries := make([]dataset.Entry, n)
	for i := range entries {
		entries[i] = dataset.Entry{
			Path:     fmt.Sprintf("/videos/action/clip_%03d.mp4", i),
			Category: "action",
		}
	}
	return entries
}

func TestPoolProcessesAll(t *testing.T) {
	var calls atomic.Int64
	pool := NewPool(4, 0, testLogger(t))

	outcome := pool.Run(context.Background(), testEntries(20), func(ctx context.Context, entry dataset.Entry) error {
		calls.Add(1)
		return nil
	})

	assert.Equal(t, int64(20), calls.Load())
	assert.Equal(t, 20, outcome.Processed)
	assert.Zero(t, outcome.Failed)
	assert.Empty(t, outcome.Skipped)
}

func TestPoolSkipsFailedEntries(t *testing.T) {
	pool := NewPool(2, 0, testLogger(t))

	outcome := pool.Run(context.Background(), testEntries(10), func(ctx context.Context, entry dataset.Entry) error {
		if entry.Path == "/videos/action/clip_003.mp4" {
			return errors.New("corrupt header")
		}
		return nil
	})

	assert.Equal(t, 9, outcome.Processed)
	assert.Equal(t, 1, outcome.Failed)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "/videos/action/clip_003.mp4", outcome.Skipped[0].Path)
	assert.Equal(t, "corrupt header", outcome.Skipped[0].Reason)
}

func TestPoolFileTimeout(t *testing.T) {
	pool := NewPool(2, 20*time.Millisecond, testLogger(t))

	outcome := pool.Run(context.Background(), testEntries(1), func(ctx context.Context, entry dataset.Entry) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})

	assert.Zero(t, outcome.Processed)
	assert.Equal(t, 1, outcome.Failed)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, dataset.SkipReasonTimeout, outcome.Skipped[0].Reason)
}

func TestPoolTimeoutReasonForWrappedErrors(t *testing.T) {
	// Killed subprocesses report exec errors, not context errors; the
	// deadline on the file context still decides the reason.
	pool := NewPool(1, 20*time.Millisecond, testLogger(t))

	outcome := pool.Run(context.Background(), testEntries(1), func(ctx context.Context, entry dataset.Entry) error {
		<-ctx.Done()
		return errors.New("signal: killed")
	})

	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, dataset.SkipReasonTimeout, outcome.Skipped[0].Reason)
}

func TestPoolBatchCancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int64
	pool := NewPool(1, 0, testLogger(t))
	outcome := pool.Run(ctx, testEntries(100), func(ctx context.Context, entry dataset.Entry) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	})

	assert.Less(t, outcome.Processed, 100, "cancellation must stop dispatching new entries")
	assert.GreaterOrEqual(t, outcome.Processed, 3)
}

func TestPoolSingleWorkerFloor(t *testing.T) {
	pool := NewPool(0, 0, testLogger(t))
	outcome := pool.Run(context.Background(), testEntries(5), func(ctx context.Context, entry dataset.Entry) error {
		return nil
	})
	assert.Equal(t, 5, outcome.Processed)
}

func TestPoolEmptyBatch(t *testing.T) {
	pool := NewPool(4, 0, testLogger(t))
	outcome := pool.Run(context.Background(), nil, func(ctx context.Context, entry dataset.Entry) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.Zero(t, outcome.Processed)
	assert.Zero(t, outcome.Failed)
}

func TestPoolOutcomeIndependentOfWorkerCount(t *testing.T) {
	run := func(workers int) (int, int) {
		pool := NewPool(workers, 0, testLogger(t))
		outcome := pool.Run(context.Background(), testEntries(30), func(ctx context.Context, entry dataset.Entry) error {
			if entry.Path == "/videos/action/clip_007.mp4" || entry.Path == "/videos/action/clip_019.mp4" {
				return errors.New("bad")
			}
			return nil
		})
		return outcome.Processed, outcome.Failed
	}

	p1, f1 := run(1)
	p8, f8 := run(8)
	assert.Equal(t, p1, p8)
	assert.Equal(t, f1, f8)
	assert.Equal(t, 28, p1)
	assert.Equal(t, 2, f1)
}
