package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rskworld/videoset/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

// writeVideos creates n fake video files under root/category.
func writeVideos(t *testing.T, root, category string, n int) {
	t.Helper()
	dir := filepath.Join(root, category)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, "clip_"+string(rune('a'+i))+".mp4")
		require.NoError(t, os.WriteFile(name, []byte("fake video content"), 0o644))
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}

func TestOrganizeCopiesIntoSplits(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 10)
	writeVideos(t, input, "drama", 10)

	org := NewOrganizer(OrganizerOptions{
		Ratios: SplitRatios{0.7, 0.2, 0.1},
		Seed:   42,
	}, testLogger(t))

	report, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)

	for _, category := range []string{"action", "drama"} {
		assert.Equal(t, 7, countFiles(t, filepath.Join(output, "train", category)), category)
		assert.Equal(t, 2, countFiles(t, filepath.Join(output, "test", category)), category)
		assert.Equal(t, 1, countFiles(t, filepath.Join(output, "validation", category)), category)
		assert.Equal(t, SplitCounts{Train: 7, Test: 2, Validation: 1}, report.Categories[category])
	}
	assert.Equal(t, SplitCounts{Train: 14, Test: 4, Validation: 2}, report.Totals)
	assert.Zero(t, report.SkippedCount())

	// Copy mode leaves the sources in place.
	assert.Equal(t, 10, countFiles(t, filepath.Join(input, "action")))
}

func TestOrganizeMoveRemovesSources(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 5)

	org := NewOrganizer(OrganizerOptions{
		Ratios: SplitRatios{0.7, 0.2, 0.1},
		Seed:   1,
		Move:   true,
	}, testLogger(t))

	report, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Totals.Total())
	assert.Zero(t, countFiles(t, filepath.Join(input, "action")))
}

func TestOrganizeSkipsUnsupportedFiles(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 3)
	require.NoError(t, os.WriteFile(filepath.Join(input, "action", "notes.txt"), []byte("x"), 0o644))

	org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{0.7, 0.2, 0.1}}, testLogger(t))
	report, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Totals.Total())
	require.Equal(t, 1, report.SkippedCount())
	assert.Equal(t, SkipReasonUnsupported, report.Skipped[0].Reason)
}

func TestOrganizeCollisionSuffix(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 1)

	org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{1.0, 0, 0}}, testLogger(t))

	_, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)
	// Same input again: the same final name is taken, so the second
	// copy gets a numeric suffix instead of overwriting.
	_, err = org.Organize(context.Background(), input, output)
	require.NoError(t, err)

	dir := filepath.Join(output, "train", "action")
	assert.FileExists(t, filepath.Join(dir, "clip_a.mp4"))
	assert.FileExists(t, filepath.Join(dir, "clip_a_1.mp4"))
}

func TestOrganizeMissingInputFatal(t *testing.T) {
	org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{0.7, 0.2, 0.1}}, testLogger(t))
	_, err := org.Organize(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())

	var orgErr *OrganizeError
	require.ErrorAs(t, err, &orgErr)
	assert.Equal(t, OrganizeInputNotFound, orgErr.Kind)
}

func TestOrganizeInvalidRatiosFatal(t *testing.T) {
	input := t.TempDir()
	writeVideos(t, input, "action", 2)

	org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{0.5, 0.2, 0.1}}, testLogger(t))
	_, err := org.Organize(context.Background(), input, t.TempDir())

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestOrganizeStrictCategoryFilter(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 2)
	writeVideos(t, input, "other", 2)

	org := NewOrganizer(OrganizerOptions{
		Ratios:     SplitRatios{1.0, 0, 0},
		Categories: []string{"action"},
		Strict:     true,
	}, testLogger(t))

	report, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Totals.Total())
	_, hasOther := report.Categories["other"]
	assert.False(t, hasOther)
	require.Equal(t, 1, report.SkippedCount())
	assert.Equal(t, SkipReasonCategory, report.Skipped[0].Reason)
}

func TestOrganizeLenientAllowListAddsEmptyCategory(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 2)

	org := NewOrganizer(OrganizerOptions{
		Ratios:     SplitRatios{1.0, 0, 0},
		Categories: []string{"action", "planned"},
	}, testLogger(t))

	report, err := org.Organize(context.Background(), input, output)
	require.NoError(t, err)

	counts, ok := report.Categories["planned"]
	require.True(t, ok, "allow-listed category with no folder still reported")
	assert.Equal(t, SplitCounts{}, counts)
}

func TestOrganizeCancelKeepsPlacedFiles(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeVideos(t, input, "action", 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{1.0, 0, 0}}, testLogger(t))
	report, err := org.Organize(ctx, input, output)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "partial report returned on cancellation")
	assert.Zero(t, report.Totals.Total())
}

func TestOrganizeDeterministicAcrossRuns(t *testing.T) {
	input := t.TempDir()
	writeVideos(t, input, "action", 12)

	run := func() map[string]SplitCounts {
		output := t.TempDir()
		org := NewOrganizer(OrganizerOptions{Ratios: SplitRatios{0.7, 0.2, 0.1}, Seed: 99}, testLogger(t))
		_, err := org.Organize(context.Background(), input, output)
		require.NoError(t, err)

		placement := make(map[string]SplitCounts)
		for _, split := range Splits() {
			entries, _ := os.ReadDir(filepath.Join(output, string(split), "action"))
			for _, e := range entries {
				c := placement[e.Name()]
				c.add(split, 1)
				placement[e.Name()] = c
			}
		}
		return placement
	}

	assert.Equal(t, run(), run(), "same seed must place every file in the same split")
}
