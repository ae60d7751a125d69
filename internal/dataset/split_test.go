package dataset

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntries(category string, n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			Path:     fmt.Sprintf("/videos/%s/clip_%03d.mp4", category, i),
			Category: category,
		}
	}
	return entries
}

func TestSplitRatiosValidate(t *testing.T) {
	tests := []struct {
		name    string
		ratios  SplitRatios
		wantErr bool
	}{
		{"standard split", SplitRatios{0.7, 0.2, 0.1}, false},
		{"train only", SplitRatios{1.0, 0, 0}, false},
		{"thirds within tolerance", SplitRatios{1.0 / 3, 1.0 / 3, 1.0 / 3}, false},
		{"sum too low", SplitRatios{0.5, 0.2, 0.1}, true},
		{"sum too high", SplitRatios{0.8, 0.2, 0.1}, true},
		{"negative ratio", SplitRatios{1.2, -0.1, -0.1}, true},
		{"nan ratio", SplitRatios{math.NaN(), 0.5, 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ratios.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, ConfigInvalidRatios, cfgErr.Kind)
		})
	}
}

func TestSplitCountsExact(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		ratios SplitRatios
		train  int
		test   int
		val    int
	}{
		{"ten files standard", 10, SplitRatios{0.7, 0.2, 0.1}, 7, 2, 1},
		{"empty category", 0, SplitRatios{0.7, 0.2, 0.1}, 0, 0, 0},
		{"single file goes to train", 1, SplitRatios{0.7, 0.2, 0.1}, 1, 0, 0},
		{"two files", 2, SplitRatios{0.7, 0.2, 0.1}, 2, 0, 0},
		{"three files", 3, SplitRatios{0.7, 0.2, 0.1}, 2, 1, 0},
		{"five files tie favors train", 5, SplitRatios{0.7, 0.2, 0.1}, 4, 1, 0},
		{"remainder tie favors train", 3, SplitRatios{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1, 1, 1},
		{"tie with two slots", 4, SplitRatios{0.5, 0.25, 0.25}, 2, 1, 1},
		{"all validation", 5, SplitRatios{0, 0, 1.0}, 0, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test, val := tt.ratios.SplitCounts(tt.n)
			assert.Equal(t, tt.train, train, "train count")
			assert.Equal(t, tt.test, test, "test count")
			assert.Equal(t, tt.val, val, "validation count")
			assert.Equal(t, tt.n, train+test+val, "counts must sum to n")
		})
	}
}

func TestSplitCountsNeverDropOrDuplicate(t *testing.T) {
	ratios := SplitRatios{0.7, 0.2, 0.1}
	for n := 0; n <= 100; n++ {
		train, test, val := ratios.SplitCounts(n)
		require.Equal(t, n, train+test+val, "n=%d", n)
		assert.Less(t, math.Abs(float64(train)-float64(n)*ratios.Train), 1.0, "n=%d", n)
		assert.Less(t, math.Abs(float64(test)-float64(n)*ratios.Test), 1.0, "n=%d", n)
		assert.Less(t, math.Abs(float64(val)-float64(n)*ratios.Validation), 1.0, "n=%d", n)
	}
}

func TestAssignSplitsDeterministic(t *testing.T) {
	entries := makeEntries("action", 25)
	ratios := SplitRatios{0.7, 0.2, 0.1}

	first, err := AssignSplits("action", entries, ratios, 42)
	require.NoError(t, err)
	second, err := AssignSplits("action", entries, ratios, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same inputs must reproduce the same assignment")

	other, err := AssignSplits("action", entries, ratios, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "a different seed should permute differently")
}

func TestAssignSplitsShuffles(t *testing.T) {
	entries := makeEntries("sports", 50)
	assignment, err := AssignSplits("sports", entries, SplitRatios{0.7, 0.2, 0.1}, 42)
	require.NoError(t, err)

	// The train bucket should not simply be the first 35 files in
	// alphabetical order.
	prefix := make([]Entry, 35)
	copy(prefix, entries[:35])
	assert.NotEqual(t, prefix, assignment[SplitTrain])
}

func TestAssignSplitsPartitions(t *testing.T) {
	entries := makeEntries("drama", 17)
	assignment, err := AssignSplits("drama", entries, SplitRatios{0.7, 0.2, 0.1}, 7)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, split := range Splits() {
		for _, entry := range assignment[split] {
			seen[entry.Path]++
		}
	}
	assert.Len(t, seen, 17, "every entry assigned")
	for path, count := range seen {
		assert.Equal(t, 1, count, "entry %s assigned exactly once", path)
	}
}

func TestAssignSplitsEmpty(t *testing.T) {
	assignment, err := AssignSplits("empty", nil, SplitRatios{0.7, 0.2, 0.1}, 42)
	require.NoError(t, err)
	assert.Equal(t, SplitCounts{}, assignment.Counts())
}

func TestAssignSplitsInvalidRatios(t *testing.T) {
	_, err := AssignSplits("action", makeEntries("action", 5), SplitRatios{0.5, 0.2, 0.1}, 42)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ConfigInvalidRatios, cfgErr.Kind)
}

func TestAssignSplitsSmallCategories(t *testing.T) {
	// Fewer files than splits: some buckets legitimately stay empty.
	for n := 1; n < 3; n++ {
		assignment, err := AssignSplits("tiny", makeEntries("tiny", n), SplitRatios{0.7, 0.2, 0.1}, 42)
		require.NoError(t, err)
		assert.Equal(t, n, assignment.Counts().Total())
	}
}
