package dataset

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
)

// RatioTolerance is the maximum allowed deviation of the ratio sum
// from 1.0 before the configuration is rejected.
const RatioTolerance = 1e-6

// SplitRatios holds the target train/test/validation fractions.
type SplitRatios struct {
	Train      float64 `mapstructure:"train_ratio" json:"train_ratio"`
	Test       float64 `mapstructure:"test_ratio" json:"test_ratio"`
	Validation float64 `mapstructure:"validation_ratio" json:"validation_ratio"`
}

// Validate checks that all ratios are non-negative, finite, and sum to
// 1.0 within RatioTolerance. Invalid ratios are a configuration error,
// never silently normalized.
func (r SplitRatios) Validate() error {
	for _, v := range []float64{r.Train, r.Test, r.Validation} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ConfigError{
				Kind: ConfigInvalidRatios,
				Msg:  fmt.Sprintf("ratios must be non-negative finite numbers, got (%v, %v, %v)", r.Train, r.Test, r.Validation),
			}
		}
	}
	if sum := r.Train + r.Test + r.Validation; math.Abs(sum-1.0) > RatioTolerance {
		return &ConfigError{
			Kind: ConfigInvalidRatios,
			Msg:  fmt.Sprintf("ratios must sum to 1.0, got %v", sum),
		}
	}
	return nil
}

// Assignment maps each split to the entries assigned to it. Slices
// preserve the order produced by the seeded shuffle.
type Assignment map[Split][]Entry

// Counts returns the number of entries per split.
func (a Assignment) Counts() SplitCounts {
	return SplitCounts{
		Train:      len(a[SplitTrain]),
		Test:       len(a[SplitTest]),
		Validation: len(a[SplitValidation]),
	}
}

// SplitCounts returns the integer target sizes for a category of n
// entries using largest-remainder apportionment. The counts always sum
// to n exactly; remainder ties resolve in train, test, validation order.
func (r SplitRatios) SplitCounts(n int) (train, test, validation int) {
	if n == 0 {
		return 0, 0, 0
	}

	type share struct {
		idx       int
		base      int
		remainder float64
	}
	ratios := []float64{r.Train, r.Test, r.Validation}
	shares := make([]share, len(ratios))

	assigned := 0
	for i, ratio := range ratios {
		exact := float64(n) * ratio
		base := int(math.Floor(exact))
		shares[i] = share{idx: i, base: base, remainder: exact - float64(base)}
		assigned += base
	}

	// Hand out the leftover slots by descending remainder. Remainders
	// within epsilon count as equal so float noise cannot flip a tie;
	// the stable sort then keeps the train > test > validation priority.
	const epsilon = 1e-9
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].remainder > shares[j].remainder+epsilon
	})
	for i := 0; i < n-assigned; i++ {
		shares[i%len(shares)].base++
	}

	counts := make([]int, len(ratios))
	for _, s := range shares {
		counts[s.idx] = s.base
	}
	return counts[0], counts[1], counts[2]
}

// AssignSplits partitions the ordered entry list of one category into
// train/test/validation buckets. The permutation is derived from the
// seed and the category name only, so re-running with identical inputs
// reproduces identical assignments.
func AssignSplits(category string, entries []Entry, ratios SplitRatios, seed int64) (Assignment, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	assignment := Assignment{
		SplitTrain:      nil,
		SplitTest:       nil,
		SplitValidation: nil,
	}
	if len(entries) == 0 {
		return assignment, nil
	}

	shuffled := make([]Entry, len(entries))
	copy(shuffled, entries)
	rng := rand.New(rand.NewSource(categorySeed(category, seed)))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	train, test, _ := ratios.SplitCounts(len(shuffled))
	assignment[SplitTrain] = shuffled[:train]
	assignment[SplitTest] = shuffled[train : train+test]
	assignment[SplitValidation] = shuffled[train+test:]
	return assignment, nil
}

// categorySeed mixes the category name into the run seed so that the
// shuffle does not depend on the order categories are processed in.
func categorySeed(category string, seed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(category))
	return seed ^ int64(h.Sum64())
}
