package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stats summarizes an organized dataset tree.
type Stats struct {
	TotalVideos int                       `json:"total_videos"`
	Splits      map[string]map[string]int `json:"splits"`
	Labels      map[string]int            `json:"labels"`
	Balance     Balance                   `json:"balance"`
}

// Balance describes how evenly videos are distributed over categories.
type Balance struct {
	MinCategory string  `json:"min_category,omitempty"`
	MaxCategory string  `json:"max_category,omitempty"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Mean        float64 `json:"mean"`
}

// CollectStats walks root/<split>/<category> and counts video files
// per split and category. Split folders that do not exist are reported
// with zero counts. The label mapping assigns integers to category
// names in sorted order.
func CollectStats(root string, formats []string) (*Stats, error) {
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, &OrganizeError{Kind: OrganizeInputNotFound, Path: root, Err: err}
	}

	if len(formats) == 0 {
		formats = DefaultFormats
	}
	extAllowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		extAllowed[strings.ToLower(strings.TrimPrefix(f, "."))] = true
	}

	stats := &Stats{
		Splits: make(map[string]map[string]int),
		Labels: make(map[string]int),
	}
	perCategory := make(map[string]int)

	for _, split := range Splits() {
		counts := make(map[string]int)
		stats.Splits[string(split)] = counts

		splitDir := filepath.Join(root, string(split))
		categories, err := os.ReadDir(splitDir)
		if err != nil {
			continue
		}
		for _, c := range categories {
			if !c.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(splitDir, c.Name()))
			if err != nil {
				continue
			}
			n := 0
			for _, f := range files {
				ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name()), "."))
				if !f.IsDir() && extAllowed[ext] {
					n++
				}
			}
			counts[c.Name()] += n
			perCategory[c.Name()] += n
			stats.TotalVideos += n
		}
	}

	names := make([]string, 0, len(perCategory))
	for name := range perCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		stats.Labels[name] = i
	}

	stats.Balance = balance(perCategory)
	return stats, nil
}

func balance(perCategory map[string]int) Balance {
	var b Balance
	if len(perCategory) == 0 {
		return b
	}
	total := 0
	first := true
	for name, n := range perCategory {
		total += n
		if first || n < b.Min || (n == b.Min && name < b.MinCategory) {
			b.Min, b.MinCategory = n, name
		}
		if first || n > b.Max || (n == b.Max && name < b.MaxCategory) {
			b.Max, b.MaxCategory = n, name
		}
		first = false
	}
	b.Mean = float64(total) / float64(len(perCategory))
	return b
}
