package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverOptions controls category and file discovery.
type DiscoverOptions struct {
	// Formats lists accepted extensions without the leading dot.
	// Empty means DefaultFormats.
	Formats []string
	// Categories is an optional allow-list. In strict mode discovery
	// is restricted to it; in lenient mode it unions with the folders
	// found on disk.
	Categories []string
	Strict     bool
}

// Discovery is the result of scanning an input root.
type Discovery struct {
	Categories []Category
	// Skipped holds files that were seen but not accepted, with the
	// reason (unsupported extension, category not in allow-list).
	Skipped []SkippedFile
}

// Discover enumerates the immediate subdirectories of inputRoot as
// categories and collects the video files inside each. A missing or
// unreadable input root is fatal; anything else is recorded and
// skipped.
func Discover(inputRoot string, opts DiscoverOptions) (*Discovery, error) {
	rootEntries, err := os.ReadDir(inputRoot)
	if err != nil {
		return nil, &OrganizeError{Kind: OrganizeInputNotFound, Path: inputRoot, Err: err}
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	extAllowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		extAllowed[strings.ToLower(strings.TrimPrefix(f, "."))] = true
	}

	allowed := make(map[string]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		allowed[c] = true
	}

	disc := &Discovery{}
	seen := make(map[string]bool)

	for _, dirEntry := range rootEntries {
		if !dirEntry.IsDir() {
			continue
		}
		name := dirEntry.Name()
		if opts.Strict && len(allowed) > 0 && !allowed[name] {
			disc.Skipped = append(disc.Skipped, SkippedFile{
				Path:     filepath.Join(inputRoot, name),
				Category: name,
				Reason:   SkipReasonCategory,
			})
			continue
		}

		category := Category{Name: name}
		files, err := os.ReadDir(filepath.Join(inputRoot, name))
		if err != nil {
			disc.Skipped = append(disc.Skipped, SkippedFile{
				Path:     filepath.Join(inputRoot, name),
				Category: name,
				Reason:   SkipReasonUnreadable,
			})
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			path := filepath.Join(inputRoot, name, f.Name())
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name()), "."))
			if !extAllowed[ext] {
				disc.Skipped = append(disc.Skipped, SkippedFile{
					Path:     path,
					Category: name,
					Reason:   SkipReasonUnsupported,
				})
				continue
			}
			category.Entries = append(category.Entries, Entry{Path: path, Category: name})
		}

		sort.Slice(category.Entries, func(i, j int) bool {
			return category.Entries[i].Path < category.Entries[j].Path
		})
		disc.Categories = append(disc.Categories, category)
		seen[name] = true
	}

	// Lenient mode: allow-listed categories with no folder on disk
	// still appear, with zero entries.
	if !opts.Strict {
		for _, c := range opts.Categories {
			if !seen[c] {
				disc.Categories = append(disc.Categories, Category{Name: c})
			}
		}
	}

	sort.Slice(disc.Categories, func(i, j int) bool {
		return disc.Categories[i].Name < disc.Categories[j].Name
	})
	return disc, nil
}

// Entries flattens all discovered entries in category order.
func (d *Discovery) Entries() []Entry {
	var entries []Entry
	for _, c := range d.Categories {
		entries = append(entries, c.Entries...)
	}
	return entries
}
