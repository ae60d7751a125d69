package dataset

// Split identifies the ML-stage partition a file belongs to.
type Split string

const (
	SplitTrain      Split = "train"
	SplitTest       Split = "test"
	SplitValidation Split = "validation"
)

// Splits returns all splits in apportionment priority order.
func Splits() []Split {
	return []Split{SplitTrain, SplitTest, SplitValidation}
}

// Entry is a single video file discovered under a category folder.
type Entry struct {
	Path     string
	Category string
}

// Category groups the entries discovered under one category folder.
// Entries are kept in sorted filename order so split assignment sees a
// stable input list.
type Category struct {
	Name    string
	Entries []Entry
}

// DefaultFormats are the video extensions recognized when no explicit
// format list is configured. Matching is case-insensitive.
var DefaultFormats = []string{"mp4", "mov", "avi", "mkv"}
