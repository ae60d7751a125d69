package dataset

import "fmt"

// ConfigErrorKind classifies configuration errors. These are always
// fatal and are raised before any file I/O happens.
type ConfigErrorKind string

const (
	ConfigInvalidRatios     ConfigErrorKind = "invalid_ratios"
	ConfigInvalidCategories ConfigErrorKind = "invalid_categories"
	ConfigInvalidResize     ConfigErrorKind = "invalid_resize"
)

// ConfigError reports an invalid run configuration.
type ConfigError struct {
	Kind ConfigErrorKind
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %s", e.Kind, e.Msg)
}

// OrganizeErrorKind classifies fatal organization errors.
type OrganizeErrorKind string

const (
	OrganizeInputNotFound    OrganizeErrorKind = "input_not_found"
	OrganizeOutputUnwritable OrganizeErrorKind = "output_unwritable"
)

// OrganizeError reports a structural problem with the input or output
// root. Unlike per-file failures it aborts the whole run.
type OrganizeError struct {
	Kind OrganizeErrorKind
	Path string
	Err  error
}

func (e *OrganizeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("organize error (%s): %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("organize error (%s): %s", e.Kind, e.Path)
}

func (e *OrganizeError) Unwrap() error { return e.Err }
