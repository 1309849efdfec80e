package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrRootNotFound indicates the configured root path does not exist or is
	// not a directory.
	ErrRootNotFound = errors.New("root path not found")

	// ErrNoDatasets indicates the root path contains no dataset subdirectories
	// after filtering.
	ErrNoDatasets = errors.New("no dataset directories found")
)

// ParseError reports a single XML file that could not be parsed into a patent
// record. It is recovered per file: the extractor logs it, skips the file and
// continues with the rest of the dataset.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
