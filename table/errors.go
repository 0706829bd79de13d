package table

import "errors"

var (
	// ErrNoHeader is returned when the source has no header row.
	ErrNoHeader = errors.New("source has no header row")

	// ErrInvalidLinesPerPart is returned when Split is asked for parts of
	// zero or negative size.
	ErrInvalidLinesPerPart = errors.New("lines per part must be greater than 0")
)
