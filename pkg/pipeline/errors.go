package pipeline

import "errors"

// Common errors returned by the pipeline.
var (
	// ErrNoJobForPath is returned when recompression is requested for a
	// path with no finished job.
	ErrNoJobForPath = errors.New("no finished job for path")

	// ErrNotAFile is returned when a compression target is not a
	// regular file.
	ErrNotAFile = errors.New("not a regular file")

	// ErrUnsupportedFormat is returned when a compression target's
	// format cannot be determined.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
