package compressor

import "errors"

// Common errors returned by compressor backends.
var (
	// ErrUnsupportedFormat is returned when a file's image format
	// cannot be determined from its extension.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidPath is returned when an input or output path is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidQuality is returned when quality is outside [1,100].
	ErrInvalidQuality = errors.New("invalid quality: must be in [1,100]")
)
