// Package compressor defines the image compression capability consumed
// by the worker pool.
//
// The pipeline core is backend-agnostic: it depends only on the
// Compressor interface. Two backends ship with imagepress — an exec
// backend that shells out to a libvips-style helper binary, and a copy
// backend that writes the original bytes verbatim (used as the terminal
// fallback and in tests).
package compressor

import (
	"path/filepath"
	"strings"
)

// Format identifies a supported image format.
type Format string

// Supported image formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatTIFF Format = "tiff"
	FormatGIF  Format = "gif"
	FormatHEIF Format = "heif"
	FormatAVIF Format = "avif"
	FormatJXL  Format = "jxl"
)

// FormatFromExtension maps a file extension (without the dot) to a
// Format. Returns empty string for unsupported extensions.
func FormatFromExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case "png":
		return FormatPNG
	case "jpg", "jpeg", "jfif":
		return FormatJPEG
	case "webp":
		return FormatWebP
	case "tif", "tiff":
		return FormatTIFF
	case "gif":
		return FormatGIF
	case "heif", "heic":
		return FormatHEIF
	case "avif":
		return FormatAVIF
	case "jxl":
		return FormatJXL
	default:
		return ""
	}
}

// FormatFromPath determines the image format of a path from its
// extension. Returns empty string when the format cannot be determined.
func FormatFromPath(path string) Format {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return FormatFromExtension(ext[1:])
}

// OutputMarker is the stem suffix that tags the pipeline's own output
// files. The watcher uses it to break feedback loops.
const OutputMarker = "_compressed"

// OutputPath chooses the compressed output location for an input file:
// the same directory with the marker appended to the stem.
//
// Example: /pics/photo.jpg -> /pics/photo_compressed.jpg.
func OutputPath(input string) (string, error) {
	ext := filepath.Ext(input)
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || ext == "" {
		return "", ErrInvalidPath
	}

	name := stem + OutputMarker + ext
	return filepath.Join(filepath.Dir(input), name), nil
}

// IsOutputPath reports whether a path carries the compressed-output
// marker in its stem.
func IsOutputPath(path string) bool {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return strings.HasSuffix(stem, OutputMarker)
}
