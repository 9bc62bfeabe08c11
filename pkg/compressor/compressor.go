package compressor

import (
	"fmt"
	"io"
	"os"
)

// Compressor is the encode capability the worker pool depends on.
//
// Implementations must be safe for concurrent use from multiple
// goroutines and must not leave a partial output file behind on
// failure.
type Compressor interface {
	// Compress encodes input into output at the requested quality
	// (1-100, higher = better fidelity) and returns the number of
	// bytes written.
	Compress(input, output string, quality int) (int64, error)
}

// CopyBackend writes the original bytes verbatim.
//
// It is the terminal fallback of the retry policy (a copy can never be
// larger than the original) and the default backend in tests.
type CopyBackend struct{}

// NewCopyBackend creates a verbatim-copy backend.
func NewCopyBackend() *CopyBackend {
	return &CopyBackend{}
}

// Compress implements Compressor.Compress by copying input to output.
// Quality is accepted for interface compatibility and ignored.
func (b *CopyBackend) Compress(input, output string, quality int) (int64, error) {
	if quality < 1 || quality > 100 {
		return 0, ErrInvalidQuality
	}

	return CopyFile(input, output)
}

// CopyFile copies src to dst and returns the bytes written. A failed
// copy removes the destination so no partial output survives.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src) // nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close() // nolint:errcheck

	out, err := os.Create(dst) // nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	written, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()    // nolint:errcheck
		_ = os.Remove(dst) // nolint:errcheck
		return 0, fmt.Errorf("copy failed: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dst) // nolint:errcheck
		return 0, fmt.Errorf("failed to close destination: %w", err)
	}

	return written, nil
}
