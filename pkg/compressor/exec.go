package compressor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hatworks/imagepress/pkg/logger"
)

// ExecBackend compresses images by invoking a libvips-style helper
// binary (`vips copy in out[options]`). Save options are passed through
// the target-suffix syntax so one subcommand covers every format.
//
// The helper writes to a temporary file in the output directory which
// is renamed into place on success, so a failed invocation never leaves
// a partial output behind.
type ExecBackend struct {
	command string
	logger  logger.Logger
}

// NewExecBackend creates an exec backend around the given helper
// command (typically "vips").
func NewExecBackend(command string, log logger.Logger) *ExecBackend {
	return &ExecBackend{
		command: command,
		logger:  log,
	}
}

// Compress implements Compressor.Compress.
func (b *ExecBackend) Compress(input, output string, quality int) (int64, error) {
	if quality < 1 || quality > 100 {
		return 0, ErrInvalidQuality
	}

	format := FormatFromPath(input)
	if format == "" {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, input)
	}

	tmp := tempOutputPath(output)
	defer os.Remove(tmp) // nolint:errcheck

	target := tmp + saveOptions(format, quality)
	args := []string{"copy", input, target}

	b.logger.Debug("invoking compressor helper",
		"command", b.command,
		"args", args)

	cmd := exec.Command(b.command, args...) // nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return 0, fmt.Errorf("%s failed: %s", b.command, msg)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return 0, fmt.Errorf("helper produced no output: %w", err)
	}

	if err := os.Rename(tmp, output); err != nil {
		return 0, fmt.Errorf("failed to move output into place: %w", err)
	}

	return info.Size(), nil
}

// saveOptions returns the vips save-option suffix for a format at the
// given quality.
func saveOptions(format Format, quality int) string {
	switch format {
	case FormatPNG:
		return fmt.Sprintf("[compression=9,palette,Q=%d,effort=10]", quality)
	case FormatJPEG:
		return fmt.Sprintf("[Q=%d,strip,optimize-coding]", quality)
	case FormatWebP:
		return fmt.Sprintf("[Q=%d,strip]", quality)
	case FormatTIFF:
		return fmt.Sprintf("[Q=%d,compression=jpeg,strip]", quality)
	case FormatGIF:
		return "[effort=7,dither=1.0]"
	case FormatHEIF, FormatAVIF:
		return fmt.Sprintf("[Q=%d,strip]", quality)
	case FormatJXL:
		return fmt.Sprintf("[Q=%d,effort=7,strip]", quality)
	default:
		return fmt.Sprintf("[Q=%d]", quality)
	}
}

// tempOutputPath builds a scratch path in the output's directory that
// keeps the image extension, since the helper derives the save format
// from it.
func tempOutputPath(output string) string {
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(filepath.Base(output), ext)
	name := fmt.Sprintf(".%s.%d.tmp%s", stem, os.Getpid(), ext)
	return filepath.Join(filepath.Dir(output), name)
}
