package compressor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{"png", FormatPNG},
		{"jpg", FormatJPEG},
		{"jpeg", FormatJPEG},
		{"jfif", FormatJPEG},
		{"JPG", FormatJPEG},
		{"webp", FormatWebP},
		{"tif", FormatTIFF},
		{"tiff", FormatTIFF},
		{"gif", FormatGIF},
		{"heic", FormatHEIF},
		{"avif", FormatAVIF},
		{"jxl", FormatJXL},
		{"txt", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatFromExtension(tt.ext); got != tt.want {
			t.Errorf("FormatFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/downloads/photo.jpg", FormatJPEG},
		{"/downloads/diagram.PNG", FormatPNG},
		{"/downloads/archive.zip", ""},
		{"/downloads/noext", ""},
	}

	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	got, err := OutputPath(filepath.Join("pics", "photo.jpg"))
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}

	want := filepath.Join("pics", "photo_compressed.jpg")
	if got != want {
		t.Errorf("OutputPath() = %s, want %s", got, want)
	}
}

func TestOutputPathInvalid(t *testing.T) {
	if _, err := OutputPath("noext"); err == nil {
		t.Error("OutputPath() error = nil, want error for extension-less path")
	}
}

func TestIsOutputPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/pics/photo_compressed.jpg", true},
		{"/pics/photo.jpg", false},
		{"/pics/_compressed.jpg", true},
		{"/pics/photo_compressed_twice.jpg", false},
	}

	for _, tt := range tests {
		if got := IsOutputPath(tt.path); got != tt.want {
			t.Errorf("IsOutputPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCopyBackend(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "photo.jpg")
	output := filepath.Join(tmpDir, "photo_compressed.jpg")

	content := []byte("fake jpeg bytes")
	if err := os.WriteFile(input, content, 0600); err != nil {
		t.Fatalf("failed to create input: %v", err)
	}

	b := NewCopyBackend()
	written, err := b.Compress(input, output, 80)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	if written != int64(len(content)) {
		t.Errorf("Compress() wrote %d bytes, want %d", written, len(content))
	}

	out, err := os.ReadFile(output) // nolint:gosec
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(out) != string(content) {
		t.Error("output bytes differ from input")
	}
}

func TestCopyBackendInvalidQuality(t *testing.T) {
	b := NewCopyBackend()

	if _, err := b.Compress("in", "out", 0); err != ErrInvalidQuality {
		t.Errorf("Compress() error = %v, want ErrInvalidQuality", err)
	}
	if _, err := b.Compress("in", "out", 101); err != ErrInvalidQuality {
		t.Errorf("Compress() error = %v, want ErrInvalidQuality", err)
	}
}

func TestCopyBackendMissingInput(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewCopyBackend()
	_, err := b.Compress(
		filepath.Join(tmpDir, "missing.jpg"),
		filepath.Join(tmpDir, "out.jpg"),
		80,
	)
	if err == nil {
		t.Error("Compress() error = nil, want error for missing input")
	}

	// No partial output may be left behind.
	if _, statErr := os.Stat(filepath.Join(tmpDir, "out.jpg")); statErr == nil {
		t.Error("partial output left behind after failed compress")
	}
}

func TestSaveOptions(t *testing.T) {
	if got := saveOptions(FormatJPEG, 80); got != "[Q=80,strip,optimize-coding]" {
		t.Errorf("saveOptions(jpeg, 80) = %s", got)
	}
	if got := saveOptions(FormatGIF, 80); got != "[effort=7,dither=1.0]" {
		t.Errorf("saveOptions(gif, 80) = %s", got)
	}
}
