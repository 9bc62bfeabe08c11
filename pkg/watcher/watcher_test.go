package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hatworks/imagepress/pkg/logger"
)

func TestNew(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if w == nil {
		t.Error("New() returned nil watcher")
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Errorf("Close() error = %v", closeErr)
	}
}

func TestStartAlreadyStarted(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := w.Start(ctx, []string{tmpDir}); startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}

	if startErr := w.Start(ctx, []string{tmpDir}); !errors.Is(startErr, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", startErr)
	}
}

func TestStartSkipsBadFolders(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "nonexistent")

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing folder is skipped, not fatal.
	if startErr := w.Start(ctx, []string{nonExistent, tmpDir}); startErr != nil {
		t.Errorf("Start() error = %v, want nil", startErr)
	}
}

func TestEmitsCreateForImage(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := w.Start(ctx, []string{tmpDir}); startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}

	// Give the kernel watch time to attach.
	time.Sleep(100 * time.Millisecond)

	imagePath := filepath.Join(tmpDir, "photo.jpg")
	if writeErr := os.WriteFile(imagePath, []byte("image"), 0600); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case event := <-w.Events():
		if event.Path != imagePath {
			t.Errorf("event path = %s, want %s", event.Path, imagePath)
		}
		if event.Timestamp.IsZero() {
			t.Error("event has no timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received for created image")
	}
}

func TestIgnoresFilteredFiles(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := w.Start(ctx, []string{tmpDir}); startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}

	time.Sleep(100 * time.Millisecond)

	ignored := []string{
		"download.jpg.crdownload", // in-progress download
		"photo_compressed.jpg",    // pipeline output
		"notes.txt",               // unsupported format
	}
	for _, name := range ignored {
		if writeErr := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0600); writeErr != nil {
			t.Fatal(writeErr)
		}
	}

	select {
	case event := <-w.Events():
		t.Errorf("unexpected event for %s", event.Path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestAddAndRemoveFolder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := w.Start(ctx, []string{first}); startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}

	if addErr := w.AddFolder(second); addErr != nil {
		t.Fatalf("AddFolder() error = %v", addErr)
	}

	time.Sleep(100 * time.Millisecond)

	imagePath := filepath.Join(second, "photo.png")
	if writeErr := os.WriteFile(imagePath, []byte("image"), 0600); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case event := <-w.Events():
		if event.Path != imagePath {
			t.Errorf("event path = %s, want %s", event.Path, imagePath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received from folder added at runtime")
	}

	if removeErr := w.RemoveFolder(second); removeErr != nil {
		t.Fatalf("RemoveFolder() error = %v", removeErr)
	}

	if writeErr := os.WriteFile(filepath.Join(second, "late.png"), []byte("image"), 0600); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case event := <-w.Events():
		t.Errorf("unexpected event for %s after RemoveFolder", event.Path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestRemoveFolderNotWatched(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	if removeErr := w.RemoveFolder(t.TempDir()); !errors.Is(removeErr, ErrNotWatched) {
		t.Errorf("RemoveFolder() error = %v, want ErrNotWatched", removeErr)
	}
}

func TestAddFolderNotDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			t.Logf("Close() error = %v", closeErr)
		}
	}()

	if addErr := w.AddFolder(file); addErr == nil {
		t.Error("AddFolder() error = nil, want error for regular file")
	}
}

func TestCloseIdempotent(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("Close() error = %v", closeErr)
	}
	if closeErr := w.Close(); closeErr != nil {
		t.Errorf("second Close() error = %v", closeErr)
	}
}

func TestCloseEndsEventStream(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if startErr := w.Start(ctx, []string{tmpDir}); startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("Close() error = %v", closeErr)
	}

	// The event channel must drain to closed, not stay open forever.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after Close")
		}
	}
}

func TestEventAfterCloseIsDropped(t *testing.T) {
	tmpDir := t.TempDir()
	imagePath := filepath.Join(tmpDir, "photo.jpg")
	if err := os.WriteFile(imagePath, []byte("image"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("Close() error = %v", closeErr)
	}

	// A straggling filesystem event delivered after Close must be
	// dropped, not sent into a closed channel.
	inner, ok := w.(*watcher)
	if !ok {
		t.Fatalf("New() returned %T, want *watcher", w)
	}
	inner.handleEvent(fsnotify.Event{Name: imagePath, Op: fsnotify.Create})
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"jpeg image", "/d/photo.jpg", true},
		{"jfif image", "/d/photo.jfif", true},
		{"png image", "/d/shot.PNG", true},
		{"avif image", "/d/art.avif", true},
		{"chrome partial", "/d/photo.jpg.crdownload", false},
		{"firefox partial", "/d/photo.jpg.part", false},
		{"safari partial", "/d/photo.jpg.download", false},
		{"generic temp", "/d/photo.tmp", false},
		{"own output", "/d/photo_compressed.jpg", false},
		{"non-image", "/d/notes.txt", false},
		{"no extension", "/d/README", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCandidate(tt.path); got != tt.want {
				t.Errorf("IsCandidate(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
