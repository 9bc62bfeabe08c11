package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hatworks/imagepress/pkg/pipeline"
)

// writeTestConfig writes a config file that keeps all state under dir
// and uses the copy backend so no helper binary is needed. Timing
// fields are left to their defaults.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	content := fmt.Sprintf(`worker:
  backend: copy
storage:
  settings_path: %s
  history_path: %s
  snapshot_db_path: %s
logging:
  level: error
`,
		filepath.Join(dir, "settings.json"),
		filepath.Join(dir, "history.json"),
		filepath.Join(dir, "jobs.db"))

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	// Seed settings so the watcher stays inside the test directory.
	settings := fmt.Sprintf(`{"quality": 80, "watched_folders": [%q]}`, dir)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(settings), 0600); err != nil {
		t.Fatal(err)
	}

	return cfgPath
}

// TestRecompressFindsSnapshottedJob drives the recompress command
// against a job persisted by an earlier process. The command must see
// the restored job before it scans the store for the path.
func TestRecompressFindsSnapshottedJob(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	image := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(image, make([]byte, 1000), 0600); err != nil {
		t.Fatal(err)
	}

	// First process: compress the file and shut down, leaving the
	// completed job in the snapshot database.
	cfg, log, err := initialize(cfgPath)
	if err != nil {
		t.Fatalf("initialize() error = %v", err)
	}
	p, err := pipeline.New(cfg, log)
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	jobs, err := p.CompressFiles([]string{image})
	if err != nil {
		t.Fatalf("CompressFiles() error = %v", err)
	}
	waitForJobs(p, jobs)
	cancel()
	<-done

	// Second process: recompress must find the persisted job.
	cmd := &recompressCommand{
		path:       image,
		quality:    80,
		format:     "json",
		configPath: cfgPath,
	}
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}
