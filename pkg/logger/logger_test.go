package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "default config",
			config: Config{
				Level:  "info",
				Output: "stderr",
				Format: "text",
			},
		},
		{
			name: "debug level",
			config: Config{
				Level:  "debug",
				Output: "stderr",
				Format: "text",
			},
		},
		{
			name: "json format",
			config: Config{
				Level:  "info",
				Output: "stderr",
				Format: "json",
			},
		},
		{
			name: "stdout output",
			config: Config{
				Level:  "info",
				Output: "stdout",
				Format: "text",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.config)
			if log == nil {
				t.Error("New() returned nil")
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "imagepress.log")

	log := New(Config{
		Level:  "info",
		Output: logFile,
		Format: "json",
	})

	log.Info("compression complete", "path", "/tmp/photo.jpg", "size", 1500)

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}

	if entry["msg"] != "compression complete" {
		t.Errorf("msg = %v, want 'compression complete'", entry["msg"])
	}
	if entry["path"] != "/tmp/photo.jpg" {
		t.Errorf("path = %v, want /tmp/photo.jpg", entry["path"])
	}
}

func TestWith(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "with.log")

	log := New(Config{
		Level:  "info",
		Output: logFile,
		Format: "text",
	})

	child := log.With("job", "abc-123")
	child.Info("claimed")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	if !strings.Contains(string(data), "job=abc-123") {
		t.Errorf("log output missing context field: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "level.log")

	log := New(Config{
		Level:  "warn",
		Output: logFile,
		Format: "text",
	})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn level were not filtered: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}

	for _, tt := range tests {
		got := parseLevel(tt.input).String()
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestNoop(t *testing.T) {
	log := Noop()
	// Must not panic or write anywhere.
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error("d")
	log.With("k", "v").Info("e")
}
