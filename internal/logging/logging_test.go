package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parley/internal/domain"
)

// ===== ParseLevel =====

func TestParseLevel_ShouldMapKnownLevels(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ===== Setup =====

func TestSetup_WhenNoFileConfigured_ShouldReturnWorkingLogger(t *testing.T) {
	logger, cleanup := Setup(domain.LogConfig{Level: "info"})
	defer cleanup()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if err := cleanup(); err != nil {
		t.Errorf("cleanup without file should not error: %v", err)
	}
}

func TestSetup_WhenFileConfigured_ShouldWriteJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.log")
	logger, cleanup := Setup(domain.LogConfig{Level: "debug", File: path})
	logger.Info("hello from test", "key", "value")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if entry["msg"] != "hello from test" || entry["key"] != "value" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestSetup_WhenFileCannotBeOpened_ShouldFallBackToStderr(t *testing.T) {
	dir := t.TempDir()
	// A directory path cannot be opened as a file.
	logger, cleanup := Setup(domain.LogConfig{Level: "info", File: dir})
	defer cleanup()
	if logger == nil {
		t.Fatal("expected non-nil logger on fallback")
	}
}

// ===== SetupWithWriters =====

func TestSetupWithWriters_ShouldFanOutToBothWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("fan out", "n", 7)
	if !strings.Contains(stderr.String(), "fan out") {
		t.Errorf("stderr writer missing record: %q", stderr.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry); err != nil {
		t.Fatalf("file writer should carry JSON: %v (%q)", err, file.String())
	}
	if entry["msg"] != "fan out" {
		t.Errorf("unexpected JSON record: %v", entry)
	}
}

func TestSetupWithWriters_WhenLevelAboveRecord_ShouldDropRecord(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupWithWriters(&stderr, &file, slog.LevelWarn)
	logger.Info("should be dropped")
	if stderr.Len() != 0 || file.Len() != 0 {
		t.Errorf("info record below warn level must be dropped: stderr=%q file=%q", stderr.String(), file.String())
	}
}
