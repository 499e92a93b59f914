package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baaaht/mqueue/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid json config to stdout",
			cfg:     config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			wantErr: false,
		},
		{
			name:    "valid text config to stderr",
			cfg:     config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     config.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			cfg:     config.LoggingConfig{Level: "info", Format: "invalid", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "empty output defaults to stdout",
			cfg:     config.LoggingConfig{Level: "info", Format: "json", Output: ""},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger without error")
			}
		})
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	if logger.GetLevel() != LevelInfo {
		t.Errorf("NewDefault() level = %v, want %v", logger.GetLevel(), LevelInfo)
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	logger.With("component", "mqueue").Info("queue created", "name", "q")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "queue created" || entry["component"] != "mqueue" || entry["name"] != "q" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestLoggerSetLevelPropagates(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	derived := logger.With("component", "test")

	derived.Info("before")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level, got %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	if derived.GetLevel() != LevelDebug {
		t.Errorf("derived level = %v, want %v", derived.GetLevel(), LevelDebug)
	}
	derived.Debug("after")
	if !strings.Contains(buf.String(), "after") {
		t.Errorf("expected debug output after SetLevel, got %q", buf.String())
	}
}

func TestLoggerEnabled(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		level Level
		want  bool
	}{
		{LevelDebug, false},
		{LevelInfo, false},
		{LevelWarn, true},
		{LevelError, true},
	}
	for _, tt := range tests {
		if got := logger.Enabled(tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mq.log")
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %q", string(data))
	}

	// Closing twice is a no-op.
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	var buf bytes.Buffer
	l, err := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	SetGlobal(l)

	if Global() != l {
		t.Fatal("Global() did not return the logger passed to SetGlobal")
	}

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	With("k", "v").Info("with")

	out := buf.String()
	for _, want := range []string{"msg=d", "msg=i", "msg=w", "msg=e", "k=v"} {
		if !strings.Contains(out, want) {
			t.Errorf("global output missing %q: %q", want, out)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Error("dropped")
	if l.Enabled(LevelWarn) {
		t.Error("nop logger should only be enabled at error level")
	}
}
