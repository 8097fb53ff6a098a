package logging

import (
	"log/slog"
	"testing"

	"github.com/seorin-dev/syruplink-core/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		logger := New(config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}, "1.0.0")
		if logger == nil {
			t.Fatal("New() = nil")
		}
	})

	t.Run("text format to stderr", func(t *testing.T) {
		logger := New(config.LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stderr",
		}, "1.0.0")
		if logger == nil {
			t.Fatal("New() = nil")
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWith(t *testing.T) {
	logger := Default()
	child := logger.With("component", "scanner")
	if child == nil {
		t.Fatal("With() = nil")
	}
	if child == logger {
		t.Error("With() returned the same logger")
	}
}
