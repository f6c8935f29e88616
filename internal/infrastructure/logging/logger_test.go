package logging

import (
	"log/slog"
	"testing"

	"github.com/adotagarwal/am43/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewDoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		log := New(config.LoggingConfig{
			Level:  "debug",
			Format: format,
			Output: "stderr",
		}, "test")
		log.Debug("smoke", "format", format)
	}
}

func TestWithAddsAttributes(t *testing.T) {
	log := Default()
	child := log.With("component", "test")
	if child == nil || child.Logger == nil {
		t.Fatal("With returned an unusable logger")
	}
	child.Info("smoke")
}
