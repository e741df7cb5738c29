package logging_test

import (
	"log/slog"
	"testing"

	"github.com/netreach/gozmap/internal/config"
	"github.com/netreach/gozmap/internal/logging"
)

func TestNewLevelVarParsesLevel(t *testing.T) {
	t.Parallel()

	level := logging.NewLevelVar(config.LogConfig{Level: "debug"})
	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", got)
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	t.Parallel()

	level := logging.NewLevelVar(config.LogConfig{Level: "info"})
	logger := logging.New(config.LogConfig{Format: "json"}, level)
	if logger == nil {
		t.Fatal("New() returned nil")
	}

	// Verify the handler respects the shared level var: at info level
	// Debug records are disabled, and lowering the var to Debug enables
	// them.
	if logger.Handler().Enabled(nil, slog.LevelDebug) {
		t.Error("handler reports Debug enabled at info level")
	}
	level.Set(slog.LevelDebug)
	if !logger.Handler().Enabled(nil, slog.LevelDebug) {
		t.Error("handler reports Debug disabled after lowering level var to Debug")
	}
}

func TestNewTextFormat(t *testing.T) {
	t.Parallel()

	level := logging.NewLevelVar(config.LogConfig{Level: "warn"})
	logger := logging.New(config.LogConfig{Format: "text"}, level)
	if logger == nil {
		t.Fatal("New() returned nil")
	}
}
