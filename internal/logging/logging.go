// Package logging builds the process-wide structured logger from a
// log.Config, the same shape the teacher daemon uses so the level can be
// adjusted later through a shared slog.LevelVar without rebuilding the
// handler.
package logging

import (
	"log/slog"
	"os"

	"github.com/netreach/gozmap/internal/config"
)

// New creates a structured logger writing to stdout, in either JSON or
// text form depending on cfg.Format, at the level held by level.
func New(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// NewLevelVar returns a slog.LevelVar initialized from cfg.Level, ready
// to be shared between New and a later reload that adjusts the level in
// place.
func NewLevelVar(cfg config.LogConfig) *slog.LevelVar {
	level := &slog.LevelVar{}
	level.Set(config.ParseLogLevel(cfg.Level))
	return level
}
