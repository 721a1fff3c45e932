package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON when LogJSON is set, text
// otherwise, with debug output in dev.
func NewLogger(c Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if c.Env == "dev" {
		opts.Level = slog.LevelDebug
	}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
