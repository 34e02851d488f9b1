// Package logging configures the daemon's structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a slog.Logger whose level scales with verbosity (0=warn,
// 1=info, 2+=debug) and which additionally mirrors to stderr when
// mirrorToStderr is set.
func New(verbosity int, mirrorToStderr bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if mirrorToStderr {
		w = io.MultiWriter(os.Stdout, os.Stderr)
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
