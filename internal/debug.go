package internal

import (
	"context"
	"log/slog"
)

// LevelTrace is below slog.LevelDebug and used for packet-level tracing
// (the dispatcher's drops of non-TCP frames and of stray non-SYN segments),
// separate from the coarser operational debug/info/error levels a
// connection or dispatcher logs at.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogAttrs logs msg at lvl with attrs through log, doing nothing if log is nil
// (package endpoint's types are usable without a configured logger).
func LogAttrs(log *slog.Logger, lvl slog.Level, msg string, attrs ...slog.Attr) {
	if log == nil {
		return
	}
	log.LogAttrs(context.Background(), lvl, msg, attrs...)
}
