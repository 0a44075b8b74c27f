// Package internal holds small generic data structures shared across the
// foggytcp core that are not themselves part of the protocol: a byte ring
// buffer and a below-Debug trace logging level.
package internal

import (
	"context"
	"log/slog"
)

// LevelTrace sits below [slog.LevelDebug] and is used for per-packet chatter
// (every send, every ACK) that would otherwise drown out connection-level
// Debug logs.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogAttrs logs through l if l is non-nil, doing nothing otherwise. Callers
// are expected to guard expensive attribute construction with LogEnabled.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// LogEnabled reports whether l has a handler that would emit a record at lvl.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}
