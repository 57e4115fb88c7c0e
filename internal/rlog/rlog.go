// Package rlog provides the structured logger shared by the storage
// engine's internal packages. Components log through a small wrapper
// instead of calling slog directly so a caller can swap the sink without
// reaching into package internals.
package rlog

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
}

// SetDefault replaces the logger used by components that were not given
// one explicitly.
func SetDefault(l *slog.Logger) {
	if l == nil {
		return
	}
	defaultLogger.Store(l)
}

// For returns a logger scoped to component, falling back to the package
// default when l is nil.
func For(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = defaultLogger.Load()
	}
	return l.With(slog.String("component", component))
}
