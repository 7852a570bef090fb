// Package debug carries the --debug switch through a context and sets up
// the process-wide slog logger.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogFormat selects the log encoding: "text" (default) or "json".
const EnvLogFormat = "EMARSYS_LOG_FORMAT"

type contextKey struct{}

// redactedKeys are attribute keys whose values never reach the log.
var redactedKeys = map[string]struct{}{
	"secret":   {},
	"x-wsse":   {},
	"wsse":     {},
	"password": {},
}

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(contextKey{}).(bool); ok {
		return v
	}
	return false
}

// NewHandler returns a slog handler writing to w at Debug level when enabled
// and Warn level otherwise. Credential attributes are masked.
func NewHandler(w io.Writer, enabled bool, format string) slog.Handler {
	level := slog.LevelWarn
	if enabled {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetupLogger installs the default logger on stderr.
func SetupLogger(enabled bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, enabled, os.Getenv(EnvLogFormat))))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
