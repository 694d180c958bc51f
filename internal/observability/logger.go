package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const ctxKeyCorrelationID ctxKey = "correlation_id"

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init replaces the process logger with a JSON logger at the given level.
func Init(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	return logger
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Logger() *slog.Logger {
	return logger
}

// WithCorrelationID stores a correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrelationID).(string)
	return id
}

// LoggerFromContext adds correlation_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return logger
	}
	return logger.With("correlation_id", id)
}
