package logging

import (
	"context"

	"go.uber.org/zap"
)

// ForRun returns a child logger tagged with the render run it belongs to.
func ForRun(logger Logger, seq uint64, sourceID string) Logger {
	fields := []zap.Field{zap.Uint64("run_seq", seq)}
	if sourceID != "" {
		fields = append(fields, zap.String("source_id", sourceID))
	}
	return logger.With(fields...)
}

type loggerKey struct{}

// FromContext returns the Logger stored in the context, or the global logger if none.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return Global()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// FromContextOr returns the Logger stored in the context, or fallback if none.
func FromContextOr(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
			return l
		}
	}
	return fallback
}

// ToContext stores the Logger in the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
