package logger

import (
	"context"

	"go.uber.org/zap"
)

// loggerContextKey is the private context key type under which the logger is stored.
type loggerContextKey struct{}

// ToContext returns a new context carrying the provided logger.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext extracts the logger stored in the context.
// If the context carries no logger, the global logger is returned,
// so the call is always safe.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerContextKey{}).(*zap.SugaredLogger); ok {
		return l
	}

	return global
}

// WithName returns a context whose logger is named.
// Nested names are joined with dots by zap.
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(name))
}

// WithKV returns a context whose logger carries the provided key-value pair
// on every subsequent message.
func WithKV(ctx context.Context, key string, value any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(key, value))
}

// WithFields returns a context whose logger carries the provided
// strongly-typed zap fields on every subsequent message.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return ToContext(ctx, FromContext(ctx).Desugar().With(fields...).Sugar())
}
