package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global is the process-wide logger every command shares.
	//nolint:gochecknoglobals // A single shared logger keeps call sites simple.
	global *zap.SugaredLogger
	// defaultLevel gates which messages the shared logger emits.
	//nolint:gochecknoglobals // Level changes must reach the already-built core.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Logging must work before any command runs its setup.
	SetLogger(New(defaultLevel))
}

// New builds a *zap.SugaredLogger writing plain console lines to stdout.
// A nil level falls back to the shared default level.
func New(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	//nolint:exhaustruct // The omitted encoder fields keep their zap defaults.
	defaultEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: ", ",
	})

	core := zapcore.NewCore(
		defaultEncoder,
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(core, options...).Sugar()
}

// ParseLogLevel maps a --log-level flag value onto a zap level.
// ok is false when the input names no known level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Level reports the level the shared logger currently emits at.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger exposes the shared logger for callers that need zap directly.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger replaces the shared logger. Call it during startup only;
// nothing guards concurrent replacement.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel adjusts the shared logger's level at runtime.
func SetLevel(level zapcore.Level) {
	//nolint: errcheck // Sync on stdout has nothing useful to report.
	defer global.Sync()

	defaultLevel.SetLevel(level)
}

// Debug logs at debug level through the context's logger.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// Debugf logs a formatted message at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Debugf(format, args...)
}

// DebugKV logs a message with key-value pairs at debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info logs at info level through the context's logger.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// Infof logs a formatted message at info level.
func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

// InfoKV logs a message with key-value pairs at info level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn logs at warn level through the context's logger.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Warnf(format, args...)
}

// WarnKV logs a message with key-value pairs at warn level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// Error logs at error level through the context's logger.
func Error(ctx context.Context, args ...any) {
	FromContext(ctx).Error(args...)
}

// Errorf logs a formatted message at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Errorf(format, args...)
}

// ErrorKV logs a message with key-value pairs at error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(ctx context.Context, args ...any) {
	FromContext(ctx).Fatal(args...)
}

// Fatalf logs a formatted message at fatal level and exits the process.
func Fatalf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Fatalf(format, args...)
}

// FatalKV logs a message with key-value pairs at fatal level and exits
// the process.
func FatalKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Fatalw(message, kvs...)
}

// Panic logs at panic level and panics.
func Panic(ctx context.Context, args ...any) {
	FromContext(ctx).Panic(args...)
}

// Panicf logs a formatted message at panic level and panics.
func Panicf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Panicf(format, args...)
}

// PanicKV logs a message with key-value pairs at panic level and panics.
func PanicKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Panicw(message, kvs...)
}
