package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel overrides the threshold of a wrapped zapcore.Core
// without touching its encoder or sink.
type coreWithLevel struct {
	zapcore.Core

	// level is the threshold this core enforces.
	level zapcore.Level
}

// Enabled checks l against the override threshold, not the wrapped core's.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check attaches this core to the checked entry when its level passes
// the override threshold.
//
//nolint:gocritic // zapcore's interface takes the entry by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With carries the override threshold onto a child core with extra fields.
//
//nolint:ireturn,nolintlint // zapcore.Core is the interface zap composes on.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel derives a logger whose threshold differs from its parent's.
//
//nolint:ireturn,nolintlint // zap.Option is the interface zap composes on.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &coreWithLevel{core, lvl}
		})
}
