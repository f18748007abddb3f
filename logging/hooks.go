package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Hook observes every entry written at or above the hook core's level.
// Hooks run on the logging goroutine and must not block.
type Hook func(entry zapcore.Entry, fields []zapcore.Field)

// hookCore tees entries to a set of hooks without encoding them.
type hookCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
	hooks  []Hook
}

func (c *hookCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &hookCore{LevelEnabler: c.LevelEnabler, fields: merged, hooks: c.hooks}
}

func (c *hookCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *hookCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := fields
	if len(c.fields) > 0 {
		all = append(append(make([]zapcore.Field, 0, len(c.fields)+len(fields)), c.fields...), fields...)
	}
	for _, hook := range c.hooks {
		hook(entry, all)
	}
	return nil
}

func (c *hookCore) Sync() error { return nil }

// WithHooks returns a Logger that writes to logger and additionally hands every
// entry at or above level to hooks.
func WithHooks(logger Logger, level zapcore.Level, hooks ...Hook) Logger {
	if len(hooks) == 0 {
		return logger
	}
	zl := logger.Zap()
	tee := zapcore.NewTee(zl.Core(), &hookCore{LevelEnabler: level, hooks: hooks})
	return FromZap(zl.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return tee })))
}
