// Package logger provides the process-wide structured logger. The rest of
// the codebase logs through the package-level helpers so callers never
// carry a logger instance around.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	sugar = l.Sugar()
}

// Init replaces the process logger. level accepts zap level names
// ("debug", "info", "warn", "error"); unknown names default to info.
func Init(level string, development bool) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	sugar = l.Sugar()
	return nil
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = sugar.Sync()
}

// Debugf logs a debug message.
func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }

// Infof logs an info message.
func Infof(format string, args ...any) { sugar.Infof(format, args...) }

// Warnf logs a warning message.
func Warnf(format string, args ...any) { sugar.Warnf(format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...any) { sugar.Errorf(format, args...) }
