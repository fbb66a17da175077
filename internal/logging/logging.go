// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger with colored levels at debug level when
// verbose, otherwise an info-level production logger with ISO8601
// timestamps and no stack traces.
func New(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}

// Sync flushes buffered entries. Errors from syncing stderr on some
// platforms are ignored.
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}
