// Package obs builds the zap loggers that the CLI constructs and hands to
// the kernel. Ledger entries are the system of record for what
// happened; these logs are for an operator watching the process, so the
// hot evaluate loop never logs at Info — only boot, shutdown, and failures
// do.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the small set of levels humanlogica.toml can name.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a production-style console logger at the given level.
func New(level Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	logger, err := cfg.Build()
	if err != nil {
		// Building a console logger from a static config cannot fail in
		// practice; fall back to a no-op logger rather than panic.
		return zap.NewNop()
	}
	return logger
}

// Noop returns a logger that discards everything.
func Noop() *zap.Logger {
	return zap.NewNop()
}
