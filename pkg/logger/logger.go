// Package logger provides structured logging using Zap.
// It supports both development (console-friendly) and production (JSON)
// modes.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a Zap logger. devMode selects human-readable console output
// over production JSON; level is one of debug, info, warn, error.
func New(devMode bool, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var config zap.Config
	if devMode {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}

// NewWithWriter creates a logger that writes to a custom writer (useful
// for tests).
func NewWithWriter(devMode bool, writer zapcore.WriteSyncer) *zap.Logger {
	var encoder zapcore.Encoder
	var level zapcore.Level

	if devMode {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		level = zapcore.DebugLevel
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zapcore.InfoLevel
	}

	return zap.New(zapcore.NewCore(encoder, writer, level))
}

// Sync flushes any buffered log entries. Sync errors on stdout/stderr are
// expected in some environments and ignored.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}
