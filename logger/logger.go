// Package logger builds the zap logger shared by every component.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoding and level of the logger.
type Config struct {
	// Environment is "development" (console output) or "production" (JSON).
	Environment string
	Level       string
	Service     string
	// Dynamic, when set, is attached to the logger so its level can be
	// changed while running. It is set to Level first.
	Dynamic *zap.AtomicLevel
}

// New creates a logger. Unknown levels fall back to info. The returned
// logger carries the service name as a field.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Service == "" {
		cfg.Service = "clothsim"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	development := cfg.Environment == "development"
	encoding := "json"
	if development {
		encoding = "console"
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := Level(cfg.Level)
	if cfg.Dynamic != nil {
		cfg.Dynamic.SetLevel(level.Level())
		level = *cfg.Dynamic
	}

	config := zap.Config{
		Level:            level,
		Development:      development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}
	return log.With(
		zap.String("service", cfg.Service),
		zap.String("environment", cfg.Environment),
	), nil
}

// Level converts a level name to an atomic level. Keep the result to
// change the level of a running logger.
func Level(name string) zap.AtomicLevel {
	switch name {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}
