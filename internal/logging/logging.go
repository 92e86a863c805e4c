// Package logging builds the zap logger shared by every browsergate
// component: structured, level-gated by config, writing through a
// size-rotated file sink alongside stderr.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// defaultMaxFileSizeMB is the log file size threshold for rotation.
// Matches the teacher's own 50 MiB default (it rotated its JSONL debug
// log at 50*1024*1024 bytes).
const defaultMaxFileSizeMB = 50

// Config controls logger construction. LogLevel is one of
// debug/info/warn/error (spec §6); anything else falls back to info.
// FilePath, if set, adds a rotating file sink alongside stderr.
type Config struct {
	LogLevel   string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func levelFor(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "info", "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a zap.Logger per cfg. Construction never fails: an
// unparsable level defaults to info, matching spec §6's default, rather
// than rejecting the config.
func New(cfg Config) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	level := levelFor(cfg.LogLevel)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}

	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = defaultMaxFileSizeMB
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}

// MustNew is New but panics on error, for call sites that can't
// meaningfully continue without a logger.
func MustNew(cfg Config) *zap.Logger {
	log, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("logging: failed to construct logger: %v", err))
	}
	return log
}
