// Package logging builds the application logger and holds the per-topic loggers.
package logging

import (
	"os"

	"github.com/bluetuith-org/btdirectory/api/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Loggers.
var (
	// SessionLogger is used by the session facade.
	SessionLogger = zap.NewNop()
	// DirectoryLogger is used for device directory updates.
	DirectoryLogger = zap.NewNop()
	// ShellLogger is used by the text-shell backend.
	ShellLogger = zap.NewNop()
	// BusLogger is used by the system bus backend.
	BusLogger = zap.NewNop()
)

// SetLogger derives all topic loggers from logger.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	SessionLogger = logger.With(zap.String("topic", "session"))
	DirectoryLogger = logger.With(zap.String("topic", "directory"))
	ShellLogger = logger.With(zap.String("topic", "shell"))
	BusLogger = logger.With(zap.String("topic", "bus"))
}

// New builds a logger from cfg: standard output filtered by the configured level,
// standard error for errors, and an optional rotated debug file.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cores := make([]zapcore.Core, 0, 3)
	stdOutEncConfig := encConfig
	stdOutEncConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(stdOutEncConfig),
		zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.ErrorLevel
		})))
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encConfig),
		zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})))
	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: cfg.File,
				MaxSize:  cfg.MaxSizeMB,
				MaxAge:   cfg.KeepDays,
			}),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.DebugLevel
			})))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
