// Package logging builds the zap logger shared by the engine, the archive and
// the CLI.
//
// Console output goes to the supplied writer (stderr in the CLI) using the
// human-readable console encoder. When a log file is configured, a second
// JSON core writes to a lumberjack-rotated file and records everything from
// Debug up, whatever the console level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the logger settings.
type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	File       string `mapstructure:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`       // megabytes
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`         // days
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// ParseLevel maps a level name to a zap level.
// Supported values: "debug", "info", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a logger writing console output to w and, if cfg.File is set,
// JSON output to a rotating file.
func New(cfg Config, w io.Writer) (*zap.Logger, error) {
	cores := []zapcore.Core{newConsoleCore(w, ParseLevel(cfg.Level))}

	if cfg.File != "" {
		fileCore, err := newFileCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// newConsoleCore creates a core that writes readable lines to w.
func newConsoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "" // timestamps belong in the file log
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
}

// newFileCore creates a core that writes JSON entries to a rotating file.
func newFileCore(cfg Config) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:  "message",
		LevelKey:    "level",
		TimeKey:     "time",
		NameKey:     "logger",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		writer,
		zapcore.DebugLevel,
	), nil
}
