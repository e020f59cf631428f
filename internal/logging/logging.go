// Package logging configures the application's slog loggers: a structured
// JSON logger for machine consumption and per-service rotated file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		label, ok := levelNames[level]
		if !ok {
			label = level.String()
		}
		a.Value = slog.StringValue(label)
	}
	return a
}

// Init installs the default slog logger: JSON to stdout at the given level.
func Init(level slog.Leveler) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	slog.SetDefault(slog.New(handler))
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath, rotated
// by lumberjack. All records carry a 'service' attribute. Returns the logger
// and a function that closes the underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		// lumberjack does not create directories
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	logger := slog.New(handler).With("service", serviceName)

	return logger, logWriter.Close, nil
}

// ForService returns a file logger for the named service under the logs
// directory, falling back to a disabled logger when the file cannot be
// opened so callers never deal with a nil logger.
func ForService(serviceName string, level slog.Leveler) (*slog.Logger, func() error) {
	logger, closer, err := NewFileLogger(filepath.Join("logs", serviceName+".log"), serviceName, level)
	if err != nil {
		fallback := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level})
		return slog.New(fallback).With("service", serviceName), func() error { return nil }
	}
	return logger, closer
}
