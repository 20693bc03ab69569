package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"mqtt-session-manager/config"
)

type Logger struct {
	*slog.Logger
}

func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logger config is nil")
	}

	// Create logging directory if it doesn't exist
	if cfg.LogToFile && cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
			return nil, err
		}
	}

	// Set up log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create the appropriate writer(s)
	var writer io.Writer = os.Stdout

	if cfg.LogToFile {
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Directory, "mqtt-session-manager.log"),
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Encoding {
	case "console":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}, nil
}

// Fatal logs a message at Error level and exits the program
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.Error(msg, args...)
	os.Exit(1)
}

// Error logs a message at Error level
func (l *Logger) Error(msg string, args ...interface{}) {
	l.Logger.Error(msg, args...)
}

// Warn logs a message at Warn level
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.Logger.Warn(msg, args...)
}

// Info logs a message at Info level
func (l *Logger) Info(msg string, args ...interface{}) {
	l.Logger.Info(msg, args...)
}

// Debug logs a message at Debug level
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.Logger.Debug(msg, args...)
}
