package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/billsafe/pkg/config"
)

// Logger is the service-wide slog logger with a runtime adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  io.Closer
}

// New builds a logger writing to stdout and, when configured, to a rotated
// file. Error records are also forwarded to Sentry when sentryEnabled is set.
// Sensitive attributes are masked before any handler sees them.
func New(cfg config.LoggerConfig, sentryEnabled bool) *Logger {
	return newLogger(cfg, sentryEnabled, os.Stdout)
}

func newLogger(cfg config.LoggerConfig, sentryEnabled bool, stdout io.Writer) *Logger {
	level := new(slog.LevelVar)
	if parsed, err := ParseLevel(cfg.Level); err == nil {
		level.Set(parsed)
	}

	var (
		out  = stdout
		file io.Closer
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(stdout, rotating)
		file = rotating
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if sentryEnabled {
		handler = slogmulti.Fanout(
			handler,
			slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
		)
	}

	return &Logger{
		Logger: slog.New(NewMaskingHandler(handler)),
		level:  level,
		file:   file,
	}
}

// SetLevel changes the minimum level of every handler built by New.
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	l.level.Set(parsed)
	return nil
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	return l.file.Close()
}

func ParseLevel(level string) (slog.Level, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", level, err)
	}

	return parsed, nil
}
