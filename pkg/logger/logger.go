package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes where and how logs are written.
type Config struct {
	// Output overrides the destination. When nil, FilePath or stdout is used.
	Output io.Writer `mapstructure:"-"`

	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	// FilePath enables size-based rotation into the given file instead of stdout.
	FilePath   string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`

	Sentry SentryConfig `mapstructure:"sentry"`
}

const sentryFlushTimeout = 2 * time.Second

// New builds a logger from cfg. The returned cleanup function flushes Sentry
// and closes the rotated log file; call it once on shutdown.
//
// If the log file cannot be prepared, New falls back to stdout and logs a warning.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out, closer, outErr := buildOutput(cfg)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text":
		h = slog.NewTextHandler(out, opts)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}

	flush := func() {}
	if cfg.Sentry.DSN != "" {
		sh, err := newSentryHandler(cfg.Sentry)
		if err != nil {
			slog.New(h).Error("failed to initialize sentry", slog.Any("error", err))
		} else {
			h = fanoutHandler{h, sh}
			flush = func() { flushSentry(sentryFlushTimeout) }
		}
	}

	log := slog.New(WithContext(h, extractors...))
	if outErr != nil {
		log.Warn("log file unavailable, writing to stdout",
			slog.String("path", cfg.FilePath),
			slog.Any("error", outErr),
		)
	}

	cleanup := func() {
		flush()
		if closer != nil {
			_ = closer.Close()
		}
	}

	return log, cleanup, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Join(ErrInvalidLevel, err)
	}
	return level, nil
}

// buildOutput picks the log destination. On failure to prepare the log file it
// returns stdout together with the error.
func buildOutput(cfg Config) (io.Writer, io.Closer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil, nil
	}
	if cfg.FilePath == "" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return os.Stdout, nil, fmt.Errorf("create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	return rotator, rotator, nil
}
