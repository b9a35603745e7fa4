// Package logging builds the process logger: a console handler (JSON, text,
// or pretty), an optional rolling file sink rendered by one of the structured
// formatters, and the context merge handler wrapping the whole fan-out so
// every sink sees the merged request context.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charm "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/loggate/loggate/internal/platform/logging/format"
)

// Config holds logging configuration.
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json, text, pretty
	Service string // service name for default attrs
	Version string // service version for default attrs
	File    FileConfig
}

// FileConfig holds the rolling file sink configuration.
type FileConfig struct {
	Enabled    bool
	Path       string
	Format     string // flat, json, xml
	Template   string // field template, e.g. "%(levelname)s | %(asctime)s | %(message)s"
	TimeLayout string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileTemplate is used when the file sink declares no template.
const DefaultFileTemplate = "%(levelname)s %(asctime)s %(message)s %(context)s"

// New creates the configured slog.Logger writing console output to stdout.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates the configured slog.Logger with a custom console
// writer. Includes secret redaction on the console handler by default.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	handlers := []slog.Handler{consoleHandler(cfg.Format, level, w)}
	if cfg.File.Enabled {
		handlers = append(handlers, fileHandler(cfg.File, level))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = NewMultiHandler(handlers...)
	}

	// Context enrichment happens once, at emission time, for every sink.
	handler = NewContextHandler(handler)

	return slog.New(handler).With(
		slog.String("service_name", cfg.Service),
		slog.String("service_version", cfg.Version),
	)
}

func consoleHandler(formatName string, level slog.Level, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: NewReplaceAttr(),
	}

	switch strings.ToLower(formatName) {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "pretty":
		// charmbracelet levels share slog's numeric scale.
		return charm.NewWithOptions(w, charm.Options{
			Level:           charm.Level(level),
			ReportTimestamp: true,
		})
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

func fileHandler(cfg FileConfig, level slog.Level) slog.Handler {
	sink := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	template := cfg.Template
	if template == "" {
		template = DefaultFileTemplate
	}
	opts := format.Options{Level: level, TimeLayout: cfg.TimeLayout}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return format.NewJSONHandler(sink, template, opts)
	case "xml":
		return format.NewXMLHandler(sink, template, opts)
	default:
		return format.NewFlatHandler(sink, template, opts)
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
