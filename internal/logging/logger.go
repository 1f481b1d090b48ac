package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type Options struct {
	Level     string
	Format    string
	Writer    io.Writer
	Component string
}

func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatText) {
		h = slog.NewTextHandler(writer, handlerOpts)
	} else {
		h = slog.NewJSONHandler(writer, handlerOpts)
	}
	lg := slog.New(h)
	if strings.TrimSpace(opts.Component) != "" {
		lg = lg.With("component", strings.TrimSpace(opts.Component))
	}
	return lg
}

// Discard drops every record; handy for tests and quiet CLI subcommands.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
