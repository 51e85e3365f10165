// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTextLen bounds how much of a user's message ends up in a log line.
const DefaultMaxTextLen = 80

// textKeys are attributes that carry user messages.
var textKeys = map[string]struct{}{
	"text":    {},
	"comment": {},
}

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON enables JSON output format.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// MaxTextLen truncates message text attributes; zero keeps them whole.
	MaxTextLen int
}

// DefaultConfig returns a logging configuration read from the environment:
// LOG_LEVEL (DEBUG, INFO, WARN, ERROR; default INFO), LOG_FORMAT=json and
// LOG_MAX_TEXT (default DefaultMaxTextLen, 0 disables truncation).
func DefaultConfig() Config {
	cfg := Config{
		Level:      ParseLevel(os.Getenv("LOG_LEVEL")),
		JSON:       strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		Output:     os.Stderr,
		MaxTextLen: DefaultMaxTextLen,
	}
	if v, err := strconv.Atoi(os.Getenv("LOG_MAX_TEXT")); err == nil && v >= 0 {
		cfg.MaxTextLen = v
	}
	return cfg
}

// ParseLevel converts a level name to slog.Level. Unknown names map to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		ReplaceAttr: truncateText(cfg.MaxTextLen),
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func truncateText(limit int) func([]string, slog.Attr) slog.Attr {
	if limit <= 0 {
		return nil
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := textKeys[a.Key]; !ok || a.Value.Kind() != slog.KindString {
			return a
		}
		s := a.Value.String()
		if utf8.RuneCountInString(s) <= limit {
			return a
		}
		return slog.String(a.Key, string([]rune(s)[:limit])+"…")
	}
}
