package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	FormatText = "text"
	FormatJSON = "json"
)

// Config combines the console handler settings with an optional rotating file.
type Config struct {
	Slog SlogConfig
	File FileConfig
}

// SlogConfig controls the structured logger written to stderr.
type SlogConfig struct {
	Level      string
	Format     string // text or json
	Color      bool   // ANSI level colors, text format only
	TimeStamps bool
	Source     bool
}

// FileConfig mirrors every record into a lumberjack-rotated file when Path is set.
type FileConfig struct {
	Path       string
	MaxSizeMB  int  // megabytes before rotation (default 10)
	MaxBackups int  // number of backups to keep (default 3)
	MaxAgeDays int  // days to keep (default 7)
	Compress   bool // gzip rotated files
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Writer returns the rotating file writer, or nil when no file is configured.
func (c FileConfig) Writer() io.WriteCloser {
	if c.Path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// NewSlogger builds a logger writing to stderr and, if configured, the log file.
// The returned closer releases the file; it is never nil.
func (c Config) NewSlogger() (*slog.Logger, io.Closer) {
	return c.newSlogger(os.Stderr)
}

func (c Config) newSlogger(console io.Writer) (*slog.Logger, io.Closer) {
	level, err := ParseLevel(c.Slog.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: c.Slog.Source,
	}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}

	var closer io.Closer = nopCloser{}
	file := c.File.Writer()
	if file != nil {
		closer = file
	}

	var h slog.Handler
	switch {
	case c.Slog.Format == FormatJSON:
		h = slog.NewJSONHandler(tee(console, file), opts)
	case c.Slog.Color && file == nil:
		h = NewColorTextHandler(console, opts, c.Slog.TimeStamps)
	default:
		// escape codes are kept out of log files
		h = slog.NewTextHandler(tee(console, file), opts)
	}
	return slog.New(h), closer
}

func tee(console io.Writer, file io.Writer) io.Writer {
	if file == nil {
		return console
	}
	return io.MultiWriter(console, file)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
