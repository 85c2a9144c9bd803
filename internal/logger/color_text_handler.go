package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiDim     = "\033[2m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// highlighted attribute keys get their value printed in bold magenta, so the
// configuration a line is about stands out in a terminal.
var highlighted = map[string]bool{"name": true, "previous": true}

// ColorTextHandler prints terminal-friendly lines:
//
//	[15:04:05] LEVEL  message key=value ...
//
// Level is coloured, configuration names are highlighted and errors are red.
// Escape codes are written raw, never quoted, so it must only be used for a console.
type ColorTextHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	showTime  bool
	addSource bool
	pre       []byte // attrs added via WithAttrs, already formatted
	prefix    string // open groups, "a.b."
}

// NewColorTextHandler creates a new ColorTextHandler. Only Level and AddSource of
// opts are honoured; showTime controls the leading clock.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	h := &ColorTextHandler{mu: &sync.Mutex{}, w: w, level: slog.LevelInfo, showTime: showTime}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *ColorTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	if h.showTime && !r.Time.IsZero() {
		buf = append(buf, ansiDim...)
		buf = r.Time.AppendFormat(buf, time.TimeOnly)
		buf = append(buf, ansiReset...)
		buf = append(buf, ' ')
	}
	buf = append(buf, levelColor(r.Level)...)
	buf = append(buf, fmt.Sprintf("%-5s", r.Level.String())...)
	buf = append(buf, ansiReset...)
	buf = append(buf, "  "...)
	buf = append(buf, r.Message...)

	if h.addSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		buf = appendAttr(buf, "", slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", f.File, f.Line)))
	}
	buf = append(buf, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.pre = append([]byte(nil), h.pre...)
	for _, a := range attrs {
		c.pre = appendAttr(c.pre, h.prefix, a)
	}
	return &c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiYellow
	case l >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, p, ga)
		}
		return buf
	}

	key := prefix + a.Key
	val := quoteIfNeeded(a.Value.String())
	buf = append(buf, ' ')
	buf = append(buf, ansiDim...)
	buf = append(buf, key...)
	buf = append(buf, '=')
	buf = append(buf, ansiReset...)
	switch {
	case highlighted[a.Key]:
		buf = append(buf, ansiBold+ansiMagenta...)
		buf = append(buf, val...)
		buf = append(buf, ansiReset...)
	case a.Key == "error" || a.Key == "err":
		buf = append(buf, ansiRed...)
		buf = append(buf, val...)
		buf = append(buf, ansiReset...)
	default:
		buf = append(buf, val...)
	}
	return buf
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
