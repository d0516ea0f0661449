package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

var (
	debugColor = color.New(color.FgCyan)
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	keyColor   = color.New(color.FgHiBlack)
)

// consoleHandler renders records as one colored line each:
//
//	15:04:05 WARN  No assets directory found path=assets
//
// Every record is written with a single Write call.
type consoleHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

func newConsoleHandler(out io.Writer, level slog.Level) *consoleHandler {
	return &consoleHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(keyColor.Sprint(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')
	buf.WriteString(levelTag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&buf, " %s%s", keyColor.Sprint(key+"="), formatValue(a.Value))
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return errorColor.Sprint("ERROR")
	case level >= slog.LevelWarn:
		return warnColor.Sprint("WARN ")
	case level >= slog.LevelInfo:
		return infoColor.Sprint("INFO ")
	default:
		return debugColor.Sprint("DEBUG")
	}
}

func formatValue(v slog.Value) string {
	s := v.Resolve().String()
	if s == "" || bytes.ContainsAny([]byte(s), " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
