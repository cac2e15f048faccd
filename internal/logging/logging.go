// ABOUTME: slog logger construction with colorized text or JSON output.
// ABOUTME: Output goes to the given writer, or to an append-only file when configured.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Options selects level, format and destination.
type Options struct {
	// Level accepts trace, debug, info, warn, warning or error in any case.
	Level string
	// Format is "text" (colorized) or "json".
	Format string
	// File, when set, receives output instead of the writer passed to New.
	File string
	// NoColor disables ANSI colors in text output.
	NoColor bool
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing to w, or to opts.File when set.
// The returned closer releases the log file; it is a no-op otherwise.
func New(opts Options, w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	noColor := opts.NoColor
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = f
		noColor = true
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = NewColorHandler(w, level, noColor)
	}

	return slog.New(handler), closer, nil
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu      *sync.Mutex
	out     io.Writer
	level   slog.Leveler
	noColor bool
	attrs   []slog.Attr
	groups  []string
}

// NewColorHandler returns a handler printing one human-readable line per record.
func NewColorHandler(w io.Writer, level slog.Leveler, noColor bool) slog.Handler {
	return &colorHandler{
		mu:      &sync.Mutex{},
		out:     w,
		level:   level,
		noColor: noColor,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if h.noColor {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(h.paint(r.Time.Format("15:04:05")+" ", color.FgHiBlack))

	switch {
	case r.Level < slog.LevelInfo:
		buf.WriteString(h.paint("DBG ", color.FgMagenta))
	case r.Level < slog.LevelWarn:
		buf.WriteString(h.paint("INF ", color.FgCyan))
	case r.Level < slog.LevelError:
		buf.WriteString(h.paint("WRN ", color.FgYellow))
	default:
		buf.WriteString(h.paint("ERR ", color.FgRed, color.Bold))
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, prefix, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}
	buf.WriteString(h.paint(" "+prefix+a.Key+"=", color.FgHiBlack))
	buf.WriteString(a.Value.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	clone := *h
	clone.groups = newGroups
	return &clone
}
