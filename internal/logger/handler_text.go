package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ColorTextHandler renders records as `[time] [LEVEL] message key=value ...`
// with ANSI colors when enabled. Keys inside groups are qualified with the
// group path ("group.key").
type ColorTextHandler struct {
	opts   *slog.HandlerOptions
	w      io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string // dot-joined group path, empty at the root
	color  bool
}

// NewColorTextHandler creates a handler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorTextHandler{
		opts:  opts,
		w:     w,
		mu:    new(sync.Mutex),
		color: useColor,
	}
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	name, tint := levelMeta(r.Level)

	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, "2006-01-02 15:04:05")
	buf = append(buf, "] ["...)
	if h.color {
		buf = append(buf, tint...)
		buf = append(buf, name...)
		buf = append(buf, colorReset...)
	} else {
		buf = append(buf, name...)
	}
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	// Pre-bound attrs were qualified when added; record attrs get the
	// handler's current group path.
	for _, a := range h.attrs {
		buf = h.appendAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

// levelMeta maps a slog level onto its display name and color.
func levelMeta(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG", colorGray
	case level < slog.LevelWarn:
		return "INFO", colorGreen
	case level < slog.LevelError:
		return "WARN", colorYellow
	default:
		return "ERROR", colorRed
	}
}

// appendAttr writes one ` key=value` pair, recursing into groups with the
// key path extended.
func (h *ColorTextHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			buf = h.appendAttr(buf, key, member)
		}
		return buf
	}

	buf = append(buf, ' ')
	if h.color {
		buf = append(buf, colorCyan...)
		buf = append(buf, key...)
		buf = append(buf, colorReset...)
	} else {
		buf = append(buf, key...)
	}
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return append(buf, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindAny:
		return fmt.Appendf(buf, "%v", v.Any())
	default:
		return append(buf, v.String()...)
	}
}

func (h *ColorTextHandler) clone() *ColorTextHandler {
	return &ColorTextHandler{
		opts:   h.opts,
		w:      h.w,
		mu:     h.mu, // all clones serialize writes through one lock
		attrs:  append([]slog.Attr(nil), h.attrs...),
		prefix: h.prefix,
		color:  h.color,
	}
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.prefix != "" {
		c.prefix += "." + name
	} else {
		c.prefix = name
	}
	return c
}
