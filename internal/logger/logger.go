// Package logger is the process-wide structured logging facade for the
// gateway and its CLIs. The zero state logs INFO and above as colorized
// text when the output is a terminal; Init applies the operator's
// configuration and may be called again at runtime.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the minimum severity a record needs to be emitted.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string onto a Level. The second return is false
// for strings that name no level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config selects level, format, and destination.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	// minLevel gates the emit fast path without taking mu.
	minLevel atomic.Int32

	mu     sync.RWMutex
	sink   io.Writer = os.Stdout
	color            = writerIsTerminal(os.Stdout)
	format           = formatText
	active *slog.Logger
)

func init() {
	minLevel.Store(int32(LevelInfo))
	reconfigure()
}

// reconfigure rebuilds the slog handler from the current sink, format, and
// level. Callers must not hold mu.
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()
	rebuildLocked()
}

func rebuildLocked() {
	lv := new(slog.LevelVar)
	lv.Set(Level(minLevel.Load()).slogLevel())
	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	if format == formatJSON {
		h = slog.NewJSONHandler(sink, opts)
	} else {
		h = NewColorTextHandler(sink, opts, color)
	}
	active = slog.New(h)
}

// writerIsTerminal reports whether w is an open terminal.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f.Fd())
}

// Init applies the configuration. Output may be "stdout", "stderr", or a
// file path; files are opened append-only and logged without color. Empty
// fields keep their current values.
func Init(cfg Config) error {
	mu.Lock()
	switch strings.ToLower(cfg.Output) {
	case "":
		// keep the current sink
	case "stdout":
		sink, color = os.Stdout, writerIsTerminal(os.Stdout)
	case "stderr":
		sink, color = os.Stderr, writerIsTerminal(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		sink, color = f, false
	}
	mu.Unlock()

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Used by tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	sink, color = w, enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	reconfigure()
}

// SetLevel changes the minimum level at runtime. Unknown names are ignored.
func SetLevel(level string) {
	l, ok := ParseLevel(level)
	if !ok {
		return
	}
	minLevel.Store(int32(l))
	reconfigure()
}

// SetFormat switches between "text" and "json" at runtime. Anything else
// is ignored.
func SetFormat(f string) {
	f = strings.ToLower(f)
	if f != formatText && f != formatJSON {
		return
	}
	mu.Lock()
	format = f
	mu.Unlock()
	reconfigure()
}

func enabled(l Level) bool {
	return l >= Level(minLevel.Load())
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Debug emits a DEBUG record with alternating key/value fields.
func Debug(msg string, args ...any) {
	if !enabled(LevelDebug) {
		return
	}
	current().Debug(msg, args...)
}

// Info emits an INFO record with alternating key/value fields.
func Info(msg string, args ...any) {
	if !enabled(LevelInfo) {
		return
	}
	current().Info(msg, args...)
}

// Warn emits a WARN record with alternating key/value fields.
func Warn(msg string, args ...any) {
	if !enabled(LevelWarn) {
		return
	}
	current().Warn(msg, args...)
}

// Error emits an ERROR record with alternating key/value fields.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// DebugCtx is Debug plus the request fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !enabled(LevelDebug) {
		return
	}
	current().Debug(msg, contextArgs(ctx, args)...)
}

// InfoCtx is Info plus the request fields carried by ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if !enabled(LevelInfo) {
		return
	}
	current().Info(msg, contextArgs(ctx, args)...)
}

// WarnCtx is Warn plus the request fields carried by ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if !enabled(LevelWarn) {
		return
	}
	current().Warn(msg, contextArgs(ctx, args)...)
}

// ErrorCtx is Error plus the request fields carried by ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	current().Error(msg, contextArgs(ctx, args)...)
}

// contextArgs prepends the LogContext fields so they lead every record.
func contextArgs(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	pairs := [...]struct{ key, val string }{
		{KeyCorrelationID, lc.CorrelationID},
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyEnv, lc.Environment},
		{KeyEndpoint, lc.Endpoint},
		{KeyHandler, lc.Handler},
		{KeyTokenName, lc.TokenName},
		{KeyClientIP, lc.ClientIP},
	}

	out := make([]any, 0, 2*len(pairs)+len(args))
	for _, p := range pairs {
		if p.val != "" {
			out = append(out, p.key, p.val)
		}
	}
	return append(out, args...)
}

// Duration returns the time since start in milliseconds, for duration_ms
// fields.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
