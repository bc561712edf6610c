package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

var (
	once sync.Once
	base *slog.Logger
)

// Options controls where the global logger writes.
type Options struct {
	Component string
	FilePath  string    // rotated log file; empty disables file output
	Level     string    // debug | info | warn | error
	Console   io.Writer // defaults to os.Stdout; the MCP binary passes os.Stderr
}

// Init configures the global logger exactly once.
// Call this in main(): logging.Init(logging.Options{Component: "cart-api", FilePath: "./logs/app.log"})
func Init(o Options) *slog.Logger {
	once.Do(func() {
		base = build(o)
	})
	return base
}

func build(o Options) *slog.Logger {
	console := o.Console
	if console == nil {
		console = os.Stdout
	}
	w := console
	if o.FilePath != "" {
		_ = os.MkdirAll(filepath.Dir(o.FilePath), 0o755)
		rot := &lumberjack.Logger{
			Filename:   o.FilePath,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   false,
		}
		w = io.MultiWriter(console, rot)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(o.Level)})
	l := slog.New(h)
	if o.Component != "" {
		l = l.With("component", o.Component)
	}
	return l
}

// ParseLevel maps a config level name to slog; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Base returns the global logger (Init if not already called).
func Base() *slog.Logger {
	if base == nil {
		// Safe default: console only, generic component
		return Init(Options{Component: "app"})
	}
	return base
}

// New returns a child logger derived from the global one.
// IMPORTANT: does NOT create a new handler/writer; it reuses the global handler.
func New(component string) *slog.Logger {
	return Base().With("component", component)
}

// WithCtx stores a logger in a standard context (useful outside Gin).
func WithCtx(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx fetches a logger from ctx or falls back to the global one.
func FromCtx(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Base()
}

// With stores the logger in gin.Context and in the request context, so
// usecases called with c.Request.Context() log with the same request fields.
func With(c *gin.Context, l *slog.Logger) {
	c.Set("logger", l)
	c.Request = c.Request.WithContext(WithCtx(c.Request.Context(), l))
}

// From returns the request-scoped logger from gin.Context, or the global one.
func From(c *gin.Context) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Base()
}
