package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/workwhile/automation/common/middleware"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Format is "json" (default) or "text".
	Format string
	// Service, when set, is attached to every record.
	Service string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// Logger is a slog.Logger whose records carry the request ID found in the
// context passed to the *Context methods.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}

	l := FromHandler(h)
	if opts.Service != "" {
		l = l.With(Service(opts.Service))
	}
	return l
}

// FromHandler wraps h so records pick up the request ID from their context.
func FromHandler(h slog.Handler) *Logger {
	if _, ok := h.(requestHandler); !ok {
		h = requestHandler{Handler: h}
	}
	return &Logger{Logger: slog.New(h)}
}

// Default wraps the handler of slog.Default.
func Default() *Logger {
	return FromHandler(slog.Default().Handler())
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return FromHandler(slog.NewTextHandler(io.Discard, nil))
}

// With returns a new logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup returns a new logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}

// requestHandler adds request_id to records logged with a request context.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			r.AddAttrs(slog.String(FieldRequestID, id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel maps debug, info, warn(ing) and error, in any case, to a level.
// Anything else is info.
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

// SetDefault installs l as slog's default logger.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
