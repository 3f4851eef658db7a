// Package log provides helpers for creating a configured slog.Logger.
//
// When a log file path is not provided, logs are written to stdout for
// non-error levels and to stderr for errors, so a build can be piped while
// failures stay visible.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LevelTrace defines a custom slog level below Debug for very verbose output.
const LevelTrace slog.Level = -8

// Options configures SetupLogger.
type Options struct {
	Level  string // trace, debug, info, warn or error
	Format string // text or json
	File   string // optional log file; console output then goes to stderr only
}

// ParseLevel maps a level name to its slog level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// MultiHandler fans out records to multiple handlers.
type MultiHandler struct{ hs []slog.Handler }

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// LevelFilter delegates to an underlying handler but filters which levels are
// passed to it using the provided predicate.
type LevelFilter struct {
	pass func(slog.Level) bool
	h    slog.Handler
}

func (f LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if !f.pass(level) {
		return false
	}
	return f.h.Enabled(ctx, level)
}

func (f LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.pass(r.Level) {
		return nil
	}
	return f.h.Handle(ctx, r)
}

func (f LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithAttrs(attrs)}
}

func (f LevelFilter) WithGroup(name string) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithGroup(name)}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// New builds a console logger writing below-error records to stdout and
// errors to stderr.
func New(stdout, stderr io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	mk, err := handlerFactory(opts.Format)
	if err != nil {
		return nil, err
	}
	return slog.New(MultiHandler{hs: []slog.Handler{
		LevelFilter{pass: func(l slog.Level) bool { return l < slog.LevelError }, h: mk(stdout, level)},
		LevelFilter{pass: func(l slog.Level) bool { return l >= slog.LevelError }, h: mk(stderr, slog.LevelError)},
	}}), nil
}

// SetupLogger builds a slog.Logger with console and optional file handlers.
// The returned closers must be closed once logging is done.
func SetupLogger(opts Options) (*slog.Logger, []io.Closer, error) {
	if opts.File == "" {
		logger, err := New(os.Stdout, os.Stderr, opts)
		return logger, nil, err
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	mk, err := handlerFactory(opts.Format)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(MultiHandler{hs: []slog.Handler{
		mk(os.Stderr, level),
		mk(f, level),
	}})
	return logger, []io.Closer{f}, nil
}

func handlerFactory(format string) (func(io.Writer, slog.Level) slog.Handler, error) {
	switch format {
	case "text", "":
		return func(w io.Writer, l slog.Level) slog.Handler {
			return slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})
		}, nil
	case "json":
		return func(w io.Writer, l slog.Level) slog.Handler {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})
		}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
