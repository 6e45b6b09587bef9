package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

type Options struct {
	// Writer defaults to os.Stdout.
	Writer io.Writer
	// Format is "json" (default) or "console".
	Format string
	Level  slog.Level

	FluentEnabled bool
	FluentHost    string
	FluentPort    int
	FluentTag     string
}

// ParseLevel maps debug|info|audit|warn|error to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "audit":
		return LevelAudit
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the process logger from opts and installs it. The returned closer
// flushes the Fluent Bit connection when one was opened.
func Setup(opts Options) (io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "console", "text":
		h = tint.NewHandler(w, &tint.Options{
			Level:       opts.Level,
			TimeFormat:  "2006-01-02 15:04:05",
			ReplaceAttr: replaceLevel,
		})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: replaceLevel})
	}

	var closer io.Closer = nopCloser{}
	if opts.FluentEnabled {
		if opts.FluentHost == "" {
			return nil, errors.New("fluent bit enabled without a host")
		}
		client, err := fluent.New(fluent.Config{
			FluentHost: opts.FluentHost,
			FluentPort: opts.FluentPort,
			Async:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("connect fluent bit: %w", err)
		}
		tag := opts.FluentTag
		if tag == "" {
			tag = "estatelist"
		}
		h = fanout{h, NewFluentHandler(client, tag, opts.Level)}
		closer = client
	}

	SetLogger(slog.New(h))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
