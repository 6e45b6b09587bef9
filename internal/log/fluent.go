package log

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// poster is the part of *fluent.Fluent the handler needs.
type poster interface {
	Post(tag string, message interface{}) error
}

// FluentHandler forwards records to Fluent Bit as flat maps tagged "<tag>.<level>".
type FluentHandler struct {
	client poster
	tag    string
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func NewFluentHandler(client poster, tag string, level slog.Level) *FluentHandler {
	return &FluentHandler{client: client, tag: tag, level: level}
}

func (h *FluentHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *FluentHandler) Handle(_ context.Context, r slog.Record) error {
	data := make(map[string]interface{}, len(h.attrs)+r.NumAttrs()+3)
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[h.prefix+a.Key] = a.Value.Resolve().Any()
		return true
	})
	level := strings.ToLower(r.Level.String())
	if r.Level == LevelAudit {
		level = "audit"
	}
	data["level"] = level
	data["message"] = r.Message
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	data["timestamp"] = ts.UTC().Format(time.RFC3339Nano)
	return h.client.Post(h.tag+"."+level, data)
}

func (h *FluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
