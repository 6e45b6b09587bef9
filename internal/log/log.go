package log

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// LevelAudit sits between info and warn so audit entries survive an info threshold.
const LevelAudit = slog.Level(2)

var (
	mu   sync.RWMutex
	base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{ReplaceAttr: replaceLevel}))
)

// SetLogger swaps the process logger and returns the previous one.
func SetLogger(l *slog.Logger) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	old := base
	base = l
	return old
}

func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

type requestIDKey struct{}

// WithRequestID stores the request id so code without a fiber.Ctx can log and forward it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Context returns the request context of c carrying fiber's request id.
func Context(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if rid, ok := c.Locals("requestid").(string); ok {
		ctx = WithRequestID(ctx, rid)
	}
	return ctx
}

func write(level slog.Level, c *fiber.Ctx, action string, err error, fields map[string]any) {
	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs, slog.String("action", action))
	ctx := context.Background()
	if c != nil {
		ctx = c.UserContext()
		attrs = append(attrs,
			slog.String("ip", c.IP()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
		)
		if st := c.Response().StatusCode(); st != 0 {
			attrs = append(attrs, slog.Int("status", st))
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, slog.String("req_id", rid))
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Any("fields", fields))
	}
	Logger().LogAttrs(ctx, level, action, attrs...)
}

func writeCtx(ctx context.Context, level slog.Level, action string, err error, fields map[string]any) {
	attrs := []slog.Attr{slog.String("action", action)}
	if rid := RequestID(ctx); rid != "" {
		attrs = append(attrs, slog.String("req_id", rid))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Any("fields", fields))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	Logger().LogAttrs(ctx, level, action, attrs...)
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(slog.LevelInfo, c, action, nil, fields)
}
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(LevelAudit, c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(slog.LevelWarn, c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(slog.LevelError, c, action, err, fields)
}

func DebugCtx(ctx context.Context, action string, fields map[string]any) {
	writeCtx(ctx, slog.LevelDebug, action, nil, fields)
}
func InfoCtx(ctx context.Context, action string, fields map[string]any) {
	writeCtx(ctx, slog.LevelInfo, action, nil, fields)
}
func WarnCtx(ctx context.Context, action string, fields map[string]any) {
	writeCtx(ctx, slog.LevelWarn, action, nil, fields)
}
func ErrorCtx(ctx context.Context, action string, err error, fields map[string]any) {
	writeCtx(ctx, slog.LevelError, action, err, fields)
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAudit {
			return slog.String(slog.LevelKey, "AUDIT")
		}
	}
	return a
}
