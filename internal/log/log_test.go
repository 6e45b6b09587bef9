package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: replaceLevel})))
	t.Cleanup(func() { SetLogger(old) })
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestEntriesCarryRequestContext(t *testing.T) {
	buf := captureJSON(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/x", func(c *fiber.Ctx) error {
		Audit(c, "properties.create", map[string]any{"id": 7})
		Error(c, "properties.load.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/x", nil)); err != nil {
		t.Fatal(err)
	}

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("want 2 entries, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "AUDIT" || lines[0]["action"] != "properties.create" {
		t.Fatalf("unexpected audit entry %v", lines[0])
	}
	if lines[0]["req_id"] == "" || lines[0]["path"] != "/x" {
		t.Fatalf("request fields missing: %v", lines[0])
	}
	if lines[1]["level"] != "ERROR" || lines[1]["err"] != "boom" {
		t.Fatalf("unexpected error entry %v", lines[1])
	}
}

func TestCtxEntriesUseRequestID(t *testing.T) {
	buf := captureJSON(t)
	ctx := WithRequestID(context.Background(), "rid-1")
	InfoCtx(ctx, "api.request", map[string]any{"url": "http://x"})

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["req_id"] != "rid-1" {
		t.Fatalf("req_id not propagated: %v", lines)
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("empty context should carry no id")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("audit") != LevelAudit || ParseLevel("nope") != slog.LevelInfo {
		t.Fatal("level mapping broken")
	}
}

type fakePoster struct {
	tags []string
	msgs []map[string]interface{}
}

func (f *fakePoster) Post(tag string, m interface{}) error {
	f.tags = append(f.tags, tag)
	f.msgs = append(f.msgs, m.(map[string]interface{}))
	return nil
}

func TestFluentHandlerFlattensRecords(t *testing.T) {
	fp := &fakePoster{}
	l := slog.New(NewFluentHandler(fp, "estatelist", slog.LevelInfo)).With("component", "api")
	l.Debug("dropped")
	l.Log(context.Background(), LevelAudit, "properties.delete", "id", 3)

	if len(fp.msgs) != 1 {
		t.Fatalf("want 1 posted record, got %d", len(fp.msgs))
	}
	if fp.tags[0] != "estatelist.audit" {
		t.Fatalf("unexpected tag %q", fp.tags[0])
	}
	m := fp.msgs[0]
	if m["message"] != "properties.delete" || m["component"] != "api" || m["id"] != int64(3) {
		t.Fatalf("unexpected record %v", m)
	}
}

func TestSetupConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	t.Cleanup(func() { SetLogger(old) })

	c, err := Setup(Options{Writer: &buf, Format: "console", Level: slog.LevelInfo})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	InfoCtx(context.Background(), "server.start", nil)
	if !strings.Contains(buf.String(), "server.start") {
		t.Fatalf("console output missing action: %q", buf.String())
	}
}

func TestSetupFluentNeedsHost(t *testing.T) {
	old := Logger()
	t.Cleanup(func() { SetLogger(old) })
	if _, err := Setup(Options{FluentEnabled: true}); err == nil {
		t.Fatal("expected error without fluent host")
	}
}
