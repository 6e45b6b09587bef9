package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"

	"estatelist/internal/api"
	"estatelist/internal/api/apitest"
	"estatelist/internal/config"
	"estatelist/internal/domain"
	"estatelist/internal/http/handlers"
	applog "estatelist/internal/log"
	"estatelist/internal/repos"
)

func seedProps(n int) []domain.Property {
	out := make([]domain.Property, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Property{
			ID:          int64(i),
			Address:     "Street " + string(rune('A'+i-1)),
			Price:       float64(1000 * i),
			Size:        float64(10 * i),
			Description: "unit",
		})
	}
	return out
}

// Full app against a fake backend; opts tweak limits per test.
func newTestApp(t *testing.T, be *apitest.Backend, opts handlers.AppOptions) *fiber.App {
	t.Helper()
	cfg := config.Defaults()
	cfg.DBDSN = ":memory:"
	cfg.APIURL = be.URL()
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if opts.Views == nil {
		opts.Views = html.New("../../web/templates", ".html")
	}
	if opts.RateMax == 0 {
		opts.RateMax = 1000
	}
	deps := handlers.NewDeps(db, cfg, api.NewClient(cfg.APIURL, time.Second))
	return handlers.NewApp(opts, deps)
}

// browser keeps the cookies an app hands out, like a real client would.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func newBrowser(t *testing.T, app *fiber.App) *browser {
	return &browser{t: t, app: app, cookies: map[string]string{}}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	for k, v := range b.cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	resp, err := b.app.Test(req, -1)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	for _, c := range resp.Cookies() {
		b.cookies[c.Name] = c.Value
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (b *browser) get(target string) (*http.Response, string) {
	return b.do(httptest.NewRequest("GET", target, nil))
}

// post submits form with the current CSRF token, fetching one first if needed.
func (b *browser) post(target string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	if b.cookies["csrf_"] == "" {
		b.get("/healthz")
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", b.cookies["csrf_"])
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	ReqID  string         `json:"req_id"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	old := applog.SetLogger(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer applog.SetLogger(old)

	fn()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
