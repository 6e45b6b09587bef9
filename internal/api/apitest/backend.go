// Package apitest provides an in-memory stand-in for the property backend.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"estatelist/internal/domain"
)

// Request is one call the backend received.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// Backend serves the /properties contract from a slice. Pages hold PageSize records.
type Backend struct {
	Server   *httptest.Server
	PageSize int

	mu       sync.Mutex
	props    []domain.Property
	nextID   int64
	requests []Request
	failWith int
	raw      string
	block    chan struct{}
}

func NewBackend(t *testing.T, props ...domain.Property) *Backend {
	t.Helper()
	b := &Backend{PageSize: 10, nextID: 1}
	for _, p := range props {
		b.props = append(b.props, p)
		if p.ID >= b.nextID {
			b.nextID = p.ID + 1
		}
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the collection endpoint.
func (b *Backend) URL() string { return b.Server.URL + "/properties" }

// FailWith makes every following request answer with status until reset with 0.
func (b *Backend) FailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = status
}

// RespondRaw makes every following request answer 200 with body until reset with "".
func (b *Backend) RespondRaw(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw = body
}

// Block holds requests until the returned func is called.
func (b *Backend) Block() (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.block = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.block = nil
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests used method.
func (b *Backend) Count(method string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (b *Backend) Last() Request {
	rs := b.Requests()
	if len(rs) == 0 {
		return Request{}
	}
	return rs[len(rs)-1]
}

func (b *Backend) Properties() []domain.Property {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Property(nil), b.props...)
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	block, fail, raw := b.block, b.failWith, b.raw
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}
	if fail != 0 {
		http.Error(w, http.StatusText(fail), fail)
		return
	}
	if raw != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, raw)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/properties")
	if rest == "" {
		b.collection(w, r, body)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(rest, "/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	b.item(w, r, id, body)
}

func (b *Backend) collection(w http.ResponseWriter, r *http.Request, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		out := []domain.Property{}
		if page := q.Get("page"); page != "" {
			n, _ := strconv.Atoi(page)
			start := (n - 1) * b.PageSize
			for i := start; i >= 0 && i < len(b.props) && i < start+b.PageSize; i++ {
				out = append(out, b.props[i])
			}
		} else {
			for _, p := range b.props {
				if match(p, q.Get("address"), q.Get("price"), q.Get("size")) {
					out = append(out, p)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var in domain.PropertyInput
		if err := json.Unmarshal(body, &in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p := domain.Property{ID: b.nextID, Address: in.Address, Price: in.Price, Size: in.Size, Description: in.Description}
		b.nextID++
		b.props = append(b.props, p)
		writeJSON(w, http.StatusCreated, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *Backend) item(w http.ResponseWriter, r *http.Request, id int64, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, p := range b.props {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		http.Error(w, "Property not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, b.props[idx])
	case http.MethodPut:
		var in domain.PropertyInput
		if err := json.Unmarshal(body, &in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.props[idx] = domain.Property{ID: id, Address: in.Address, Price: in.Price, Size: in.Size, Description: in.Description}
		writeJSON(w, http.StatusOK, b.props[idx])
	case http.MethodDelete:
		b.props = append(b.props[:idx], b.props[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func match(p domain.Property, address, price, size string) bool {
	if address != "" && !strings.Contains(strings.ToLower(p.Address), strings.ToLower(address)) {
		return false
	}
	if price != "" {
		if f, err := strconv.ParseFloat(price, 64); err != nil || p.Price != f {
			return false
		}
	}
	if size != "" {
		if f, err := strconv.ParseFloat(size, 64); err != nil || p.Size != f {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
