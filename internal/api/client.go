package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"estatelist/internal/domain"
	applog "estatelist/internal/log"
)

// maxBody bounds how much of a response is read.
const maxBody = 4 << 20

// Client talks to the remote property collection, e.g. http://localhost:8080/properties.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) doRequest(ctx context.Context, method, u string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if rid := applog.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	applog.DebugCtx(ctx, "api.request", map[string]any{"method": method, "url": u})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		applog.ErrorCtx(ctx, "api.request.fail", err, map[string]any{"method": method, "url": u})
		return nil, &TransportError{Method: method, URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		serr := &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		applog.WarnCtx(ctx, "api.request.status", map[string]any{"method": method, "url": u, "status": resp.StatusCode})
		return nil, serr
	}
	return resp, nil
}

// decode reads resp, checks it against schema and unmarshals it into out.
func decode(resp *http.Response, schema string, out any) error {
	defer resp.Body.Close()
	u := resp.Request.URL.String()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &DecodeError{URL: u, Err: err}
	}
	if err := validateBody(schema, b); err != nil {
		return &DecodeError{URL: u, Err: err}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &DecodeError{URL: u, Err: err}
	}
	return nil
}

// discard drains a body the caller does not consume so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	_ = resp.Body.Close()
}

func (c *Client) itemURL(id int64) string {
	return c.baseURL + "/" + strconv.FormatInt(id, 10)
}

// List fetches one page of the collection in server order.
func (c *Client) List(ctx context.Context, page int) ([]domain.Property, error) {
	if page < 1 {
		page = 1
	}
	u := c.baseURL + "?page=" + strconv.Itoa(page)
	return c.list(ctx, u)
}

// Filter fetches the collection restricted to the non-empty filter fields.
// Location is sent as "address".
func (c *Client) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	q := url.Values{}
	if f.Location != "" {
		q.Set("address", f.Location)
	}
	if f.Price != "" {
		q.Set("price", f.Price)
	}
	if f.Size != "" {
		q.Set("size", f.Size)
	}
	u := c.baseURL
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.list(ctx, u)
}

func (c *Client) list(ctx context.Context, u string) ([]domain.Property, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	out := []domain.Property{}
	if err := decode(resp, schemaPropertyList, &out); err != nil {
		applog.ErrorCtx(ctx, "api.decode.fail", err, map[string]any{"url": u})
		return nil, err
	}
	applog.DebugCtx(ctx, "api.list.ok", map[string]any{"url": u, "count": len(out)})
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (domain.Property, error) {
	u := c.itemURL(id)
	resp, err := c.doRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Property{}, err
	}
	var p domain.Property
	if err := decode(resp, schemaProperty, &p); err != nil {
		applog.ErrorCtx(ctx, "api.decode.fail", err, map[string]any{"url": u})
		return domain.Property{}, err
	}
	return p, nil
}

// Create posts the four editable fields and returns the record with its assigned id.
func (c *Client) Create(ctx context.Context, in domain.PropertyInput) (domain.Property, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.baseURL, in)
	if err != nil {
		return domain.Property{}, err
	}
	var p domain.Property
	if err := decode(resp, schemaProperty, &p); err != nil {
		applog.ErrorCtx(ctx, "api.decode.fail", err, map[string]any{"url": c.baseURL})
		return domain.Property{}, err
	}
	return p, nil
}

// Update replaces the editable fields of id. The response body is not used.
func (c *Client) Update(ctx context.Context, id int64, in domain.PropertyInput) error {
	resp, err := c.doRequest(ctx, http.MethodPut, c.itemURL(id), in)
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, c.itemURL(id), nil)
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}
