// Package client is a typed HTTP client for the API with a small response
// cache. Reads are served from the cache while fresh, concurrent reads of
// the same path share one request, and mutations invalidate cached paths
// by prefix.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleTime is how long a cached read stays fresh.
const DefaultStaleTime = 5 * time.Minute

// Envelope is the body of every API response.
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type entry struct {
	data    json.RawMessage
	fetched time.Time
}

// Client talks to one API base URL and keeps the session cookie in a jar.
type Client struct {
	base      string
	http      *http.Client
	staleTime time.Duration
	now       func() time.Time

	mu       sync.Mutex
	cache    map[string]entry
	gen      uint64
	inflight map[string]uint64
	group    singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New returns a client for baseURL, e.g. "https://api.example.com/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("client: base url is required")
	}
	c := &Client{
		base:      strings.TrimSuffix(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		staleTime: DefaultStaleTime,
		now:       time.Now,
		cache:     map[string]entry{},
		inflight:  map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Invalidate drops cached reads whose path starts with any prefix. No
// prefixes clears the whole cache. Reads already in flight are detached so
// their responses are not cached and later reads refetch.
func (c *Client) Invalidate(prefixes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	match := func(path string) bool {
		if len(prefixes) == 0 {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
	for path := range c.cache {
		if match(path) {
			delete(c.cache, path)
		}
	}
	for path := range c.inflight {
		if match(path) {
			c.group.Forget(path)
			delete(c.inflight, path)
		}
	}
}

// begin marks path as being fetched and returns the cache generation.
func (c *Client) begin(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[path] = c.gen
	return c.gen
}

func (c *Client) cached(path string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[path]
	if !ok || c.now().Sub(e.fetched) >= c.staleTime {
		return nil, false
	}
	return e.data, true
}

// store caches data unless an invalidation happened since gen.
func (c *Client) store(path string, gen uint64, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(path, gen)
	if gen != c.gen {
		return
	}
	c.cache[path] = entry{data: data, fetched: c.now()}
}

func (c *Client) end(path string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(path, gen)
}

// finish clears the in-flight mark left by the fetch that began at gen.
// Callers hold mu.
func (c *Client) finish(path string, gen uint64) {
	if g, ok := c.inflight[path]; ok && g == gen {
		delete(c.inflight, path)
	}
}

// Query performs a cached GET of path and decodes the envelope data.
func Query[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	raw, ok := c.cached(path)
	if !ok {
		v, err, _ := c.group.Do(path, func() (any, error) {
			gen := c.begin(path)
			data, err := c.send(ctx, http.MethodGet, path, nil)
			if err != nil {
				c.end(path, gen)
				return nil, err
			}
			c.store(path, gen, data)
			return data, nil
		})
		if err != nil {
			return out, err
		}
		raw = v.(json.RawMessage)
	}
	if err := decode(raw, &out); err != nil {
		return out, fmt.Errorf("client: decode %s: %w", path, err)
	}
	return out, nil
}

// Mutate sends a non-cached request and, on success, invalidates the given
// path prefixes.
func Mutate[T any](ctx context.Context, c *Client, method, path string, body any, invalidate ...string) (T, error) {
	var out T
	raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	if len(invalidate) > 0 {
		c.Invalidate(invalidate...)
	}
	if err := decode(raw, &out); err != nil {
		return out, fmt.Errorf("client: decode %s: %w", path, err)
	}
	return out, nil
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}
