package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Bucket for development and tests.
type Memory struct {
	mu      sync.Mutex
	base    string
	objects map[string][]byte
	types   map[string]string
}

var _ Bucket = (*Memory)(nil)

func NewMemory(baseURL string) *Memory {
	return &Memory{
		base:    strings.TrimSuffix(baseURL, "/"),
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (m *Memory) URL(key string) string { return m.base + "/" + strings.TrimPrefix(key, "/") }

func (m *Memory) PresignPut(_ context.Context, key string) (string, error) {
	return m.URL(key) + "?X-Amz-Expires=900", nil
}

func (m *Memory) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.types[key] = contentType
	return m.URL(key), nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

func (m *Memory) Copy(_ context.Context, src, dst string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[src]
	if !ok {
		return "", ErrNotFound
	}
	m.objects[dst] = append([]byte(nil), body...)
	m.types[dst] = m.types[src]
	return m.URL(dst), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

// Keys lists stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
