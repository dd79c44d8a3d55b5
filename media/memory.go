package media

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"sync"
)

// Object is an image held by a Memory bucket.
type Object struct {
	Data []byte
	Metadata
}

// Memory is an in-process bucket for local development and tests. Objects
// are addressed as {baseURL}/{key}.
type Memory struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Probe(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, _ int64, meta Metadata) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: buf.Bytes(), Metadata: meta}
	m.mu.Unlock()
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) KeyFromURL(rawURL string) (string, bool) {
	prefix := m.baseURL + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
