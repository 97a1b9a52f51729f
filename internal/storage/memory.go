package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type memEntry struct {
	body    []byte
	version string
}

// Calls counts gateway operations.
type Calls struct {
	Exists   int
	Download int
	Upload   int
}

// Total is the number of gateway calls of any kind.
func (c Calls) Total() int { return c.Exists + c.Download + c.Upload }

// Memory is a map-backed Gateway. Versions are a per-store counter.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memEntry
	seq     int
	calls   Calls
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memEntry)}
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Download(_ context.Context, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Download++
	e, ok := m.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return Object{Body: append([]byte(nil), e.body...), Version: e.version}, nil
}

func (m *Memory) Upload(_ context.Context, key string, body []byte, expectVersion string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Upload++

	cur, ok := m.objects[key]
	if expectVersion != AnyVersion {
		if (expectVersion == "" && ok) || (expectVersion != "" && (!ok || cur.version != expectVersion)) {
			return "", fmt.Errorf("%s: expected %q, have %q: %w", key, expectVersion, cur.version, ErrVersionConflict)
		}
	}

	m.seq++
	v := strconv.Itoa(m.seq)
	m.objects[key] = memEntry{body: append([]byte(nil), body...), version: v}
	return v, nil
}

// Calls returns a snapshot of the call counters.
func (m *Memory) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Keys lists the stored keys, unordered.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
