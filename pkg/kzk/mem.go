package kzk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Mem is an in-memory Store, used by tests and examples in place of a real
// coordination-store client.
type Mem struct {
	mu       sync.Mutex
	nodes    map[string][]byte
	seq      map[string]int
	watchers map[string][]func()
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		nodes:    make(map[string][]byte),
		seq:      make(map[string]int),
		watchers: make(map[string][]func()),
	}
}

func (m *Mem) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[path]
	return ok, nil
}

func (m *Mem) ReadData(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.nodes[path]
	if !ok {
		return nil, ErrNoNode{Path: path}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Mem) CreatePersistent(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[path]; ok {
		return ErrNodeExists{Path: path}
	}
	m.nodes[path] = append([]byte(nil), data...)
	return nil
}

func (m *Mem) UpdatePersistent(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	watchers := m.watchers[path]
	delete(m.watchers, path)
	if _, ok := m.nodes[path]; !ok {
		m.mu.Unlock()
		return ErrNoNode{Path: path}
	}
	m.nodes[path] = append([]byte(nil), data...)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
	return nil
}

func (m *Mem) CreatePersistentSequential(_ context.Context, pathPrefix string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.seq[pathPrefix]
	m.seq[pathPrefix] = n + 1
	path := fmt.Sprintf("%s%010d", pathPrefix, n)
	m.nodes[path] = append([]byte(nil), data...)
	return path, nil
}

func (m *Mem) DeletePathRecursive(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for p := range m.nodes {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.nodes, p)
			found = true
		}
	}
	if !found {
		return ErrNoNode{Path: path}
	}
	return nil
}

func (m *Mem) Watch(_ context.Context, path string, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers[path] = append(m.watchers[path], fn)
	return nil
}

// Paths returns every known path in sorted order, for test assertions.
func (m *Mem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.nodes))
	for p := range m.nodes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
