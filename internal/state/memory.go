// internal/state/memory.go
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// MemoryBackend keeps stores in process memory. Values are copied on the
// way in and out.
type MemoryBackend struct {
	mu     sync.RWMutex
	stores map[string]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) GetAll(_ context.Context, store string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.stores[store]))
	for k, v := range m.stores[store] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *MemoryBackend) Get(_ context.Context, store, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.stores[store][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", store, key, types.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Put(_ context.Context, store, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[store]
	if !ok {
		s = make(map[string][]byte)
		m.stores[store] = s
	}
	s[key] = append([]byte(nil), value...)
	return nil
}

// PutAbsent writes the entries whose keys are not yet present.
func (m *MemoryBackend) PutAbsent(_ context.Context, store string, entries map[string][]byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[store]
	if !ok {
		s = make(map[string][]byte)
		m.stores[store] = s
	}
	n := 0
	for k, v := range entries {
		if _, exists := s[k]; exists {
			continue
		}
		s[k] = append([]byte(nil), v...)
		n++
	}
	return n, nil
}

func (m *MemoryBackend) Delete(_ context.Context, store, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.stores[store], key)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
