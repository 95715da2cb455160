package storage

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned by Available when the probe round trip fails.
var ErrUnavailable = errors.New("storage: unavailable")

// probeKey is written and removed by Available.
const probeKey = "__storage_probe__"

// Store persists ordered string lists by key. Load of a missing key returns
// an empty list and no error.
type Store interface {
	Load(key string) ([]string, error)
	Save(key string, items []string) error
	Remove(key string) error
}

// Available reports whether st can round-trip a value.
func Available(st Store) error {
	if st == nil {
		return ErrUnavailable
	}
	want := []string{"probe"}
	if err := st.Save(probeKey, want); err != nil {
		return fmt.Errorf("%w: save: %v", ErrUnavailable, err)
	}
	got, err := st.Load(probeKey)
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	if len(got) != 1 || got[0] != want[0] {
		return fmt.Errorf("%w: probe value did not round-trip", ErrUnavailable)
	}
	if err := st.Remove(probeKey); err != nil {
		return fmt.Errorf("%w: remove: %v", ErrUnavailable, err)
	}
	return nil
}

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]string)}
}

// Load returns a copy of the list stored under key.
func (m *Memory) Load(key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.data[key]
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}

// Save replaces the list stored under key with a copy of items.
func (m *Memory) Save(key string, items []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(items))
	copy(cp, items)
	m.data[key] = cp
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the number of keys currently held.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
