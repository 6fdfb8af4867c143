// Package preferences is the small key-value store the inspector persists its
// menu choices in. fyne.Preferences satisfies Store directly.
package preferences

import "sync"

// Store reads and writes string preferences.
type Store interface {
	StringWithFallback(key, fallback string) string
	SetString(key, value string)
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) StringWithFallback(key, fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.values[key]; ok {
		return v
	}
	return fallback
}

func (m *Memory) SetString(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}
