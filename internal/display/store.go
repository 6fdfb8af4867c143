package display

import (
	"sync"
	"sync/atomic"
)

// SettingsStore is the versioned holder of the current snapshot. Writers read
// the current value, derive a new one and publish it with CompareAndSet, which
// fails when another writer got there first.
type SettingsStore interface {
	Current() *Settings
	CompareAndSet(expected, updated *Settings) bool
}

// ChangeFunc observes a committed transition from old to updated.
type ChangeFunc func(old, updated *Settings)

// AtomicStore implements SettingsStore on an atomic pointer. Identity, not
// structural equality, decides whether a swap succeeds: a snapshot read from
// the store is the only valid "expected" argument.
type AtomicStore struct {
	current atomic.Pointer[Settings]

	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]ChangeFunc
}

// NewAtomicStore creates a store holding initial, or DefaultSettings when
// initial is nil.
func NewAtomicStore(initial *Settings) *AtomicStore {
	if initial == nil {
		initial = DefaultSettings()
	}
	s := &AtomicStore{listeners: make(map[uint64]ChangeFunc)}
	s.current.Store(initial)
	return s
}

func (s *AtomicStore) Current() *Settings {
	return s.current.Load()
}

// CompareAndSet publishes updated if expected is still current. Listeners run
// synchronously on the caller's goroutine after a successful swap.
func (s *AtomicStore) CompareAndSet(expected, updated *Settings) bool {
	if updated == nil {
		return false
	}
	if !s.current.CompareAndSwap(expected, updated) {
		return false
	}

	s.mu.RLock()
	listeners := make([]ChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(expected, updated)
	}
	return true
}

// Watch registers fn for committed changes and returns a function that
// removes it. The returned function is safe to call more than once.
func (s *AtomicStore) Watch(fn ChangeFunc) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
