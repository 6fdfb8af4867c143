package inspector

import (
	"sync"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/eventbus"
	"intensity-inspector/internal/stats"
	"intensity-inspector/internal/viewer"
)

// fakeSource delivers events synchronously to whoever is registered.
type fakeSource struct {
	mu           sync.Mutex
	handlers     map[string]eventbus.EventHandler
	registered   int
	unregistered int
}

func (f *fakeSource) RegisterForEvents(h eventbus.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]eventbus.EventHandler)
	}
	f.handlers[h.GetID()] = h
	f.registered++
}

func (f *fakeSource) UnregisterForEvents(h eventbus.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, h.GetID())
	f.unregistered++
}

func (f *fakeSource) emit(eventType string, data interface{}) {
	f.mu.Lock()
	handlers := make([]eventbus.EventHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h.Handle(eventbus.Event{Type: eventType, Data: data})
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeProvider struct {
	fakeSource
	channels int
}

func (p *fakeProvider) AxisLength(axis viewer.Axis) int {
	if axis != viewer.AxisChannel {
		return 0
	}
	return p.channels
}

// plainViewer has no statistics, so it cannot be inspected.
type plainViewer struct {
	fakeSource
	store    display.SettingsStore
	provider *fakeProvider
}

func (v *plainViewer) Settings() display.SettingsStore   { return v.store }
func (v *plainViewer) DataProvider() viewer.DataProvider { return v.provider }

type fakeViewer struct {
	plainViewer
	batch *stats.Batch
	rates []float64
}

func newFakeViewer(channels int) *fakeViewer {
	return &fakeViewer{plainViewer: plainViewer{
		store:    display.NewAtomicStore(nil),
		provider: &fakeProvider{channels: channels},
	}}
}

func (v *fakeViewer) CurrentBatch() *stats.Batch { return v.batch }
func (v *fakeViewer) SetStatsRate(hz float64)    { v.rates = append(v.rates, hz) }

// flakyStore loses the first n compare-and-set calls to a competing writer,
// which commits interfere to the real store before each loss.
type flakyStore struct {
	*display.AtomicStore

	mu        sync.Mutex
	failures  int
	calls     int
	successes int
	interfere Mutator
}

func (s *flakyStore) CompareAndSet(expected, updated *display.Settings) bool {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		if s.interfere != nil {
			cur := s.AtomicStore.Current()
			s.AtomicStore.CompareAndSet(cur, s.interfere(cur))
		}
		return false
	}
	ok := s.AtomicStore.CompareAndSet(expected, updated)
	if ok {
		s.mu.Lock()
		s.successes++
		s.mu.Unlock()
	}
	return ok
}

// hookStore runs after once, right after its first successful write.
type hookStore struct {
	*display.AtomicStore
	after func()
}

func (s *hookStore) CompareAndSet(expected, updated *display.Settings) bool {
	if !s.AtomicStore.CompareAndSet(expected, updated) {
		return false
	}
	if fn := s.after; fn != nil {
		s.after = nil
		fn()
	}
	return true
}

// imageRef resolves to fixed coordinates, or fails once closed.
type imageRef struct {
	coords stats.Coords
	closed bool
}

func (r imageRef) Coords() (stats.Coords, error) {
	if r.closed {
		return stats.Coords{}, stats.ErrImageNotFound
	}
	return r.coords, nil
}

// batchFor builds a batch with one result per channel, each with Min set to
// 100*channel so deliveries are distinguishable.
func batchFor(channels ...int) *stats.Batch {
	req := make(stats.StaticRequest, len(channels))
	results := make([]stats.ChannelStats, len(channels))
	for i, ch := range channels {
		req[i] = stats.Coords{Channel: ch}
		results[i] = stats.ChannelStats{
			ImageIndex: i,
			Min:        int64(100 * ch),
			Max:        int64(100*ch + 50),
		}
	}
	return &stats.Batch{Request: req, Results: results}
}
