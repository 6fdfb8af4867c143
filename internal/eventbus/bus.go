package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"intensity-inspector/internal/logger"
)

type Event struct {
	Type      string
	Timestamp time.Time
	Data      interface{}
}

type EventHandler interface {
	Handle(event Event)
	GetID() string
}

// HandlerFunc adapts a function to EventHandler under a fresh unique ID.
type HandlerFunc struct {
	id string
	fn func(Event)
}

func NewHandlerFunc(fn func(Event)) *HandlerFunc {
	return &HandlerFunc{id: uuid.NewString(), fn: fn}
}

func (h *HandlerFunc) Handle(event Event) { h.fn(event) }
func (h *HandlerFunc) GetID() string      { return h.id }

// Bus delivers events to subscribers on a single dispatch goroutine, so each
// handler sees events in publish order. Publish never blocks: when the buffer
// is full the event is dropped and counted.
//
// Types registered with KeepLatest skip the buffer. Each has one pending slot
// that a newer event overwrites, so a burst collapses to its newest event and
// that event is always delivered.
type Bus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	buffer      chan Event
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	log         logger.Logger
	dropped     atomic.Uint64

	slotMu     sync.Mutex
	keepLatest map[string]bool
	slots      map[string]Event
	slotOrder  []string
	wake       chan struct{}
	superseded atomic.Uint64
}

func NewBus(bufferSize int, log logger.Logger) *Bus {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		subscribers: make(map[string][]EventHandler),
		buffer:      make(chan Event, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		keepLatest:  make(map[string]bool),
		slots:       make(map[string]Event),
		wake:        make(chan struct{}, 1),
	}

	bus.startWorker()
	return bus
}

func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.ctx.Done():
		return
	default:
	}

	if b.keepsLatest(event.Type) {
		b.publishLatest(event)
		return
	}

	select {
	case b.buffer <- event:
	case <-b.ctx.Done():
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			b.log.Warning("EventBus", "buffer full, dropping events", map[string]interface{}{
				"type":    event.Type,
				"dropped": n,
			})
		}
	}
}

// KeepLatest routes eventType through its own overwrite slot instead of the
// shared buffer. Use it for events that carry current state.
func (b *Bus) KeepLatest(eventType string) {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()
	b.keepLatest[eventType] = true
}

func (b *Bus) keepsLatest(eventType string) bool {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()
	return b.keepLatest[eventType]
}

func (b *Bus) publishLatest(event Event) {
	b.slotMu.Lock()
	if _, pending := b.slots[event.Type]; pending {
		b.superseded.Add(1)
	} else {
		b.slotOrder = append(b.slotOrder, event.Type)
	}
	b.slots[event.Type] = event
	b.slotMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Unsubscribe removes handler by ID. Removing an unknown handler is a no-op.
func (b *Bus) Unsubscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subscribers[eventType]
	for i, h := range handlers {
		if h.GetID() == handler.GetID() {
			kept := make([]EventHandler, 0, len(handlers)-1)
			kept = append(kept, handlers[:i]...)
			kept = append(kept, handlers[i+1:]...)
			b.subscribers[eventType] = kept
			break
		}
	}
}

// SubscriberCount reports how many handlers listen for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Dropped reports how many events were discarded because the buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Superseded reports how many latest-only events were replaced by a newer one
// before dispatch.
func (b *Bus) Superseded() uint64 {
	return b.superseded.Load()
}

// Shutdown stops dispatching. Events still buffered are discarded. Idempotent.
func (b *Bus) Shutdown() {
	b.cancel()
	b.wg.Wait()
}

func (b *Bus) startWorker() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		for {
			select {
			case event := <-b.buffer:
				b.dispatchEvent(event)
			case <-b.wake:
				b.dispatchLatest()
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

func (b *Bus) dispatchLatest() {
	b.slotMu.Lock()
	events := make([]Event, 0, len(b.slotOrder))
	for _, eventType := range b.slotOrder {
		events = append(events, b.slots[eventType])
		delete(b.slots, eventType)
	}
	b.slotOrder = b.slotOrder[:0]
	b.slotMu.Unlock()

	for _, event := range events {
		b.dispatchEvent(event)
	}
}

func (b *Bus) dispatchEvent(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.subscribers[event.Type]))
	copy(handlers, b.subscribers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.handle(handler, event)
	}
}

func (b *Bus) handle(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("EventBus", fmt.Errorf("handler %s panicked: %v", h.GetID(), r), map[string]interface{}{
				"type": event.Type,
			})
		}
	}()
	h.Handle(event)
}
