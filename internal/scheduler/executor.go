// Package scheduler provides the single UI-thread executor that owns all
// presentation state, and the coalescing pool that bridges producer goroutines
// onto it.
//
// Goroutine topology:
//   - any number of producers call Pool.Submit or Executor.Post (never block)
//   - exactly one consumer runs posted functions in FIFO order
//
// Every presentation touch happens on the consumer. Nothing in this package
// checks which goroutine it is on; confinement is by construction.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"intensity-inspector/internal/logger"
)

// Executor runs functions on the UI thread. Post must never block the caller.
type Executor interface {
	Post(fn func())
}

// LoopExecutor is an Executor backed by one worker goroutine and an unbounded
// FIFO queue.
type LoopExecutor struct {
	log logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	exited    chan struct{}
}

func NewLoopExecutor(log logger.Logger) *LoopExecutor {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	e := &LoopExecutor{log: log, exited: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start spawns the worker. It runs until ctx is cancelled or Stop is called.
func (e *LoopExecutor) Start(ctx context.Context) error {
	e.startedMu.Lock()
	defer e.startedMu.Unlock()

	if e.started {
		return fmt.Errorf("executor already started")
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)

	// Wake the worker when the context ends so Wait() cannot strand it.
	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.closed = true
		e.cond.Broadcast()
		e.mu.Unlock()
	}()

	e.wg.Add(1)
	go e.loop()
	return nil
}

// Stop shuts the worker down after the function it is currently running.
// Queued functions are discarded. Idempotent.
func (e *LoopExecutor) Stop() error {
	e.startedMu.Lock()
	if !e.started {
		e.startedMu.Unlock()
		return nil
	}
	cancel := e.cancel
	e.startedMu.Unlock()

	cancel()

	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// Post queues fn. After Stop it is silently dropped.
func (e *LoopExecutor) Post(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.queue = append(e.queue, fn)
	e.cond.Signal()
}

// Invoke posts fn and waits for it to finish. It reports false if the worker
// exited before fn ran. The executor must be started, and Invoke must not be
// called from the worker itself.
func (e *LoopExecutor) Invoke(fn func()) bool {
	done := make(chan struct{})
	e.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return true
	case <-e.exited:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (e *LoopExecutor) loop() {
	defer e.wg.Done()
	defer close(e.exited)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			dropped := len(e.queue)
			e.queue = nil
			e.mu.Unlock()
			if dropped > 0 {
				e.log.Debug("Executor", "discarded queued work on stop", map[string]interface{}{
					"dropped": dropped,
				})
			}
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		runGuarded(e.log, "Executor", fn)
	}
}

// runGuarded keeps a panicking task from taking the UI worker down with it.
func runGuarded(log logger.Logger, component string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(component, fmt.Errorf("task panicked: %v", r), nil)
		}
	}()
	fn()
}
