package scheduler

import (
	"sync"
	"sync/atomic"

	"intensity-inspector/internal/logger"
)

// Class groups tasks that supersede one another. At most one task per class
// is pending at any time.
type Class string

// Task is a unit of UI work tagged with a coalescence class.
type Task struct {
	Class Class
	Run   func()

	// Coalesce resolves this task against the older task of the same class
	// that is still pending. Nil means the newer task replaces the older one.
	// It runs without the pool's lock held and runs again if the pending task
	// changed in the meantime.
	Coalesce func(older Task) Task
}

// PoolStats is a point-in-time view of the pool counters.
type PoolStats struct {
	Submitted uint64 // Submit calls
	Coalesced uint64 // submissions merged into an already pending task
	Executed  uint64 // tasks run on the executor
	Pending   int    // classes currently waiting
}

// Pool collapses bursts of same-class tasks into one run on its Executor.
//
// Algorithm:
//  1. Submit stores the task under its class, merging with a pending task of
//     the same class if there is one ("latest wins" by default)
//  2. The first submission after a drain posts a single drain to the executor
//  3. The drain takes every pending task in first-submission order and runs
//     them; anything submitted while they run schedules the next drain
//
// Because the drain is queued behind whatever the executor already holds,
// tasks run as late as possible but before the executor goes idle.
//
// Thread-safety: Submit may be called from any goroutine and never blocks on
// the executor.
type Pool struct {
	exec Executor
	log  logger.Logger

	mu        sync.Mutex
	pending   map[Class]*Task
	order     []Class
	scheduled bool

	submitted atomic.Uint64
	coalesced atomic.Uint64
	executed  atomic.Uint64
}

func NewPool(exec Executor, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	return &Pool{
		exec:    exec,
		log:     log,
		pending: make(map[Class]*Task),
	}
}

// Submit queues t, superseding any pending task of the same class.
func (p *Pool) Submit(t Task) {
	p.submitted.Add(1)

	entry := &t
	for {
		p.mu.Lock()
		older, ok := p.pending[t.Class]
		if !ok || t.Coalesce == nil {
			break
		}
		p.mu.Unlock()

		merged := t.Coalesce(*older)

		p.mu.Lock()
		if p.pending[t.Class] == older {
			entry = &merged
			break
		}
		p.mu.Unlock()
	}

	if _, ok := p.pending[t.Class]; ok {
		p.coalesced.Add(1)
	} else {
		p.order = append(p.order, t.Class)
	}
	p.pending[t.Class] = entry
	post := !p.scheduled
	p.scheduled = true
	p.mu.Unlock()

	if post {
		p.exec.Post(p.drain)
	}
}

func (p *Pool) drain() {
	p.mu.Lock()
	tasks := make([]Task, 0, len(p.order))
	for _, class := range p.order {
		tasks = append(tasks, *p.pending[class])
		delete(p.pending, class)
	}
	p.order = p.order[:0]
	p.scheduled = false
	p.mu.Unlock()

	for _, t := range tasks {
		if t.Run == nil {
			continue
		}
		p.executed.Add(1)
		runGuarded(p.log, "Pool", t.Run)
	}
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	pending := len(p.order)
	p.mu.Unlock()

	return PoolStats{
		Submitted: p.submitted.Load(),
		Coalesced: p.coalesced.Load(),
		Executed:  p.executed.Load(),
		Pending:   pending,
	}
}
