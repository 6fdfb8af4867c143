package scheduler

import (
	"sync"

	"intensity-inspector/internal/logger"
)

// ManualExecutor queues posted functions until the owner pumps them with
// RunPending. The goroutine calling RunPending is the UI thread. Useful for
// headless embedding and deterministic tests.
type ManualExecutor struct {
	log logger.Logger

	mu    sync.Mutex
	queue []func()
}

func NewManualExecutor() *ManualExecutor {
	return &ManualExecutor{log: logger.NoOpLogger{}}
}

func (m *ManualExecutor) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Pending reports how many functions are queued.
func (m *ManualExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunPending runs queued functions in FIFO order until the queue is empty,
// including anything they post themselves, and returns how many ran.
func (m *ManualExecutor) RunPending() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		runGuarded(m.log, "Executor", fn)
		ran++
	}
}
