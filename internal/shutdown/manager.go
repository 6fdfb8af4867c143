// Package shutdown stops registered components in reverse registration order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"intensity-inspector/internal/logger"
)

const DefaultStepTimeout = 10 * time.Second

type Shutdownable interface {
	Shutdown()
}

// Func adapts a plain function to Shutdownable.
type Func func()

func (f Func) Shutdown() { f() }

type step struct {
	name      string
	component Shutdownable
}

type Manager struct {
	log     logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []step

	once   sync.Once
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(log logger.Logger, stepTimeout time.Duration) *Manager {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:     log,
		timeout: stepTimeout,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a component. Components registered later stop earlier.
func (m *Manager) Register(name string, component Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, component: component})
}

// Listen shuts down on SIGINT or SIGTERM, or when ctx ends.
func (m *Manager) Listen(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			m.log.Info("Lifecycle", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.Shutdown()
		case <-ctx.Done():
			m.Shutdown()
		case <-m.done:
		}
	}()
}

// Shutdown cancels Context and stops every component, waiting at most the
// step timeout for each. Only the first call does anything; later calls
// wait for it to finish.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		defer close(m.done)

		m.mu.Lock()
		steps := append([]step(nil), m.steps...)
		m.mu.Unlock()

		m.log.Info("Lifecycle", "shutdown sequence initiated", map[string]interface{}{
			"components": len(steps),
		})
		m.cancel()

		for i := len(steps) - 1; i >= 0; i-- {
			m.stop(steps[i])
		}

		m.log.Info("Lifecycle", "shutdown sequence completed", nil)
	})
	<-m.done
}

func (m *Manager) stop(s step) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		s.component.Shutdown()
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-finished:
		m.log.Debug("Lifecycle", "component stopped", map[string]interface{}{"component": s.name})
	case <-timer.C:
		m.log.Warning("Lifecycle", "component shutdown timeout", map[string]interface{}{
			"component": s.name,
			"timeout":   m.timeout.String(),
		})
	}
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Done is closed when shutdown has completed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
