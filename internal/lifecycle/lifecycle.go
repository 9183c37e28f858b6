// Package lifecycle coordinates process startup and shutdown for both the
// client and server binaries: signal handling, LIFO shutdown hooks, and a
// single idempotent cleanup path, mirroring the signal.Notify/sig-channel
// shutdown idiom cmd/agent/main.go uses, generalized into a reusable type.
package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

// Manager tracks shutdown hooks and exposes a channel that closes once
// shutdown has begun, so long-running loops can select on it instead of
// polling IsShuttingDown.
type Manager struct {
	log   logging.Logger
	mu    sync.Mutex
	hooks []namedHook
	once  sync.Once

	shuttingDown chan struct{}
	done         chan struct{}

	sigCh chan os.Signal
}

type namedHook struct {
	name string
	fn   func()
}

// Option configures New.
type Option func(*Manager)

// New creates a Manager. When exitOnSignal is true, SIGINT/SIGTERM trigger
// Shutdown automatically; callers that want to own signal handling
// themselves (e.g. a REPL) can pass false and call Shutdown explicitly.
func New(log logging.Logger, exitOnSignal bool) *Manager {
	m := &Manager{
		log:          log,
		shuttingDown: make(chan struct{}),
		done:         make(chan struct{}),
	}
	if exitOnSignal {
		m.sigCh = make(chan os.Signal, 1)
		signal.Notify(m.sigCh, syscall.SIGINT, syscall.SIGTERM)
		go m.watchSignals()
	}
	return m
}

func (m *Manager) watchSignals() {
	sig, ok := <-m.sigCh
	if !ok {
		return
	}
	m.log.Info("received shutdown signal", "signal", sig.String())
	m.Shutdown()
}

// RegisterOnShutdown adds a hook run during Shutdown, in LIFO order (most
// recently registered runs first), matching the defer-stack intuition
// callers already have for cleanup code.
func (m *Manager) RegisterOnShutdown(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.shuttingDown:
		// already shutting down: run immediately instead of dropping it
		fn()
		return
	default:
	}
	m.hooks = append(m.hooks, namedHook{name: name, fn: fn})
}

// IsShuttingDown reports whether Shutdown has been called.
func (m *Manager) IsShuttingDown() bool {
	select {
	case <-m.shuttingDown:
		return true
	default:
		return false
	}
}

// ShuttingDown returns a channel that closes when shutdown begins.
func (m *Manager) ShuttingDown() <-chan struct{} {
	return m.shuttingDown
}

// Shutdown runs every registered hook in LIFO order, then closes Done(). It
// is idempotent: subsequent calls are no-ops.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		close(m.shuttingDown)

		m.mu.Lock()
		hooks := make([]namedHook, len(m.hooks))
		copy(hooks, m.hooks)
		m.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			m.log.Debug("running shutdown hook", "name", h.name)
			h.fn()
		}

		if m.sigCh != nil {
			signal.Stop(m.sigCh)
			close(m.sigCh)
		}
		close(m.done)
	})
}

// WaitForShutdown blocks until Shutdown has fully run (all hooks complete).
func (m *Manager) WaitForShutdown() {
	<-m.done
}
