package cart

import (
	"context"
	"log"
	"sync"
	"time"
)

// Manager owns one Store per session. Stores are created on first use,
// restored from the snapshot fallback, and disposed together when the
// manager shuts down. Nothing here is package-global: the manager is
// constructed in main and injected where needed.
type Manager struct {
	remote Remote

	mu     sync.Mutex
	stores map[string]*Store
	opts   Options
	logger *log.Logger
}

func NewManager(remote Remote, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		remote: remote,
		opts:   opts,
		logger: logger,
		stores: make(map[string]*Store),
	}
}

// Get returns the session's store, creating and restoring it on first
// use.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[sessionID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := New(sessionID, m.remote, m.opts)
	m.stores[sessionID] = s
	m.mu.Unlock()

	restoreCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Restore(restoreCtx); err != nil {
		// The snapshot is a fallback; a failed restore leaves an empty
		// but fully usable cart.
		m.logger.Printf("restore cart for session %s: %v", sessionID, err)
	}
	return s, nil
}

// Dispose drops a single session's store and releases its resources.
func (m *Manager) Dispose(sessionID string) {
	m.mu.Lock()
	s, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close disposes every store.
func (m *Manager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*Store)
	m.mu.Unlock()
	for _, s := range stores {
		s.Close()
	}
}
