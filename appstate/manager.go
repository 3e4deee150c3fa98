package appstate

import (
	"context"
	"fmt"
	"sync"
)

// Manager caches one open Store per backend target so repeated requests from
// the same tenant reuse the connection pool. Stores for different tenants
// pointing at the same backend are shared; rows are separated by user_id.
type Manager struct {
	mu       sync.Mutex
	stores   map[string]*Store
	override string
}

// NewManager creates a store cache. serverOverride is the optional
// server-wide backend (postgres DSN or sqlite path) applied when a session
// carries no DSN of its own.
func NewManager(serverOverride string) *Manager {
	return &Manager{
		stores:   make(map[string]*Store),
		override: serverOverride,
	}
}

// ForSession returns the store for a tenant session, opening it on first use.
func (m *Manager) ForSession(ctx context.Context, sessionDSN string) (*Store, error) {
	opts := ResolveOptions(sessionDSN, m.override)
	key := fmt.Sprintf("pg|%s", opts.PostgresDSN)
	if opts.PostgresDSN == "" {
		key = fmt.Sprintf("lite|%s", opts.SQLitePath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[key]; ok {
		return s, nil
	}
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	m.stores[key] = s
	return s, nil
}

// Close closes every cached store.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.stores {
		if err := s.Close(); err != nil {
			logWarn("closing app state store", "key", key, "error", err)
		}
		delete(m.stores, key)
	}
}
