package warehouse

import (
	"context"
	"sync"
)

// Manager caches one open Conn per warehouse DSN so all sessions of a tenant
// share a connection pool.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewManager creates an empty connection cache.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]*Conn)}
}

// ForDSN returns the warehouse connection for a DSN, opening it on first use.
func (m *Manager) ForDSN(ctx context.Context, dsn string) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[dsn]; ok {
		return c, nil
	}
	c, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	m.conns[dsn] = c
	return c, nil
}

// Close closes every cached connection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dsn, c := range m.conns {
		if err := c.Close(); err != nil {
			logWarn("closing warehouse connection", "error", err)
		}
		delete(m.conns, dsn)
	}
}
