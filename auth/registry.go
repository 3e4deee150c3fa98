// Package auth holds session tokens and the in-memory registry that maps a
// logged-in session to its tenant connection credentials.
package auth

import (
	"sync"

	"github.com/google/uuid"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// Credentials are the per-tenant connection strings captured at login.
type Credentials struct {
	Email        string
	WarehouseDSN string
	AppStateDSN  string
}

// Session is a registered login with its stable tenant identity.
type Session struct {
	UserID   string
	TenantID int
	Credentials
}

// Registry keeps live sessions in memory. Sessions do not survive a restart;
// clients re-login and get a fresh session with its own tenant id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   int
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		nextID:   1,
	}
}

// Register stores credentials for a new session and returns it. Each session
// gets its own tenant id, so two logins never see each other's dashboard
// state even when they carry the same email.
func (r *Registry) Register(creds Credentials) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		UserID:      uuid.NewString(),
		TenantID:    r.nextID,
		Credentials: creds,
	}
	r.nextID++
	r.sessions[s.UserID] = s
	return s
}

// Lookup returns the session for a user id.
func (r *Registry) Lookup(userID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, apperr.New(apperr.Unauthenticated, "session not found, please log in again")
	}
	return s, nil
}

// Drop removes a session, e.g. on logout.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len reports the live session count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
