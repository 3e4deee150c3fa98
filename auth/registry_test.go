package auth

import (
	"sync"
	"testing"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

func TestRegisterAssignsTenantIDPerSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	first := r.Register(Credentials{Email: "fleet@example.com", WarehouseDSN: "postgres://a"})
	second := r.Register(Credentials{Email: "fleet@example.com", WarehouseDSN: "postgres://b"})

	if first.TenantID != 1 {
		t.Errorf("first tenant id = %d, want 1", first.TenantID)
	}
	if first.UserID == second.UserID {
		t.Error("each login must get a fresh user id")
	}
	// Same email, different credentials: the sessions must not share state,
	// or one login could read the other's dashboard through its own DSN.
	if second.TenantID == first.TenantID {
		t.Errorf("distinct sessions share tenant id %d", first.TenantID)
	}

	got, err := r.Lookup(first.UserID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.TenantID != first.TenantID || got.WarehouseDSN != "postgres://a" {
		t.Errorf("lookup resolved another session's identity: %+v", got)
	}
}

func TestLookupAndDrop(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := r.Register(Credentials{Email: "fleet@example.com", WarehouseDSN: "postgres://w", AppStateDSN: "postgres://s"})

	got, err := r.Lookup(s.UserID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.WarehouseDSN != "postgres://w" || got.AppStateDSN != "postgres://s" {
		t.Errorf("credentials not preserved: %+v", got.Credentials)
	}

	r.Drop(s.UserID)
	_, err = r.Lookup(s.UserID)
	if err == nil {
		t.Fatal("lookup after drop should fail")
	}
	if apperr.KindOf(err) != apperr.Unauthenticated {
		t.Errorf("dropped-session error kind = %v, want Unauthenticated", apperr.KindOf(err))
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Register(Credentials{Email: "fleet@example.com"})
			if _, err := r.Lookup(s.UserID); err != nil {
				t.Errorf("lookup: %v", err)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 16 {
		t.Errorf("session count = %d, want 16", r.Len())
	}
}
