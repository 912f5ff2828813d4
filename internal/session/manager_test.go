package session

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Hour)

	s, err := m.Create("state-a")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.ID == "" {
		t.Fatal("session should have an id")
	}
	if len(s.ID) != 32 {
		t.Errorf("id should be 16 random bytes hex-encoded, got %d chars", len(s.ID))
	}

	got, ok := m.Get(s.ID)
	if !ok {
		t.Fatal("session should be retrievable")
	}
	if got.State != "state-a" {
		t.Errorf("state = %v", got.State)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestGetUnknownID(t *testing.T) {
	m := NewManager(time.Hour)
	if _, ok := m.Get("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestUniqueIDs(t *testing.T) {
	m := NewManager(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := m.Create(nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate session id %q", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestExpiryOnAccess(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	s, err := m.Create(nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, ok := m.Get(s.ID); !ok {
		t.Fatal("fresh session should resolve")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := m.Get(s.ID); ok {
		t.Error("expired session should be dropped on access")
	}
	if m.Count() != 0 {
		t.Errorf("expired session should leave the map, Count = %d", m.Count())
	}
}

func TestGetRefreshesLastAccess(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s, err := m.Create(nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Keep touching the session; each access resets the clock.
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		if _, ok := m.Get(s.ID); !ok {
			t.Fatalf("session expired despite access on iteration %d", i)
		}
	}
}

func TestDelete(t *testing.T) {
	m := NewManager(time.Hour)
	s, _ := m.Create(nil)
	m.Delete(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Error("deleted session should not resolve")
	}
}

func TestCleanup(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		m.Create(nil)
	}
	time.Sleep(20 * time.Millisecond)
	fresh, _ := m.Create(nil)

	removed := m.Cleanup()
	if removed != 3 {
		t.Errorf("Cleanup removed %d, want 3", removed)
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("fresh session should survive cleanup")
	}
}

func TestZeroTTLDefaults(t *testing.T) {
	m := NewManager(0)
	if m.ttl != 24*time.Hour {
		t.Errorf("zero ttl should default to 24h, got %v", m.ttl)
	}
}
