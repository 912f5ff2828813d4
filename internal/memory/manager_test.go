package memory

import "testing"

func TestTrackAndRelease(t *testing.T) {
	m := NewManager(&Config{MaxMemoryMB: 1, WarningThresholdPct: 75, CriticalThresholdPct: 90})

	if err := m.Track("view-a", 1000); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := m.Track("view-b", 2000); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if got := m.Usage(); got != 3000 {
		t.Errorf("Usage = %d, want 3000", got)
	}
	if got := m.Views(); got != 2 {
		t.Errorf("Views = %d, want 2", got)
	}

	m.Release("view-a")
	if got := m.Usage(); got != 2000 {
		t.Errorf("Usage after release = %d, want 2000", got)
	}
	if got := m.Views(); got != 1 {
		t.Errorf("Views after release = %d, want 1", got)
	}
}

func TestTrackReplacesPreviousEstimate(t *testing.T) {
	m := NewManager(nil)
	m.Track("view-a", 1000)
	m.Track("view-a", 4000)
	if got := m.Usage(); got != 4000 {
		t.Errorf("re-tracking should replace, not add: Usage = %d", got)
	}
	if got := m.Views(); got != 1 {
		t.Errorf("Views = %d, want 1", got)
	}
}

func TestTrackRefusesOverBudget(t *testing.T) {
	m := NewManager(&Config{MaxMemoryMB: 1, WarningThresholdPct: 75, CriticalThresholdPct: 90})
	budget := int64(1024 * 1024)

	if err := m.Track("view-a", budget); err != nil {
		t.Fatalf("tracking exactly the budget should succeed: %v", err)
	}
	if err := m.Track("view-b", 1); err == nil {
		t.Fatal("exceeding the budget should fail")
	}
	// The refused view must not be accounted.
	if got := m.Usage(); got != budget {
		t.Errorf("Usage = %d, want %d", got, budget)
	}
	if got := m.Views(); got != 1 {
		t.Errorf("Views = %d, want 1", got)
	}
}

func TestReleaseUnknownViewIsNoop(t *testing.T) {
	m := NewManager(nil)
	m.Track("view-a", 100)
	m.Release("never-tracked")
	if got := m.Usage(); got != 100 {
		t.Errorf("Usage = %d, want 100", got)
	}
}

func TestStatusThresholds(t *testing.T) {
	m := NewManager(&Config{MaxMemoryMB: 1, WarningThresholdPct: 50, CriticalThresholdPct: 90})
	budget := int64(1024 * 1024)

	if got := m.Status(); got != "ok" {
		t.Errorf("empty manager Status = %q, want ok", got)
	}

	m.Track("view-a", budget*60/100)
	if got := m.Status(); got != "warning" {
		t.Errorf("Status at 60%% = %q, want warning", got)
	}

	m.Track("view-b", budget*35/100)
	if got := m.Status(); got != "critical" {
		t.Errorf("Status at 95%% = %q, want critical", got)
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	m := NewManager(nil)
	if m.maxBytes != 100*1024*1024 {
		t.Errorf("default budget = %d, want 100MB", m.maxBytes)
	}
}
