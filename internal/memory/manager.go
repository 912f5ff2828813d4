// Package memory enforces a budget on the render state held for live
// views, so a burst of connections degrades into refused upgrades instead
// of unbounded growth.
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager tracks estimated memory per live view against a global budget.
type Manager struct {
	maxBytes      int64
	currentUsage  int64
	viewUsage     map[string]int64
	warningBytes  int64
	criticalBytes int64
	mu            sync.RWMutex
}

// Config defines the budget.
type Config struct {
	MaxMemoryMB          int // maximum total estimated memory
	WarningThresholdPct  int
	CriticalThresholdPct int
}

// DefaultConfig returns a 100MB budget with 75/90 thresholds.
func DefaultConfig() *Config {
	return &Config{
		MaxMemoryMB:          100,
		WarningThresholdPct:  75,
		CriticalThresholdPct: 90,
	}
}

// NewManager creates a memory manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	maxBytes := int64(config.MaxMemoryMB) * 1024 * 1024
	return &Manager{
		maxBytes:      maxBytes,
		viewUsage:     make(map[string]int64),
		warningBytes:  maxBytes * int64(config.WarningThresholdPct) / 100,
		criticalBytes: maxBytes * int64(config.CriticalThresholdPct) / 100,
	}
}

// Track records a view's estimated usage, failing when the budget would
// be exceeded.
func (m *Manager) Track(viewID string, bytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.viewUsage[viewID]
	next := atomic.LoadInt64(&m.currentUsage) - prev + bytes
	if next > m.maxBytes {
		return fmt.Errorf("memory budget exceeded: %d of %d bytes", next, m.maxBytes)
	}
	m.viewUsage[viewID] = bytes
	atomic.StoreInt64(&m.currentUsage, next)
	return nil
}

// Release frees a view's accounting.
func (m *Manager) Release(viewID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes, ok := m.viewUsage[viewID]; ok {
		delete(m.viewUsage, viewID)
		atomic.AddInt64(&m.currentUsage, -bytes)
	}
}

// Usage returns the current total estimate.
func (m *Manager) Usage() int64 {
	return atomic.LoadInt64(&m.currentUsage)
}

// Views returns how many views are tracked.
func (m *Manager) Views() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewUsage)
}

// Status classifies the current usage against the thresholds.
func (m *Manager) Status() string {
	usage := atomic.LoadInt64(&m.currentUsage)
	switch {
	case usage >= m.criticalBytes:
		return "critical"
	case usage >= m.warningBytes:
		return "warning"
	default:
		return "ok"
	}
}
