// Package metrics provides simple built-in metrics collection with no
// external dependencies.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts template compilation and render activity.
type Collector struct {
	renderMetrics     *RenderMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// RenderMetrics tracks compile- and render-level performance data.
type RenderMetrics struct {
	// Compilation
	TemplatesCompiled int64 `json:"templates_compiled"`

	// Views
	ViewsMounted  int64 `json:"views_mounted"`
	ActiveViews   int64 `json:"active_views"`
	MaxConcurrent int64 `json:"max_concurrent_views"`

	// Update cycle
	Updates      int64 `json:"updates"`
	FullReplaces int64 `json:"full_replaces"`
	EmptyPatches int64 `json:"empty_patches"`
	PatchBytes   int64 `json:"patch_bytes"`

	// Change tracking
	SlotsEvaluated int64 `json:"slots_evaluated"`
	SlotsSkipped   int64 `json:"slots_skipped"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		renderMetrics: &RenderMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// RecordCompile records one template compilation.
func (c *Collector) RecordCompile() {
	atomic.AddInt64(&c.renderMetrics.TemplatesCompiled, 1)
}

// RecordViewMounted records a new live view.
func (c *Collector) RecordViewMounted() {
	atomic.AddInt64(&c.renderMetrics.ViewsMounted, 1)
	current := atomic.AddInt64(&c.renderMetrics.ActiveViews, 1)
	for {
		max := atomic.LoadInt64(&c.renderMetrics.MaxConcurrent)
		if current <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.renderMetrics.MaxConcurrent, max, current) {
			break
		}
	}
}

// RecordViewClosed records a view teardown.
func (c *Collector) RecordViewClosed() {
	atomic.AddInt64(&c.renderMetrics.ActiveViews, -1)
}

// RecordUpdate records one update cycle and the size of the resulting
// patch on the wire. Zero bytes means no message was sent.
func (c *Collector) RecordUpdate(patchBytes int, fullReplace bool) {
	atomic.AddInt64(&c.renderMetrics.Updates, 1)
	atomic.AddInt64(&c.renderMetrics.PatchBytes, int64(patchBytes))
	if fullReplace {
		atomic.AddInt64(&c.renderMetrics.FullReplaces, 1)
	}
	if patchBytes == 0 {
		atomic.AddInt64(&c.renderMetrics.EmptyPatches, 1)
	}
}

// RecordSlots records how many dynamic slots re-executed versus how many
// were skipped by change tracking in one evaluation.
func (c *Collector) RecordSlots(evaluated, skipped int) {
	atomic.AddInt64(&c.renderMetrics.SlotsEvaluated, int64(evaluated))
	atomic.AddInt64(&c.renderMetrics.SlotsSkipped, int64(skipped))
}

// IncrementCustomCounter increments a custom named counter.
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns a copy of the current metrics.
func (c *Collector) GetMetrics() RenderMetrics {
	return RenderMetrics{
		TemplatesCompiled: atomic.LoadInt64(&c.renderMetrics.TemplatesCompiled),
		ViewsMounted:      atomic.LoadInt64(&c.renderMetrics.ViewsMounted),
		ActiveViews:       atomic.LoadInt64(&c.renderMetrics.ActiveViews),
		MaxConcurrent:     atomic.LoadInt64(&c.renderMetrics.MaxConcurrent),
		Updates:           atomic.LoadInt64(&c.renderMetrics.Updates),
		FullReplaces:      atomic.LoadInt64(&c.renderMetrics.FullReplaces),
		EmptyPatches:      atomic.LoadInt64(&c.renderMetrics.EmptyPatches),
		PatchBytes:        atomic.LoadInt64(&c.renderMetrics.PatchBytes),
		SlotsEvaluated:    atomic.LoadInt64(&c.renderMetrics.SlotsEvaluated),
		SlotsSkipped:      atomic.LoadInt64(&c.renderMetrics.SlotsSkipped),
		StartTime:         c.renderMetrics.StartTime,
		Uptime:            time.Since(c.startTime),
	}
}

// GetCustomCounters returns all custom counters.
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.renderMetrics.TemplatesCompiled, 0)
	atomic.StoreInt64(&c.renderMetrics.ViewsMounted, 0)
	atomic.StoreInt64(&c.renderMetrics.ActiveViews, 0)
	atomic.StoreInt64(&c.renderMetrics.MaxConcurrent, 0)
	atomic.StoreInt64(&c.renderMetrics.Updates, 0)
	atomic.StoreInt64(&c.renderMetrics.FullReplaces, 0)
	atomic.StoreInt64(&c.renderMetrics.EmptyPatches, 0)
	atomic.StoreInt64(&c.renderMetrics.PatchBytes, 0)
	atomic.StoreInt64(&c.renderMetrics.SlotsEvaluated, 0)
	atomic.StoreInt64(&c.renderMetrics.SlotsSkipped, 0)

	c.operationCounters = make(map[string]*int64)

	c.startTime = time.Now()
	c.renderMetrics.StartTime = time.Now()
}

// GetSkipRate returns the share of dynamic slots change tracking avoided
// re-executing, as a percentage.
func (c *Collector) GetSkipRate() float64 {
	evaluated := atomic.LoadInt64(&c.renderMetrics.SlotsEvaluated)
	skipped := atomic.LoadInt64(&c.renderMetrics.SlotsSkipped)

	total := evaluated + skipped
	if total == 0 {
		return 0.0
	}
	return float64(skipped) / float64(total) * 100.0
}

// GetAveragePatchBytes returns the mean wire size of a patch.
func (c *Collector) GetAveragePatchBytes() float64 {
	updates := atomic.LoadInt64(&c.renderMetrics.Updates)
	bytes := atomic.LoadInt64(&c.renderMetrics.PatchBytes)

	if updates == 0 {
		return 0.0
	}
	return float64(bytes) / float64(updates)
}
