package mode

import (
	"sync"
	"time"
)

// latencyAlpha is the EWMA smoothing factor for assessment latency.
const latencyAlpha = 0.2

// Health accumulates assessment outcomes and produces the signals the
// controller consumes. Recording is cheap enough for the hot path.
type Health struct {
	mu     sync.Mutex
	total  uint64
	errors uint64
	ewmaMs float64
	seeded bool
}

// Stats is a point-in-time health snapshot.
type Stats struct {
	TotalAssessments uint64  `json:"total_assessments"`
	ErrorCount       uint64  `json:"error_count"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
}

// Record folds one completed assessment into the running statistics.
func (h *Health) Record(latency time.Duration, failed bool) {
	ms := float64(latency) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	if failed {
		h.errors++
	}
	if !h.seeded {
		h.ewmaMs = ms
		h.seeded = true
		return
	}
	h.ewmaMs = latencyAlpha*ms + (1-latencyAlpha)*h.ewmaMs
}

// RecordError counts a failure that never produced a latency sample, such as
// a panic recovered before timing completed.
func (h *Health) RecordError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.errors++
}

// Snapshot returns the current statistics.
func (h *Health) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{
		TotalAssessments: h.total,
		ErrorCount:       h.errors,
		AvgLatencyMs:     h.ewmaMs,
	}
	if h.total > 0 {
		s.ErrorRate = float64(h.errors) / float64(h.total)
	}
	return s
}

// Signals converts the snapshot into controller input.
func (s Stats) Signals() Signals {
	return Signals{ErrorRate: s.ErrorRate, AvgLatencyMs: s.AvgLatencyMs}
}

// Reset clears all statistics. Test and ops use only.
func (h *Health) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total = 0
	h.errors = 0
	h.ewmaMs = 0
	h.seeded = false
}
