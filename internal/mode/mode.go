// Package mode implements the operational mode state machine. The engine runs
// in one of four modes depending on observed health; the mode gates which
// pipeline stages execute for each event.
package mode

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mode is the engine's operational state. Transitions are total and may skip
// levels in either direction: a healthy snapshot recovers straight to Full.
type Mode int

const (
	Full Mode = iota
	Degraded
	Minimal
	Emergency
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Degraded:
		return "degraded"
	case Minimal:
		return "minimal"
	case Emergency:
		return "emergency"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText lets a Mode serialize into JSON health snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// AllowsExtensions reports whether optional post-processors run.
func (m Mode) AllowsExtensions() bool { return m == Full }

// AllowsFusion reports whether rule evaluation and evidence fusion run. In
// Minimal and Emergency a fixed fallback assessment is returned instead.
func (m Mode) AllowsFusion() bool { return m == Full || m == Degraded }

// AllowsPipeline reports whether the pipeline is entered at all. Emergency
// short-circuits before any stage to guarantee liveness.
func (m Mode) AllowsPipeline() bool { return m != Emergency }

// Signals is one health observation consumed by the controller.
type Signals struct {
	ErrorRate    float64 // errors / total assessments, in [0,1]
	AvgLatencyMs float64 // EWMA of assessment latency
}

// Thresholds define when health signals force the engine out of Full. The
// latency steps are multiples of the ~50ms assessment budget.
type Thresholds struct {
	DegradedErrorRate  float64
	DegradedLatencyMs  float64
	MinimalErrorRate   float64
	MinimalLatencyMs   float64
	EmergencyErrorRate float64
	EmergencyLatencyMs float64
}

// DefaultThresholds returns the shipped transition points.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DegradedErrorRate:  0.10,
		DegradedLatencyMs:  100,
		MinimalErrorRate:   0.25,
		MinimalLatencyMs:   250,
		EmergencyErrorRate: 0.50,
		EmergencyLatencyMs: 500,
	}
}

// Controller owns the process-wide mode. Assessment logic never sets the mode
// directly; it reads Current at event pickup and the engine feeds health
// snapshots through Observe between assessments.
type Controller struct {
	mu      sync.Mutex
	th      Thresholds
	current Mode
	since   time.Time
	log     *slog.Logger
}

// NewController starts in Full.
func NewController(th Thresholds, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{th: th, current: Full, since: time.Now(), log: log}
}

// Current returns the mode to apply to the next event.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Observe folds one health snapshot into the state machine and returns the
// resulting mode. A mode change is logged with the signals that caused it.
func (c *Controller) Observe(s Signals) Mode {
	next := c.classify(s)

	c.mu.Lock()
	prev := c.current
	if next != prev {
		c.current = next
		c.since = time.Now()
	}
	c.mu.Unlock()

	if next != prev {
		c.log.Info("operational mode changed",
			"from", prev.String(),
			"to", next.String(),
			"error_rate", s.ErrorRate,
			"avg_latency_ms", s.AvgLatencyMs,
		)
	}
	return next
}

func (c *Controller) classify(s Signals) Mode {
	switch {
	case s.ErrorRate >= c.th.EmergencyErrorRate || s.AvgLatencyMs >= c.th.EmergencyLatencyMs:
		return Emergency
	case s.ErrorRate >= c.th.MinimalErrorRate || s.AvgLatencyMs >= c.th.MinimalLatencyMs:
		return Minimal
	case s.ErrorRate >= c.th.DegradedErrorRate || s.AvgLatencyMs >= c.th.DegradedLatencyMs:
		return Degraded
	default:
		return Full
	}
}
