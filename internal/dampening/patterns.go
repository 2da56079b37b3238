package dampening

import (
	"strings"
	"sync"
)

// UserPatterns holds per-installation online statistics learned from user
// feedback. Frequencies follow a damped exponential update, so they approach
// but never cross the [0,1] bounds.
type UserPatterns struct {
	mu                sync.RWMutex
	deliveryFrequency map[string]float64 // event type -> [0,1]
}

// NewUserPatterns returns an empty pattern store.
func NewUserPatterns() *UserPatterns {
	return &UserPatterns{deliveryFrequency: make(map[string]float64)}
}

// RecordFeedback updates the learned frequency for an event type.
// A false-positive report moves the frequency toward 1 by rate; a confirmed
// true positive decays it toward 0 by the same rate.
func (p *UserPatterns) RecordFeedback(eventType string, falsePositive bool, rate float64) {
	if rate <= 0 || rate >= 1 {
		return
	}
	key := strings.ToLower(strings.TrimSpace(eventType))
	if key == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	freq := p.deliveryFrequency[key]
	if falsePositive {
		freq += rate * (1 - freq)
	} else {
		freq -= rate * freq
	}
	// The damped update is already bounded; clamp guards float drift.
	if freq < 0 {
		freq = 0
	}
	if freq > 1 {
		freq = 1
	}
	p.deliveryFrequency[key] = freq
}

// DeliveryFrequency returns the learned frequency for an event type, zero
// when nothing has been learned.
func (p *UserPatterns) DeliveryFrequency(eventType string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.deliveryFrequency[strings.ToLower(strings.TrimSpace(eventType))]
}

// Snapshot copies all learned frequencies, for persistence.
func (p *UserPatterns) Snapshot() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.deliveryFrequency))
	for k, v := range p.deliveryFrequency {
		out[k] = v
	}
	return out
}

// Restore replaces the learned frequencies, clamping persisted values.
func (p *UserPatterns) Restore(freqs map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveryFrequency = make(map[string]float64, len(freqs))
	for k, v := range freqs {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		p.deliveryFrequency[strings.ToLower(k)] = v
	}
}
