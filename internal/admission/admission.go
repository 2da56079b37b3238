// Package admission gates the pipeline with a token bucket so load is
// bounded before any processing cost is incurred.
package admission

import (
	"sync"
	"time"
)

// Controller is a token-bucket rate limiter. A single mutex arbitrates
// refill and withdrawal so tokens are never double-spent under concurrent
// callers.
type Controller struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// New creates a Controller with the given capacity and refill rate.
// Non-positive values fall back to defaults (capacity 100, 50 tokens/s).
func New(capacity int, refillPerSec float64) *Controller {
	if capacity <= 0 {
		capacity = 100
	}
	if refillPerSec <= 0 {
		refillPerSec = 50
	}
	return &Controller{
		capacity:   float64(capacity),
		refillRate: refillPerSec,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow attempts to withdraw one token, refilling from elapsed time first.
// It returns false when the bucket is empty; the caller must reject the
// request without running the pipeline.
func (c *Controller) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refillLocked()
	if c.tokens < 1 {
		return false
	}
	c.tokens--
	return true
}

// Utilization returns how much of the bucket is currently consumed (0-1).
func (c *Controller) Utilization() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refillLocked()
	return 1 - c.tokens/c.capacity
}

// Reset refills the bucket. Test and ops use only.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = c.capacity
	c.lastRefill = c.now()
}

func (c *Controller) refillLocked() {
	now := c.now()
	elapsed := now.Sub(c.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	c.tokens += elapsed * c.refillRate
	if c.tokens > c.capacity {
		c.tokens = c.capacity
	}
	c.lastRefill = now
}
