package admission

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests drive refill deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestController(capacity int, rate float64) (*Controller, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New(capacity, rate)
	c.now = clk.now
	c.lastRefill = clk.t
	return c, clk
}

func TestAllow_ExhaustsBucket(t *testing.T) {
	c, _ := newTestController(10, 1)

	for i := 0; i < 10; i++ {
		if !c.Allow() {
			t.Fatalf("call %d: expected allow", i)
		}
	}
	if c.Allow() {
		t.Fatal("expected deny after bucket exhausted")
	}
	if c.Allow() {
		t.Fatal("deny must persist until refill elapses")
	}
}

func TestAllow_RefillsOverTime(t *testing.T) {
	c, clk := newTestController(10, 2) // 2 tokens/s

	for i := 0; i < 10; i++ {
		c.Allow()
	}
	if c.Allow() {
		t.Fatal("bucket should be empty")
	}

	clk.advance(500 * time.Millisecond) // 1 token back
	if !c.Allow() {
		t.Fatal("expected one token after 500ms at 2/s")
	}
	if c.Allow() {
		t.Fatal("only one token should have refilled")
	}
}

func TestAllow_ThroughputConvergesToRate(t *testing.T) {
	c, clk := newTestController(5, 10)

	// Drain the initial burst.
	for c.Allow() {
	}

	// Over 10 simulated seconds at 10 tokens/s, ~100 requests pass.
	allowed := 0
	for i := 0; i < 1000; i++ {
		clk.advance(10 * time.Millisecond)
		if c.Allow() {
			allowed++
		}
	}
	if allowed < 95 || allowed > 105 {
		t.Fatalf("throughput %d, want ~100 (rate 10/s over 10s)", allowed)
	}
}

func TestAllow_NoDoubleSpendUnderConcurrency(t *testing.T) {
	c, _ := newTestController(100, 0.0001) // effectively no refill during test

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if c.Allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if allowed != 100 {
		t.Fatalf("allowed %d of 500 concurrent calls, want exactly capacity 100", allowed)
	}
}

func TestUtilization(t *testing.T) {
	c, _ := newTestController(10, 0.0001)
	if u := c.Utilization(); u > 0.01 {
		t.Fatalf("fresh bucket utilization = %v, want ~0", u)
	}
	for i := 0; i < 5; i++ {
		c.Allow()
	}
	if u := c.Utilization(); u < 0.49 || u > 0.51 {
		t.Fatalf("utilization = %v, want ~0.5", u)
	}
}

func TestReset(t *testing.T) {
	c, _ := newTestController(3, 0.0001)
	for i := 0; i < 3; i++ {
		c.Allow()
	}
	if c.Allow() {
		t.Fatal("bucket should be empty")
	}
	c.Reset()
	if !c.Allow() {
		t.Fatal("expected allow after reset")
	}
}
