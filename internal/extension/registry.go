package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/homewatch-io/homewatch/internal/event"
)

const (
	breakerMaxRequests  = 5
	breakerOpenTimeout  = 30 * time.Second
	breakerTripFailures = 3
)

type entry struct {
	ext     Extension
	breaker *gobreaker.CircuitBreaker
}

// Registry maps extension names to implementations. Each extension runs
// behind its own circuit breaker so a misbehaving post-processor is shed
// instead of slowing every assessment.
// Safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	log     *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{entries: make(map[string]*entry), log: log}
}

// Register adds an extension. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := ext.Name()
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("extension registry: duplicate name %q", name))
	}
	r.entries[name] = &entry{
		ext: ext,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: breakerMaxRequests,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTripFailures
			},
		}),
	}
	r.order = append(r.order, name)
}

// Names returns registered extension names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RunAll executes every registered extension in order and returns the number
// of failures (including breaker-open skips). Failures are logged and
// counted, never propagated: extensions cannot fail an assessment.
func (r *Registry) RunAll(ctx context.Context, ev *event.Event, res *event.Result) int {
	r.mu.RLock()
	names := r.order
	entries := make([]*entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, r.entries[n])
	}
	r.mu.RUnlock()

	failures := 0
	for i, e := range entries {
		_, err := e.breaker.Execute(func() (interface{}, error) {
			return nil, e.ext.Process(ctx, ev, res)
		})
		if err != nil {
			failures++
			r.log.Warn("extension failed", "extension", names[i], "error", err)
		}
	}
	return failures
}
