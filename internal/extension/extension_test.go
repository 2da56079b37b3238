package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/homewatch-io/homewatch/internal/event"
)

type failing struct {
	name  string
	calls int
}

func (f *failing) Name() string { return f.name }

func (f *failing) Process(context.Context, *event.Event, *event.Result) error {
	f.calls++
	return errors.New("boom")
}

type counting struct {
	name  string
	calls int
}

func (c *counting) Name() string { return c.name }

func (c *counting) Process(_ context.Context, _ *event.Event, res *event.Result) error {
	c.calls++
	res.Reasoning = "annotated"
	return nil
}

func TestRegistry_RunAllAnnotates(t *testing.T) {
	r := NewRegistry(nil)
	c := &counting{name: "annotator"}
	r.Register(c)
	r.Register(Noop{ExtName: "placeholder"})

	res := &event.Result{}
	if got := r.RunAll(context.Background(), &event.Event{}, res); got != 0 {
		t.Fatalf("failures = %d, want 0", got)
	}
	if c.calls != 1 {
		t.Fatalf("extension called %d times, want 1", c.calls)
	}
	if res.Reasoning != "annotated" {
		t.Fatalf("reasoning = %q, want annotated", res.Reasoning)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("duplicate registration should panic")
		}
	}()
	r := NewRegistry(nil)
	r.Register(Noop{ExtName: "dup"})
	r.Register(Noop{ExtName: "dup"})
}

func TestRegistry_FailuresCountedNotFatal(t *testing.T) {
	r := NewRegistry(nil)
	f := &failing{name: "flaky"}
	ok := &counting{name: "steady"}
	r.Register(f)
	r.Register(ok)

	res := &event.Result{}
	if got := r.RunAll(context.Background(), &event.Event{}, res); got != 1 {
		t.Fatalf("failures = %d, want 1", got)
	}
	if ok.calls != 1 {
		t.Fatal("later extensions must still run after a failure")
	}
}

func TestRegistry_BreakerShedsRepeatedFailures(t *testing.T) {
	r := NewRegistry(nil)
	f := &failing{name: "flaky"}
	r.Register(f)

	for i := 0; i < 10; i++ {
		r.RunAll(context.Background(), &event.Event{}, &event.Result{})
	}
	// the breaker trips after 3 consecutive failures; later runs are shed
	// without invoking the extension
	if f.calls != 3 {
		t.Fatalf("extension invoked %d times, want 3 before breaker opened", f.calls)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Noop{ExtName: "a"})
	r.Register(Noop{ExtName: "b"})
	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v, want [a b]", names)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
}

func TestThresholdAlerter(t *testing.T) {
	a, err := NewThresholdAlerter(map[string]interface{}{
		"threshold": "0.5",
		"note":      "check the cameras",
	})
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}

	res := &event.Result{Score: 0.8, Reasoning: "fused evidence"}
	if err := a.Process(context.Background(), nil, res); err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Reasoning != "fused evidence; check the cameras" {
		t.Fatalf("reasoning = %q", res.Reasoning)
	}

	low := &event.Result{Score: 0.2, Reasoning: "quiet"}
	if err := a.Process(context.Background(), nil, low); err != nil {
		t.Fatalf("process low: %v", err)
	}
	if low.Reasoning != "quiet" {
		t.Fatal("below-threshold result must be untouched")
	}
}

func TestThresholdAlerter_RejectsBadThreshold(t *testing.T) {
	if _, err := NewThresholdAlerter(map[string]interface{}{"threshold": 1.5}); err == nil {
		t.Fatal("expected error for threshold outside [0,1]")
	}
}
