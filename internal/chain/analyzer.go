// Package chain detects multi-event temporal patterns over a sliding window
// of recent sensor events.
package chain

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/homewatch-io/homewatch/internal/event"
)

// Pattern is a named match produced by a single Analyze call.
type Pattern struct {
	Name      string  `json:"name"`
	Delta     float64 `json:"threat_delta"`
	Reasoning string  `json:"reasoning"`
}

const (
	windowSpan       = 60 * time.Second
	breakInFollow    = 20 * time.Second
	forcedEntrySpan  = 15 * time.Second
	deliveryMinGap   = 2 * time.Second
	deliveryMaxGap   = 30 * time.Second
	deliverySilence  = 20 * time.Second
	shortMotionSecs  = 15.0
	defaultCapacity  = 256
)

// Analyzer owns the event window. Entries expire by timestamp comparison
// against the newest event, never by wall-clock polling.
type Analyzer struct {
	mu       sync.Mutex
	window   []*event.Event
	capacity int
}

// New creates an Analyzer with the default window capacity.
func New() *Analyzer {
	return &Analyzer{capacity: defaultCapacity}
}

// NewWithCapacity creates an Analyzer with a custom window capacity.
// Capacities below 2 fall back to the default.
func NewWithCapacity(capacity int) *Analyzer {
	if capacity < 2 {
		capacity = defaultCapacity
	}
	return &Analyzer{capacity: capacity}
}

// Analyze inserts ev and evaluates pattern templates most-severe-first, so
// exactly one pattern is reported per call. It returns nil when nothing
// matches; a single isolated event never matches.
func (a *Analyzer) Analyze(ev *event.Event) *Pattern {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.insertLocked(ev)
	if len(a.window) < 2 {
		return nil
	}

	for _, match := range []func() *Pattern{
		a.activeBreakIn,
		a.forcedEntry,
		a.intrusionSequence,
		a.prowlerActivity,
		a.packageDelivery,
	} {
		if p := match(); p != nil {
			return p
		}
	}
	return nil
}

// Size returns the number of events currently retained.
func (a *Analyzer) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.window)
}

// Reset clears all window state. Test isolation only.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = nil
}

func (a *Analyzer) insertLocked(ev *event.Event) {
	a.window = append(a.window, ev)
	sort.SliceStable(a.window, func(i, j int) bool {
		return a.window[i].Timestamp.Before(a.window[j].Timestamp)
	})

	newest := a.window[len(a.window)-1].Timestamp
	cutoff := newest.Add(-windowSpan)
	trim := 0
	for trim < len(a.window) && a.window[trim].Timestamp.Before(cutoff) {
		trim++
	}
	a.window = a.window[trim:]

	if len(a.window) > a.capacity {
		a.window = a.window[len(a.window)-a.capacity:]
	}
}

// activeBreakIn: glass break followed within 20s by motion.
func (a *Analyzer) activeBreakIn() *Pattern {
	for i, ev := range a.window {
		if !isGlassBreak(ev) {
			continue
		}
		for _, later := range a.window[i+1:] {
			if !isType(later, "motion") {
				continue
			}
			if later.Timestamp.Sub(ev.Timestamp) <= breakInFollow {
				return &Pattern{
					Name:      "active_break_in",
					Delta:     0.70,
					Reasoning: "glass break followed by motion within 20s",
				}
			}
		}
	}
	return nil
}

// forcedEntry: three or more door/window events inside a 15s sub-window.
func (a *Analyzer) forcedEntry() *Pattern {
	var openings []*event.Event
	for _, ev := range a.window {
		if ev.IsOpening() {
			openings = append(openings, ev)
		}
	}
	for i := 0; i+2 < len(openings); i++ {
		if openings[i+2].Timestamp.Sub(openings[i].Timestamp) <= forcedEntrySpan {
			return &Pattern{
				Name:      "forced_entry",
				Delta:     0.60,
				Reasoning: "repeated door/window activity within 15s",
			}
		}
	}
	return nil
}

// intrusionSequence: motion, then door/window, then motion, in order.
func (a *Analyzer) intrusionSequence() *Pattern {
	stage := 0
	for _, ev := range a.window {
		switch stage {
		case 0:
			if isType(ev, "motion") {
				stage = 1
			}
		case 1:
			if ev.IsOpening() {
				stage = 2
			}
		case 2:
			if isType(ev, "motion") {
				return &Pattern{
					Name:      "intrusion_sequence",
					Delta:     0.50,
					Reasoning: "motion, entry point opened, then interior motion",
				}
			}
		}
	}
	return nil
}

// prowlerActivity: motion across three or more distinct locations.
func (a *Analyzer) prowlerActivity() *Pattern {
	locations := make(map[string]struct{})
	for _, ev := range a.window {
		if !isType(ev, "motion") {
			continue
		}
		loc := strings.ToLower(strings.TrimSpace(ev.Location))
		if loc != "" {
			locations[loc] = struct{}{}
		}
	}
	if len(locations) >= 3 {
		return &Pattern{
			Name:      "prowler_activity",
			Delta:     0.45,
			Reasoning: "motion across multiple zones within 60s",
		}
	}
	return nil
}

// packageDelivery: doorbell, short motion 2-30s later, then no further
// activity within 20s of the motion.
func (a *Analyzer) packageDelivery() *Pattern {
	for i, ev := range a.window {
		if !isType(ev, "doorbell_chime") {
			continue
		}
		for j, later := range a.window[i+1:] {
			if !isType(later, "motion") {
				continue
			}
			gap := later.Timestamp.Sub(ev.Timestamp)
			if gap < deliveryMinGap || gap > deliveryMaxGap {
				continue
			}
			if later.Details().Duration > shortMotionSecs {
				continue
			}
			if a.quietAfter(i+1+j, later.Timestamp) {
				return &Pattern{
					Name:      "package_delivery",
					Delta:     -0.40,
					Reasoning: "doorbell then brief motion then silence",
				}
			}
		}
	}
	return nil
}

// quietAfter reports whether no event after index idx falls within the
// silence interval following t. Evaluated at insert time, so an interval
// that has not elapsed yet counts as quiet until contradicted.
func (a *Analyzer) quietAfter(idx int, t time.Time) bool {
	deadline := t.Add(deliverySilence)
	for _, ev := range a.window[idx+1:] {
		if ev.Timestamp.After(t) && !ev.Timestamp.After(deadline) {
			return false
		}
	}
	return true
}

func isType(ev *event.Event, t string) bool {
	return strings.EqualFold(ev.Type, t)
}

func isGlassBreak(ev *event.Event) bool {
	if isType(ev, "glass_break") {
		return true
	}
	return isType(ev, "sound") && ev.Details().SoundType == "glass_breaking"
}
