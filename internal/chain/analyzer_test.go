package chain

import (
	"fmt"
	"testing"
	"time"

	"github.com/homewatch-io/homewatch/internal/event"
)

var t0 = time.Unix(1_700_000_000, 0)

func evt(typ, location string, offset time.Duration, meta map[string]interface{}) *event.Event {
	return &event.Event{
		ID:         fmt.Sprintf("%s-%d", typ, offset/time.Second),
		Type:       typ,
		Timestamp:  t0.Add(offset),
		Location:   location,
		Confidence: 0.9,
		Metadata:   meta,
	}
}

// feed runs all events through the analyzer and returns the last result.
func feed(a *Analyzer, events ...*event.Event) *Pattern {
	var p *Pattern
	for _, ev := range events {
		p = a.Analyze(ev)
	}
	return p
}

func TestAnalyze_SingleEventNeverMatches(t *testing.T) {
	for _, typ := range []string{"motion", "door", "glass_break", "doorbell_chime", "sound"} {
		a := New()
		if p := a.Analyze(evt(typ, "front_door", 0, nil)); p != nil {
			t.Errorf("isolated %s event matched %s", typ, p.Name)
		}
	}
}

func TestAnalyze_ActiveBreakIn(t *testing.T) {
	p := feed(New(),
		evt("glass_break", "living_room", 0, nil),
		evt("motion", "living_room", 10*time.Second, nil),
	)
	if p == nil || p.Name != "active_break_in" {
		t.Fatalf("got %+v, want active_break_in", p)
	}
	if p.Delta != 0.70 {
		t.Fatalf("delta = %v, want 0.70", p.Delta)
	}
}

func TestAnalyze_ActiveBreakIn_SoundClassified(t *testing.T) {
	p := feed(New(),
		evt("sound", "kitchen", 0, map[string]interface{}{"sound_type": "glass_breaking"}),
		evt("motion", "kitchen", 5*time.Second, nil),
	)
	if p == nil || p.Name != "active_break_in" {
		t.Fatalf("got %+v, want active_break_in", p)
	}
}

func TestAnalyze_ActiveBreakIn_TooLate(t *testing.T) {
	p := feed(New(),
		evt("glass_break", "living_room", 0, nil),
		evt("motion", "living_room", 25*time.Second, nil),
	)
	if p != nil && p.Name == "active_break_in" {
		t.Fatalf("motion 25s after glass break must not match, got %s", p.Name)
	}
}

func TestAnalyze_ForcedEntry(t *testing.T) {
	p := feed(New(),
		evt("door", "front_door", 0, nil),
		evt("door", "front_door", 5*time.Second, nil),
		evt("window", "front_door", 10*time.Second, nil),
	)
	if p == nil || p.Name != "forced_entry" {
		t.Fatalf("got %+v, want forced_entry", p)
	}
	if p.Delta != 0.60 {
		t.Fatalf("delta = %v, want 0.60", p.Delta)
	}
}

func TestAnalyze_ForcedEntry_SpreadTooWide(t *testing.T) {
	p := feed(New(),
		evt("door", "front_door", 0, nil),
		evt("door", "front_door", 20*time.Second, nil),
		evt("door", "front_door", 40*time.Second, nil),
	)
	if p != nil && p.Name == "forced_entry" {
		t.Fatal("openings 20s apart must not match forced_entry")
	}
}

func TestAnalyze_IntrusionSequence(t *testing.T) {
	p := feed(New(),
		evt("motion", "backyard", 0, nil),
		evt("door", "back_door", 30*time.Second, nil),
		evt("motion", "living_room", 45*time.Second, nil),
	)
	if p == nil || p.Name != "intrusion_sequence" {
		t.Fatalf("got %+v, want intrusion_sequence", p)
	}
	if p.Delta != 0.50 {
		t.Fatalf("delta = %v, want 0.50", p.Delta)
	}
}

func TestAnalyze_ProwlerActivity(t *testing.T) {
	p := feed(New(),
		evt("motion", "backyard", 0, nil),
		evt("motion", "side_yard", 15*time.Second, nil),
		evt("motion", "front_yard", 30*time.Second, nil),
	)
	if p == nil || p.Name != "prowler_activity" {
		t.Fatalf("got %+v, want prowler_activity", p)
	}
}

func TestAnalyze_ProwlerRequiresDistinctLocations(t *testing.T) {
	p := feed(New(),
		evt("motion", "backyard", 0, nil),
		evt("motion", "backyard", 15*time.Second, nil),
		evt("motion", "Backyard", 30*time.Second, nil),
	)
	if p != nil {
		t.Fatalf("repeat motion in one zone matched %s", p.Name)
	}
}

func TestAnalyze_PackageDelivery(t *testing.T) {
	p := feed(New(),
		evt("doorbell_chime", "front_door", 0, nil),
		evt("motion", "front_door", 3*time.Second, map[string]interface{}{"duration": 8.0}),
	)
	if p == nil || p.Name != "package_delivery" {
		t.Fatalf("got %+v, want package_delivery", p)
	}
	if p.Delta != -0.40 {
		t.Fatalf("delta = %v, want -0.40", p.Delta)
	}
}

func TestAnalyze_PackageDelivery_LongMotionRejected(t *testing.T) {
	p := feed(New(),
		evt("doorbell_chime", "front_door", 0, nil),
		evt("motion", "front_door", 3*time.Second, map[string]interface{}{"duration": 45.0}),
	)
	if p != nil && p.Name == "package_delivery" {
		t.Fatal("long motion after doorbell must not look like a delivery")
	}
}

func TestAnalyze_PackageDelivery_BrokenSilence(t *testing.T) {
	a := New()
	feed(a,
		evt("doorbell_chime", "front_door", 0, nil),
		evt("motion", "front_door", 3*time.Second, map[string]interface{}{"duration": 8.0}),
	)
	p := a.Analyze(evt("door", "front_door", 15*time.Second, nil))
	if p != nil && p.Name == "package_delivery" {
		t.Fatal("follow-up activity within the silence interval must break the delivery pattern")
	}
}

func TestAnalyze_SeverityOrder(t *testing.T) {
	// A window that satisfies both intrusion_sequence and active_break_in
	// must report the more severe pattern.
	p := feed(New(),
		evt("motion", "backyard", 0, nil),
		evt("door", "back_door", 10*time.Second, nil),
		evt("glass_break", "living_room", 20*time.Second, nil),
		evt("motion", "living_room", 25*time.Second, nil),
	)
	if p == nil || p.Name != "active_break_in" {
		t.Fatalf("got %+v, want active_break_in to win on severity", p)
	}
}

func TestWindow_ExpiresByTimestamp(t *testing.T) {
	a := New()
	a.Analyze(evt("glass_break", "living_room", 0, nil))
	// 90s later the glass break has left the 60s window.
	p := a.Analyze(evt("motion", "living_room", 90*time.Second, nil))
	if p != nil {
		t.Fatalf("stale event should have expired, got %s", p.Name)
	}
	if a.Size() != 1 {
		t.Fatalf("window size = %d, want 1", a.Size())
	}
}

func TestWindow_CapacityBounded(t *testing.T) {
	a := New()
	for i := 0; i < defaultCapacity+50; i++ {
		a.Analyze(evt("heartbeat", "hub", time.Duration(i)*100*time.Millisecond, nil))
	}
	if a.Size() > defaultCapacity {
		t.Fatalf("window size = %d, exceeds capacity %d", a.Size(), defaultCapacity)
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.Analyze(evt("motion", "backyard", 0, nil))
	a.Reset()
	if a.Size() != 0 {
		t.Fatalf("size after reset = %d", a.Size())
	}
}
