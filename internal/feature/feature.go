// Package feature flattens a typed event plus its context into the named
// numeric map consumed by the rule engine and the fusion factor catalog.
package feature

import (
	"strings"
	"time"

	"github.com/homewatch-io/homewatch/internal/event"
	"github.com/homewatch-io/homewatch/internal/zone"
)

// Map is a named numeric feature vector. Booleans are encoded as 0/1.
type Map map[string]float64

// petScoreThreshold is the classifier confidence required to trust a
// pet-classified motion.
const petScoreThreshold = 0.85

// duplicateWindow treats a repeat of the same (type, location) stimulus
// within this interval as a duplicate.
const duplicateWindow = 5 * time.Second

// Context carries the pipeline-derived inputs that are not part of the raw
// event.
type Context struct {
	Zone       zone.Zone
	Escalation float64
	HomeMode   string
	Previous   *event.Event // last event seen before this one, may be nil
}

// Extract computes the feature map for one event. Total: never fails, every
// value is finite.
func Extract(ev *event.Event, ctx Context) Map {
	d := ev.Details()
	hour := float64(ev.Timestamp.Hour())
	weekday := ev.Timestamp.Weekday()
	typ := strings.ToLower(ev.Type)

	m := Map{
		"confidence":  clamp01(ev.Confidence),
		"duration":    nonNeg(d.Duration),
		"energy":      clamp01(d.Energy),
		"sound_level": nonNeg(d.SoundLevelDB),
		"pet_score":   clamp01(d.PetScore),
		"sensors":     nonNeg(float64(d.Sensors)),
		"zone_risk":   clamp01(ctx.Zone.BaseRisk),
		"escalation":  ctx.Escalation,
		"hour":        hour,
	}

	m["is_motion"] = boolF(typ == "motion")
	m["is_opening"] = boolF(ev.IsOpening())
	m["is_doorbell"] = boolF(typ == "doorbell_chime")
	m["is_sound"] = boolF(typ == "sound")
	m["is_critical_type"] = boolF(ev.IsCritical())
	m["forced"] = boolF(d.Forced)
	m["is_pet"] = boolF(typ == "motion" &&
		strings.EqualFold(d.MotionClass, "pet") && d.PetScore >= petScoreThreshold)

	m["is_night"] = boolF(hour >= 22 || hour < 6)
	m["is_daytime"] = boolF(hour >= 8 && hour < 18)
	m["is_weekend"] = boolF(weekday == time.Saturday || weekday == time.Sunday)

	home := strings.EqualFold(ctx.HomeMode, "home")
	m["is_home"] = boolF(home)
	m["is_away"] = boolF(!home)

	m["zone_entry"] = boolF(ctx.Zone.Type == zone.Entry)
	m["zone_perimeter"] = boolF(ctx.Zone.Type == zone.Perimeter)
	m["zone_interior"] = boolF(ctx.Zone.Type == zone.Interior)
	m["zone_public"] = boolF(ctx.Zone.Type == zone.Public)

	m["duplicate"] = boolF(isDuplicate(ev, ctx.Previous))

	return m
}

// Get returns the named feature, zero when absent.
func (m Map) Get(name string) float64 {
	return m[name]
}

func isDuplicate(ev, prev *event.Event) bool {
	if prev == nil {
		return false
	}
	if !strings.EqualFold(ev.Type, prev.Type) {
		return false
	}
	if zone.Normalize(ev.Location) != zone.Normalize(prev.Location) {
		return false
	}
	gap := ev.Timestamp.Sub(prev.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= duplicateWindow
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func nonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
