package fusion

import (
	"github.com/homewatch-io/homewatch/internal/feature"
)

// Factor is a named, weighted evidence signal. Present reports how strongly
// the signal holds for a feature map, in [0,1]; 0.5 is neutral. Weight is
// signed: negative weights argue the situation is benign.
type Factor struct {
	Name    string
	Weight  float64
	Present func(m feature.Map) float64
}

// EvidenceFactor is the audit/explanation view of an evaluated factor.
type EvidenceFactor struct {
	Name    string  `json:"name"`
	Weight  float64 `json:"weight"`
	Present float64 `json:"present"`
}

// Binary evidence is encoded with finite log-odds: on holds, off is neutral
// (absent evidence contributes nothing, in either direction).
const (
	on  = 0.95
	off = 0.5
)

func flag(name string) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		if m.Get(name) != 0 {
			return on
		}
		return off
	}
}

func both(a, b string) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		if m.Get(a) != 0 && m.Get(b) != 0 {
			return on
		}
		return off
	}
}

func all(names ...string) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		for _, n := range names {
			if m.Get(n) == 0 {
				return off
			}
		}
		return on
	}
}

func above(name string, threshold float64) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		if m.Get(name) >= threshold {
			return on
		}
		return off
	}
}

func below(name string, threshold float64) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		if m.Get(name) < threshold {
			return on
		}
		return off
	}
}

// scaled uses the feature value itself as evidence strength, squeezed away
// from the logit poles.
func scaled(name string) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		v := m.Get(name)
		if v < off {
			return off
		}
		if v > on {
			return on
		}
		return v
	}
}

// ramp maps a feature linearly from [lo,hi] onto [off,on].
func ramp(name string, lo, hi float64) func(feature.Map) float64 {
	return func(m feature.Map) float64 {
		v := m.Get(name)
		if v <= lo {
			return off
		}
		if v >= hi {
			return on
		}
		return off + (on-off)*(v-lo)/(hi-lo)
	}
}

// Catalog is the fixed factor catalog, defined at build time and evaluated
// per event. Order is stable so fusion stays deterministic.
var Catalog = []Factor{
	// Sensor trust.
	{Name: "sensor_confidence", Weight: 0.25, Present: scaled("confidence")},
	{Name: "low_confidence_reading", Weight: -0.20, Present: below("confidence", 0.4)},
	{Name: "multi_sensor_agreement", Weight: 0.30, Present: ramp("sensors", 1, 4)},
	{Name: "single_sensor_only", Weight: -0.10, Present: below("sensors", 2)},

	// Zone risk.
	{Name: "zone_risk", Weight: 0.35, Present: scaled("zone_risk")},
	{Name: "entry_zone", Weight: 0.20, Present: flag("zone_entry")},
	{Name: "perimeter_zone", Weight: 0.10, Present: flag("zone_perimeter")},
	{Name: "public_zone", Weight: -0.25, Present: flag("zone_public")},
	{Name: "unknown_zone", Weight: 0.05, Present: func(m feature.Map) float64 {
		if m.Get("zone_entry") == 0 && m.Get("zone_perimeter") == 0 &&
			m.Get("zone_interior") == 0 && m.Get("zone_public") == 0 {
			return on
		}
		return off
	}},

	// Breach semantics: interior activity while nobody should be home
	// outweighs raw zone risk.
	{Name: "interior_breach", Weight: 0.55, Present: all("is_away", "zone_interior", "is_motion")},
	{Name: "entry_activity_away", Weight: 0.30, Present: all("is_away", "zone_entry")},
	{Name: "escalating_approach", Weight: 0.45, Present: above("escalation", 1.5)},
	{Name: "zone_transition", Weight: 0.20, Present: above("escalation", 1.01)},

	// Time of day.
	{Name: "night_activity", Weight: 0.30, Present: flag("is_night")},
	{Name: "daytime_activity", Weight: -0.20, Present: flag("is_daytime")},
	{Name: "weekend_daytime", Weight: -0.10, Present: both("is_weekend", "is_daytime")},

	// Occupancy.
	{Name: "home_mode_away", Weight: 0.20, Present: flag("is_away")},
	{Name: "home_mode_home", Weight: -0.20, Present: flag("is_home")},
	{Name: "night_away_motion", Weight: 0.35, Present: all("is_night", "is_away", "is_motion")},

	// Event kind.
	{Name: "critical_category", Weight: 0.60, Present: flag("is_critical_type")},
	{Name: "forced_opening", Weight: 0.55, Present: both("forced", "is_opening")},
	{Name: "opening_event", Weight: 0.15, Present: flag("is_opening")},
	{Name: "doorbell_event", Weight: -0.15, Present: flag("is_doorbell")},
	{Name: "doorbell_daytime", Weight: -0.20, Present: both("is_doorbell", "is_daytime")},

	// Motion character.
	{Name: "sustained_motion", Weight: 0.25, Present: ramp("duration", 30, 120)},
	{Name: "brief_motion", Weight: -0.20, Present: func(m feature.Map) float64 {
		if m.Get("is_motion") != 0 && m.Get("duration") > 0 && m.Get("duration") <= 15 {
			return on
		}
		return off
	}},
	{Name: "high_energy", Weight: 0.25, Present: above("energy", 0.7)},
	{Name: "low_energy", Weight: -0.15, Present: func(m feature.Map) float64 {
		if m.Get("energy") > 0 && m.Get("energy") < 0.2 {
			return on
		}
		return off
	}},
	{Name: "pet_classified", Weight: -0.45, Present: flag("is_pet")},
	{Name: "pet_at_home", Weight: -0.20, Present: both("is_pet", "is_home")},

	// Audio.
	{Name: "loud_sound", Weight: 0.35, Present: above("sound_level", 85)},
	{Name: "moderate_sound", Weight: 0.10, Present: ramp("sound_level", 60, 85)},

	// Repetition.
	{Name: "duplicate_stimulus", Weight: -0.15, Present: flag("duplicate")},
}

// evaluate computes the present value of every catalog factor.
func evaluateCatalog(m feature.Map) []EvidenceFactor {
	out := make([]EvidenceFactor, len(Catalog))
	for i, f := range Catalog {
		out[i] = EvidenceFactor{Name: f.Name, Weight: f.Weight, Present: f.Present(m)}
	}
	return out
}
