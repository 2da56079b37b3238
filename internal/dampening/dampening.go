// Package dampening adjusts fused threat scores for temporal and behavioral
// context: time of day, home mode, pets, weekends, and learned user
// patterns.
package dampening

import (
	"time"
)

// Inputs describes the event context the dampener needs. Hours and weekdays
// come from the event's own timestamp, never the wall clock, so replays are
// reproducible.
type Inputs struct {
	Score         float64
	EventType     string
	Timestamp     time.Time
	HomeMode      string // "home" or "away"
	Critical      bool   // glass break / fire / CO category
	PetClassified bool
	DeliveryLike  bool // delivery chain pattern or doorbell stimulus
}

// Apply returns the dampened score and the names of the adjustments that
// fired, for the audit trail. Critical categories are exempt from all
// dampening and are floored at CriticalEventMinimum.
func Apply(cfg Config, patterns *UserPatterns, in Inputs) (float64, []string) {
	if in.Critical {
		score := in.Score
		if score < cfg.CriticalEventMinimum {
			score = cfg.CriticalEventMinimum
		}
		if score > cfg.MaximumThreatScore {
			score = cfg.MaximumThreatScore
		}
		return score, []string{"critical_exempt"}
	}

	score := in.Score
	var applied []string
	hour := in.Timestamp.Hour()
	weekday := in.Timestamp.Weekday()
	home := in.HomeMode == "home"

	if in.DeliveryLike && inWindow(hour, cfg.DeliveryWindowStart, cfg.DeliveryWindowEnd) {
		score *= cfg.DaytimeDampeningFactor
		applied = append(applied, "delivery_window")
	}
	if inWindow(hour, cfg.NightWindowStart, cfg.NightWindowEnd) {
		score *= cfg.NightVigilanceBoost // boost is >= 1, only upward
		applied = append(applied, "night_vigilance")
	}
	if in.PetClassified && home {
		score *= cfg.PetDampeningFactor
		applied = append(applied, "pet_motion")
	}
	if home {
		score *= cfg.HomeModeDampeningFactor
		applied = append(applied, "home_mode")
	}
	if weekday == time.Saturday || weekday == time.Sunday {
		score *= cfg.WeekendDampeningFactor
		applied = append(applied, "weekend")
	}

	// Learned per-type dampening: frequency scales the multiplier from 1.0
	// down to MaxPatternDampening.
	if patterns != nil {
		if freq := patterns.DeliveryFrequency(in.EventType); freq > 0 {
			score *= 1 - freq*(1-cfg.MaxPatternDampening)
			applied = append(applied, "learned_pattern")
		}
	}

	if score < cfg.MinimumThreatScore {
		score = cfg.MinimumThreatScore
	}
	if score > cfg.MaximumThreatScore {
		score = cfg.MaximumThreatScore
	}
	return score, applied
}
