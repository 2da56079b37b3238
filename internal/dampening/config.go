package dampening

import (
	"fmt"
	"strings"
)

// Config is the operator-tunable temporal configuration. One is active at a
// time; swaps go through Validate first so an invalid config can never be
// applied.
type Config struct {
	DeliveryWindowStart int `yaml:"delivery_window_start" json:"delivery_window_start"`
	DeliveryWindowEnd   int `yaml:"delivery_window_end" json:"delivery_window_end"`
	NightWindowStart    int `yaml:"night_window_start" json:"night_window_start"`
	NightWindowEnd      int `yaml:"night_window_end" json:"night_window_end"`

	DaytimeDampeningFactor  float64 `yaml:"daytime_dampening_factor" json:"daytime_dampening_factor"`
	NightVigilanceBoost     float64 `yaml:"night_vigilance_boost" json:"night_vigilance_boost"`
	PetDampeningFactor      float64 `yaml:"pet_dampening_factor" json:"pet_dampening_factor"`
	HomeModeDampeningFactor float64 `yaml:"home_mode_dampening_factor" json:"home_mode_dampening_factor"`
	WeekendDampeningFactor  float64 `yaml:"weekend_dampening_factor" json:"weekend_dampening_factor"`

	DeliveryLearningRate float64 `yaml:"delivery_learning_rate" json:"delivery_learning_rate"`
	MaxPatternDampening  float64 `yaml:"max_pattern_dampening" json:"max_pattern_dampening"`

	CriticalEventMinimum float64 `yaml:"critical_event_minimum" json:"critical_event_minimum"`
	MinimumThreatScore   float64 `yaml:"minimum_threat_score" json:"minimum_threat_score"`
	MaximumThreatScore   float64 `yaml:"maximum_threat_score" json:"maximum_threat_score"`
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		DeliveryWindowStart:     8,
		DeliveryWindowEnd:       18,
		NightWindowStart:        22,
		NightWindowEnd:          6,
		DaytimeDampeningFactor:  0.4,
		NightVigilanceBoost:     1.3,
		PetDampeningFactor:      0.3,
		HomeModeDampeningFactor: 0.6,
		WeekendDampeningFactor:  0.9,
		DeliveryLearningRate:    0.05,
		MaxPatternDampening:     0.5,
		CriticalEventMinimum:    0.9,
		MinimumThreatScore:      0.0,
		MaximumThreatScore:      1.0,
	}
}

// Validate rejects out-of-range tunables. Callers keep the previous valid
// configuration on error.
func (c Config) Validate() error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	for name, h := range map[string]int{
		"delivery_window_start": c.DeliveryWindowStart,
		"delivery_window_end":   c.DeliveryWindowEnd,
		"night_window_start":    c.NightWindowStart,
		"night_window_end":      c.NightWindowEnd,
	} {
		if h < 0 || h >= 24 {
			add("%s: hour %d outside [0,24)", name, h)
		}
	}
	for name, f := range map[string]float64{
		"daytime_dampening_factor":   c.DaytimeDampeningFactor,
		"pet_dampening_factor":       c.PetDampeningFactor,
		"home_mode_dampening_factor": c.HomeModeDampeningFactor,
		"weekend_dampening_factor":   c.WeekendDampeningFactor,
		"max_pattern_dampening":      c.MaxPatternDampening,
	} {
		if f <= 0 || f > 1 {
			add("%s: %v outside (0,1]", name, f)
		}
	}
	if c.NightVigilanceBoost < 1.0 || c.NightVigilanceBoost > 2.0 {
		add("night_vigilance_boost: %v outside [1.0,2.0]", c.NightVigilanceBoost)
	}
	if c.DeliveryLearningRate <= 0 || c.DeliveryLearningRate >= 1 {
		add("delivery_learning_rate: %v outside (0,1)", c.DeliveryLearningRate)
	}
	if c.CriticalEventMinimum < 0.5 || c.CriticalEventMinimum > 1 {
		add("critical_event_minimum: %v outside [0.5,1.0]", c.CriticalEventMinimum)
	}
	if c.MinimumThreatScore < 0 || c.MaximumThreatScore > 1 {
		add("threat score bounds must stay within [0,1]")
	}
	if c.MinimumThreatScore >= c.MaximumThreatScore {
		add("minimum_threat_score %v must be below maximum_threat_score %v",
			c.MinimumThreatScore, c.MaximumThreatScore)
	}

	if len(errs) > 0 {
		return fmt.Errorf("temporal config invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// inWindow reports whether hour falls inside [start,end), handling windows
// that wrap midnight (22 -> 6).
func inWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
