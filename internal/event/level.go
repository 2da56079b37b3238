package event

import (
	"fmt"
	"time"
)

// Level is the ordinal threat category produced by an assessment.
type Level int

const (
	LevelLow Level = iota
	LevelStandard
	LevelElevated
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelStandard:
		return "standard"
	case LevelElevated:
		return "elevated"
	case LevelCritical:
		return "critical"
	default:
		return "standard"
	}
}

// MarshalText makes Level render as its name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a Level from its name, inverting MarshalText.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*l = LevelLow
	case "standard":
		*l = LevelStandard
	case "elevated":
		*l = LevelElevated
	case "critical":
		*l = LevelCritical
	default:
		return fmt.Errorf("unknown threat level %q", text)
	}
	return nil
}

// LevelFromScore maps a calibrated score to its threat level.
// Thresholds: [0.9,1.0] critical, [0.7,0.9) elevated, [0.4,0.7) standard,
// below 0.4 low.
func LevelFromScore(score float64) Level {
	switch {
	case score >= 0.9:
		return LevelCritical
	case score >= 0.7:
		return LevelElevated
	case score >= 0.4:
		return LevelStandard
	default:
		return LevelLow
	}
}

// Result is the assessment output returned to the caller.
type Result struct {
	RequestID        string    `json:"request_id"`
	ThreatLevel      Level     `json:"threat_level"`
	Confidence       float64   `json:"confidence"`
	Score            float64   `json:"score"`
	Reasoning        string    `json:"reasoning"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}
