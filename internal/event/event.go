package event

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Event is the canonical input model for all incoming sensor events.
// Immutable once constructed at the boundary.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"` // "motion", "door", "doorbell_chime", "sound", ...
	Timestamp  time.Time              `json:"timestamp"`
	ReceivedAt time.Time              `json:"-"`
	Location   string                 `json:"location"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata"` // sensor-specific payload
}

// Details is the typed view over Event.Metadata. Unknown keys are ignored;
// core stages only ever read metadata through this struct.
type Details struct {
	Duration     float64 `mapstructure:"duration"`     // seconds
	Energy       float64 `mapstructure:"energy"`       // normalized 0-1
	SoundType    string  `mapstructure:"sound_type"`   // "glass_breaking", "alarm", ...
	SoundLevelDB float64 `mapstructure:"sound_level"`  // decibels
	MotionClass  string  `mapstructure:"motion_class"` // "person", "pet", "vehicle"
	PetScore     float64 `mapstructure:"pet_score"`    // pet classifier confidence 0-1
	Forced       bool    `mapstructure:"forced"`       // forced door/window open
	Sensors      int     `mapstructure:"sensors"`      // sensors triggered
	DeviceID     string  `mapstructure:"device_id"`
}

// Details decodes the metadata map into its typed form.
// Decoding is lenient: a malformed field yields the zero value, never an
// error escaping into the pipeline.
func (e *Event) Details() Details {
	var d Details
	if e.Metadata == nil {
		return d
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &d,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return d
	}
	_ = dec.Decode(e.Metadata)
	return d
}

// Request is a single assessment request: one or more events observed
// together, plus household context.
type Request struct {
	RequestID string    `json:"request_id"`
	Events    []*Event  `json:"events"`
	HomeMode  string    `json:"home_mode"` // "home" or "away"
	Timestamp time.Time `json:"timestamp"`
}

// Primary returns the most recent event of the request, which drives the
// assessment; earlier events seed the chain window.
func (r *Request) Primary() *Event {
	if len(r.Events) == 0 {
		return nil
	}
	return r.Events[len(r.Events)-1]
}

// Critical event categories are exempt from all dampening.
var criticalTypes = map[string]struct{}{
	"glass_break": {},
	"fire":        {},
	"smoke":       {},
	"co2":         {},
	"co":          {},
}

// IsCritical reports whether the event belongs to a non-dampenable category.
// Sound events classified as glass breaking count as glass_break.
func (e *Event) IsCritical() bool {
	t := strings.ToLower(e.Type)
	if _, ok := criticalTypes[t]; ok {
		return true
	}
	if t == "sound" && e.Details().SoundType == "glass_breaking" {
		return true
	}
	return false
}

// IsOpening reports whether the event is a door or window actuation.
func (e *Event) IsOpening() bool {
	t := strings.ToLower(e.Type)
	return t == "door" || t == "window"
}
