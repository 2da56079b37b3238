// Package zone maps raw sensor locations to risk-tiered zones and scores
// escalation across location sequences.
package zone

import (
	"strings"
)

// Type is the risk tier of a zone.
type Type string

const (
	Entry     Type = "entry"
	Perimeter Type = "perimeter"
	Interior  Type = "interior"
	Public    Type = "public"
	Unknown   Type = "unknown"
)

// Zone is a named location with a static base risk.
type Zone struct {
	Name     string  `json:"name" yaml:"name"`
	Type     Type    `json:"type" yaml:"type"`
	BaseRisk float64 `json:"base_risk" yaml:"base_risk"`
}

// neutralRisk is returned for locations the table does not know.
const neutralRisk = 0.5

// Escalation multipliers. Perimeter-to-entry means someone moved from the
// yard to a door; entry-to-interior means an entry point was breached.
const (
	perimeterToEntryFactor = 1.6
	entryToInteriorFactor  = 1.9
	perimeterSweepFactor   = 1.2
	maxEscalation          = 3.0
)

var defaultZones = []Zone{
	{Name: "front_door", Type: Entry, BaseRisk: 0.70},
	{Name: "back_door", Type: Entry, BaseRisk: 0.75},
	{Name: "side_door", Type: Entry, BaseRisk: 0.72},
	{Name: "garage_door", Type: Entry, BaseRisk: 0.68},
	{Name: "backyard", Type: Perimeter, BaseRisk: 0.60},
	{Name: "front_yard", Type: Perimeter, BaseRisk: 0.55},
	{Name: "side_yard", Type: Perimeter, BaseRisk: 0.58},
	{Name: "porch", Type: Perimeter, BaseRisk: 0.55},
	{Name: "driveway", Type: Perimeter, BaseRisk: 0.52},
	{Name: "garage", Type: Perimeter, BaseRisk: 0.60},
	{Name: "living_room", Type: Interior, BaseRisk: 0.35},
	{Name: "kitchen", Type: Interior, BaseRisk: 0.35},
	{Name: "bedroom", Type: Interior, BaseRisk: 0.40},
	{Name: "hallway", Type: Interior, BaseRisk: 0.35},
	{Name: "basement", Type: Interior, BaseRisk: 0.45},
	{Name: "street", Type: Public, BaseRisk: 0.25},
	{Name: "sidewalk", Type: Public, BaseRisk: 0.25},
}

var defaultAliases = map[string]string{
	"frontdoor":   "front_door",
	"backdoor":    "back_door",
	"sidedoor":    "side_door",
	"back_yard":   "backyard",
	"front_porch": "porch",
	"livingroom":  "living_room",
	"lounge":      "living_room",
	"yard":        "backyard",
}

// Classifier holds the location table. Built once at startup, read-only
// during assessment.
type Classifier struct {
	zones   map[string]Zone
	aliases map[string]string
}

// NewClassifier builds a Classifier from the default table plus overrides.
// Override zones replace or extend the defaults by normalized name.
func NewClassifier(overrides []Zone, aliases map[string]string) *Classifier {
	c := &Classifier{
		zones:   make(map[string]Zone, len(defaultZones)+len(overrides)),
		aliases: make(map[string]string, len(defaultAliases)+len(aliases)),
	}
	for _, z := range defaultZones {
		c.zones[z.Name] = z
	}
	for _, z := range overrides {
		z.Name = Normalize(z.Name)
		if z.Name != "" {
			c.zones[z.Name] = z
		}
	}
	for k, v := range defaultAliases {
		c.aliases[k] = v
	}
	for k, v := range aliases {
		c.aliases[Normalize(k)] = Normalize(v)
	}
	return c
}

// Normalize lowercases a raw location and collapses separators to
// underscores.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(s))
	lastSep := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '.' || r == '/':
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastSep = true
		default:
			b.WriteRune(r)
			lastSep = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Classify resolves a raw location: exact match, then alias, then substring,
// else an unknown zone with neutral risk.
func (c *Classifier) Classify(raw string) Zone {
	name := Normalize(raw)
	if name == "" {
		return Zone{Name: "unknown", Type: Unknown, BaseRisk: neutralRisk}
	}
	if z, ok := c.zones[name]; ok {
		return z
	}
	if canonical, ok := c.aliases[name]; ok {
		if z, ok := c.zones[canonical]; ok {
			return z
		}
	}
	// Partial match: the raw name contains a known zone or vice versa.
	// Longest known name wins so "front_door_camera" resolves to front_door,
	// not a shorter accidental match; ties break lexicographically so the
	// result is deterministic.
	var best string
	for known := range c.zones {
		if !strings.Contains(name, known) && !strings.Contains(known, name) {
			continue
		}
		if len(known) > len(best) || (len(known) == len(best) && known < best) {
			best = known
		}
	}
	if best != "" {
		return c.zones[best]
	}
	return Zone{Name: name, Type: Unknown, BaseRisk: neutralRisk}
}

// Escalation returns a multiplier >= 1.0 for a location sequence, evaluated
// left to right in event order. A single zone or no recognized transition
// yields exactly 1.0.
func (c *Classifier) Escalation(sequence []string) float64 {
	if len(sequence) < 2 {
		return 1.0
	}

	mult := 1.0
	perimeterSeen := make(map[string]struct{})

	prev := c.Classify(sequence[0])
	if prev.Type == Perimeter {
		perimeterSeen[prev.Name] = struct{}{}
	}
	for _, raw := range sequence[1:] {
		cur := c.Classify(raw)
		if cur.Type == Perimeter {
			perimeterSeen[cur.Name] = struct{}{}
		}
		switch {
		case prev.Type == Perimeter && cur.Type == Entry:
			mult *= perimeterToEntryFactor
		case prev.Type == Entry && cur.Type == Interior:
			mult *= entryToInteriorFactor
		}
		prev = cur
	}

	// Prowling: sweeping three or more distinct perimeter zones.
	if len(perimeterSeen) >= 3 {
		mult *= perimeterSweepFactor
	}

	if mult > maxEscalation {
		mult = maxEscalation
	}
	return mult
}
