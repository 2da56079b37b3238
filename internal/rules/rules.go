// Package rules evaluates a prioritized set of compiled risk rules against
// an event's feature map.
package rules

import (
	"fmt"
	"sort"

	"github.com/homewatch-io/homewatch/internal/event"
	"github.com/homewatch-io/homewatch/internal/feature"
)

// Def is the configuration form of a rule. Expressions reference features
// by bare name ("sound_level >= 85"), event fields ("event.type"), or raw
// metadata ("meta.sound_type").
type Def struct {
	ID         string  `yaml:"id" json:"id"`
	Expression string  `yaml:"expression" json:"expression"`
	Risk       float64 `yaml:"risk" json:"risk"`
	Reasoning  string  `yaml:"reasoning" json:"reasoning"`
}

// Result is the rule branch's verdict for one event.
type Result struct {
	RiskScore float64  // combined risk in [0,1]
	Factors   []string // matched rule IDs, highest risk first
}

// neutralRisk is reported when no rule matches: the rule branch then
// contributes nothing to the fused log-odds.
const neutralRisk = 0.5

type rule struct {
	def      Def
	compiled expr
}

// Engine holds the compiled rule set. Immutable after construction;
// hot-reload builds a new Engine.
type Engine struct {
	rules []rule
}

// DefaultDefs is the shipped rule set, overridable via configuration.
func DefaultDefs() []Def {
	return []Def{
		{ID: "critical_event", Expression: "is_critical_type == 1", Risk: 0.95,
			Reasoning: "life-safety sensor category"},
		{ID: "glass_sound", Expression: `meta.sound_type == "glass_breaking"`, Risk: 0.90,
			Reasoning: "audio classified as breaking glass"},
		{ID: "forced_opening", Expression: "forced == true AND is_opening == 1", Risk: 0.85,
			Reasoning: "door or window forced open"},
		{ID: "interior_breach_away", Expression: "is_away == 1 AND zone_interior == 1 AND is_motion == 1", Risk: 0.75,
			Reasoning: "interior motion while nobody is home"},
		{ID: "night_entry_activity", Expression: "is_night == 1 AND is_away == 1 AND zone_risk >= 0.6", Risk: 0.70,
			Reasoning: "night activity at a high-risk zone while away"},
		{ID: "escalating_approach", Expression: "escalation > 1.5", Risk: 0.70,
			Reasoning: "movement escalated across zone tiers"},
		{ID: "loud_noise", Expression: "sound_level >= 85", Risk: 0.65,
			Reasoning: "sound level above the alert threshold"},
		{ID: "perimeter_night_motion", Expression: "is_night == 1 AND zone_perimeter == 1 AND is_motion == 1", Risk: 0.60,
			Reasoning: "perimeter motion at night"},
		{ID: "entry_motion_away", Expression: "is_away == 1 AND zone_entry == 1 AND is_motion == 1", Risk: 0.55,
			Reasoning: "motion at an entry point while away"},
		{ID: "multi_sensor_event", Expression: "sensors >= 3", Risk: 0.50,
			Reasoning: "several sensors triggered together"},
	}
}

// NewEngine compiles the given definitions. An empty slice compiles the
// default rule set.
func NewEngine(defs []Def) (*Engine, error) {
	if len(defs) == 0 {
		defs = DefaultDefs()
	}
	e := &Engine{rules: make([]rule, 0, len(defs))}
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("rules[%d]: id is required", i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("rules[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Risk < 0 || d.Risk > 1 {
			return nil, fmt.Errorf("rule %s: risk %v outside [0,1]", d.ID, d.Risk)
		}
		compiled, err := parse(d.Expression)
		if err != nil {
			return nil, fmt.Errorf("rule %s: parse %q: %w", d.ID, d.Expression, err)
		}
		e.rules = append(e.rules, rule{def: d, compiled: compiled})
	}
	return e, nil
}

// Evaluate runs every rule against the event and combines matched risks with
// noisy-or, so independent signals stack without exceeding 1. Rules that
// fail to evaluate are skipped: the rule branch is total.
func (e *Engine) Evaluate(ev *event.Event, features feature.Map) Result {
	scope := &evalScope{ev: ev, features: features}

	type hit struct {
		id   string
		risk float64
	}
	var hits []hit
	survival := 1.0
	for _, r := range e.rules {
		ok, err := eval(r.compiled, scope)
		if err != nil || !ok {
			continue
		}
		survival *= 1 - r.def.Risk
		hits = append(hits, hit{id: r.def.ID, risk: r.def.Risk})
	}
	if len(hits) == 0 {
		return Result{RiskScore: neutralRisk}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].risk > hits[j].risk })
	factors := make([]string, len(hits))
	for i, h := range hits {
		factors[i] = h.id
	}
	return Result{RiskScore: 1 - survival, Factors: factors}
}

// Size returns the number of compiled rules.
func (e *Engine) Size() int {
	return len(e.rules)
}
