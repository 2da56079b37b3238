package zone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Front Door", "front_door"},
		{"front-door", "front_door"},
		{"  BACK_DOOR  ", "back_door"},
		{"living/room", "living_room"},
		{"porch ", "porch"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil, nil)
	cases := []struct {
		raw      string
		wantName string
		wantType Type
	}{
		{"front_door", "front_door", Entry},
		{"Front Door", "front_door", Entry},
		{"frontdoor", "front_door", Entry},     // alias
		{"backyard camera", "backyard", Perimeter}, // partial
		{"living_room", "living_room", Interior},
		{"street", "street", Public},
		{"submarine", "submarine", Unknown},
		{"", "unknown", Unknown},
	}
	for _, tc := range cases {
		z := c.Classify(tc.raw)
		if z.Name != tc.wantName || z.Type != tc.wantType {
			t.Errorf("Classify(%q) = {%s %s}, want {%s %s}", tc.raw, z.Name, z.Type, tc.wantName, tc.wantType)
		}
	}
}

func TestClassify_UnknownIsNeutral(t *testing.T) {
	c := NewClassifier(nil, nil)
	if r := c.Classify("submarine").BaseRisk; r != 0.5 {
		t.Fatalf("unknown risk = %v, want 0.5", r)
	}
}

func TestClassify_Overrides(t *testing.T) {
	c := NewClassifier(
		[]Zone{{Name: "Wine Cellar", Type: Interior, BaseRisk: 0.42}},
		map[string]string{"cellar": "wine_cellar"},
	)
	z := c.Classify("cellar")
	if z.Name != "wine_cellar" || z.BaseRisk != 0.42 {
		t.Fatalf("override alias lookup = %+v", z)
	}
}

func TestClassify_RiskOrdering(t *testing.T) {
	// Entry > Perimeter > Interior > Public in isolation.
	c := NewClassifier(nil, nil)
	entry := c.Classify("front_door").BaseRisk
	perimeter := c.Classify("backyard").BaseRisk
	interior := c.Classify("living_room").BaseRisk
	public := c.Classify("street").BaseRisk
	if !(entry > perimeter && perimeter > interior && interior > public) {
		t.Fatalf("risk ordering violated: entry=%v perimeter=%v interior=%v public=%v",
			entry, perimeter, interior, public)
	}
}

func TestEscalation(t *testing.T) {
	c := NewClassifier(nil, nil)
	cases := []struct {
		name string
		seq  []string
		min  float64 // result must be strictly greater
		max  float64
	}{
		{"perimeter to entry", []string{"backyard", "back_door"}, 1.5, 3.0},
		{"entry to interior breach", []string{"front_door", "living_room"}, 1.8, 3.0},
		{"full approach", []string{"backyard", "back_door", "living_room"}, 1.8, 3.0},
		{"perimeter sweep", []string{"backyard", "side_yard", "front_yard"}, 1.0, 1.5},
	}
	for _, tc := range cases {
		got := c.Escalation(tc.seq)
		if got <= tc.min || got > tc.max {
			t.Errorf("%s: Escalation(%v) = %v, want (%v, %v]", tc.name, tc.seq, got, tc.min, tc.max)
		}
	}
}

func TestEscalation_NoTransition(t *testing.T) {
	c := NewClassifier(nil, nil)
	for _, seq := range [][]string{
		{"living_room"},
		{},
		{"living_room", "kitchen"},
		{"street", "sidewalk"},
	} {
		if got := c.Escalation(seq); got != 1.0 {
			t.Errorf("Escalation(%v) = %v, want exactly 1.0", seq, got)
		}
	}
}

func TestEscalation_Capped(t *testing.T) {
	c := NewClassifier(nil, nil)
	seq := []string{"backyard", "back_door", "living_room", "backyard", "back_door", "living_room"}
	if got := c.Escalation(seq); got > maxEscalation {
		t.Fatalf("Escalation = %v, exceeds cap %v", got, maxEscalation)
	}
}
