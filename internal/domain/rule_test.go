package domain

import (
	"encoding/json"
	"testing"
)

func TestParseConditionsRoundTrip(t *testing.T) {
	raw := json.RawMessage(`[
		{"kind":"required_class","class":"person"},
		{"kind":"ppe_absent","ppe":["helmet","vest"]},
		{"kind":"in_zone","zone_id":"loading-dock"},
		{"kind":"min_count","class":"person","count":3}
	]`)

	conds, err := ParseConditions(raw)
	if err != nil {
		t.Fatalf("ParseConditions: %v", err)
	}
	if len(conds) != 4 {
		t.Fatalf("got %d conditions, want 4", len(conds))
	}
	kinds := []string{"required_class", "ppe_absent", "in_zone", "min_count"}
	for i, k := range kinds {
		if conds[i].Kind() != k {
			t.Errorf("condition %d kind = %q, want %q", i, conds[i].Kind(), k)
		}
	}

	encoded, err := EncodeConditions(conds)
	if err != nil {
		t.Fatalf("EncodeConditions: %v", err)
	}
	again, err := ParseConditions(encoded)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again) != len(conds) {
		t.Fatalf("round trip lost conditions: %d vs %d", len(again), len(conds))
	}
}

func TestParseConditionsUnknownKind(t *testing.T) {
	_, err := ParseConditions(json.RawMessage(`[{"kind":"weather","rain":true}]`))
	if err == nil {
		t.Fatal("expected error for unknown condition kind")
	}
}

func TestRequiredClassHolds(t *testing.T) {
	c := RequiredClass{Class: "person"}
	in := ConditionInput{Detections: []Detection{{ClassName: "Person", Confidence: 0.9}}}
	if !c.Holds(in) {
		t.Fatal("expected match (case-insensitive)")
	}
	if c.Holds(ConditionInput{}) {
		t.Fatal("expected no match on empty detections")
	}
}

func TestPPEAbsentHolds(t *testing.T) {
	c := PPEAbsent{PPE: []string{"helmet"}}

	// Person without helmet: violation.
	in := ConditionInput{Detections: []Detection{{ClassName: "person"}}}
	if !c.Holds(in) {
		t.Fatal("person without helmet should hold")
	}

	// Person with helmet: no violation.
	in.Detections = append(in.Detections, Detection{ClassName: "helmet"})
	if c.Holds(in) {
		t.Fatal("person with helmet should not hold")
	}

	// No person at all: no violation.
	in = ConditionInput{Detections: []Detection{{ClassName: "forklift"}}}
	if c.Holds(in) {
		t.Fatal("no person should not hold")
	}
}

func TestInZoneHolds(t *testing.T) {
	zone := Zone{ID: "z1", Polygon: [][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}}
	c := InZone{ZoneID: "z1"}

	inside := ConditionInput{
		Detections: []Detection{{BBox: BBox{X1: 40, Y1: 40, X2: 60, Y2: 60}}},
		Zones:      []Zone{zone},
	}
	if !c.Holds(inside) {
		t.Fatal("detection centered inside the zone should hold")
	}

	outside := ConditionInput{
		Detections: []Detection{{BBox: BBox{X1: 200, Y1: 200, X2: 220, Y2: 220}}},
		Zones:      []Zone{zone},
	}
	if c.Holds(outside) {
		t.Fatal("detection outside the zone should not hold")
	}

	// Unknown zone never matches.
	missing := InZone{ZoneID: "nope"}
	if missing.Holds(inside) {
		t.Fatal("unknown zone should not hold")
	}
}

func TestMinCountHolds(t *testing.T) {
	c := MinCount{Class: "person", Count: 2}
	in := ConditionInput{Detections: []Detection{
		{ClassName: "person"},
		{ClassName: "person"},
		{ClassName: "car"},
	}}
	if !c.Holds(in) {
		t.Fatal("two persons should satisfy min_count 2")
	}
	in.Detections = in.Detections[:1]
	if c.Holds(in) {
		t.Fatal("one person should not satisfy min_count 2")
	}
}

func TestRuleAppliesTo(t *testing.T) {
	all := Rule{}
	if !all.AppliesTo(7) {
		t.Fatal("rule with no camera filter should apply to every camera")
	}
	scoped := Rule{CameraIDs: []int64{1, 2}}
	if !scoped.AppliesTo(2) || scoped.AppliesTo(3) {
		t.Fatal("camera filter mismatch")
	}
}
