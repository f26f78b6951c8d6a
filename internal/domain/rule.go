package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Condition is a predicate over the detections and tracks of one frame.
// Conditions arrive as JSON at the API boundary and are parsed into typed
// values through the registry below.
type Condition interface {
	Kind() string
	Holds(input ConditionInput) bool
}

// ConditionInput is the per-frame evidence a condition is evaluated against.
type ConditionInput struct {
	Detections []Detection
	Tracks     []Track
	Zones      []Zone
}

// RequiredClass holds when at least one detection of the class is present.
type RequiredClass struct {
	Class string `json:"class"`
}

func (c RequiredClass) Kind() string { return "required_class" }

func (c RequiredClass) Holds(input ConditionInput) bool {
	for _, d := range input.Detections {
		if strings.EqualFold(d.ClassName, c.Class) {
			return true
		}
	}
	return false
}

// PPEAbsent holds when a person is present and none of the listed PPE classes
// are detected.
type PPEAbsent struct {
	PPE []string `json:"ppe"`
}

func (c PPEAbsent) Kind() string { return "ppe_absent" }

func (c PPEAbsent) Holds(input ConditionInput) bool {
	person := false
	for _, d := range input.Detections {
		if strings.EqualFold(d.ClassName, "person") {
			person = true
			break
		}
	}
	if !person {
		return false
	}
	for _, want := range c.PPE {
		for _, d := range input.Detections {
			if strings.EqualFold(d.ClassName, want) {
				return false
			}
		}
	}
	return true
}

// InZone holds when any detection's center lies inside the named zone polygon.
type InZone struct {
	ZoneID string `json:"zone_id"`
}

func (c InZone) Kind() string { return "in_zone" }

func (c InZone) Holds(input ConditionInput) bool {
	var zone *Zone
	for i := range input.Zones {
		if input.Zones[i].ID == c.ZoneID {
			zone = &input.Zones[i]
			break
		}
	}
	if zone == nil || len(zone.Polygon) < 3 {
		return false
	}
	for _, d := range input.Detections {
		cx, cy := d.BBox.Center()
		if pointInPolygon(cx, cy, zone.Polygon) {
			return true
		}
	}
	return false
}

// MinCount holds when at least Count detections of the class are present.
type MinCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

func (c MinCount) Kind() string { return "min_count" }

func (c MinCount) Holds(input ConditionInput) bool {
	n := 0
	for _, d := range input.Detections {
		if strings.EqualFold(d.ClassName, c.Class) {
			n++
		}
	}
	return n >= c.Count
}

// pointInPolygon uses the even-odd ray casting rule.
func pointInPolygon(x, y float64, polygon [][2]float64) bool {
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		xi, yi := polygon[i][0], polygon[i][1]
		xj, yj := polygon[j][0], polygon[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// conditionParsers maps a condition kind to its JSON decoder.
var conditionParsers = map[string]func(json.RawMessage) (Condition, error){
	"required_class": func(raw json.RawMessage) (Condition, error) {
		var c RequiredClass
		err := json.Unmarshal(raw, &c)
		return c, err
	},
	"ppe_absent": func(raw json.RawMessage) (Condition, error) {
		var c PPEAbsent
		err := json.Unmarshal(raw, &c)
		return c, err
	},
	"in_zone": func(raw json.RawMessage) (Condition, error) {
		var c InZone
		err := json.Unmarshal(raw, &c)
		return c, err
	},
	"min_count": func(raw json.RawMessage) (Condition, error) {
		var c MinCount
		err := json.Unmarshal(raw, &c)
		return c, err
	},
}

// ParseConditions decodes the wire form `[{"kind":"...", ...}, ...]` into
// typed conditions. Unknown kinds are an error so that misconfigured rules
// are rejected at write time rather than silently never firing.
func ParseConditions(raw json.RawMessage) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid conditions: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid conditions: %w", err)
	}

	conditions := make([]Condition, 0, len(items))
	for i, item := range items {
		parse, ok := conditionParsers[entries[i].Kind]
		if !ok {
			return nil, fmt.Errorf("unknown condition kind: %q", entries[i].Kind)
		}
		cond, err := parse(item)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", entries[i].Kind, err)
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// EncodeConditions is the inverse of ParseConditions.
func EncodeConditions(conditions []Condition) (json.RawMessage, error) {
	entries := make([]map[string]any, 0, len(conditions))
	for _, cond := range conditions {
		raw, err := json.Marshal(cond)
		if err != nil {
			return nil, err
		}
		entry := map[string]any{}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, err
		}
		entry["kind"] = cond.Kind()
		entries = append(entries, entry)
	}
	return json.Marshal(entries)
}

// AlertTarget configures one notification produced when a rule fires.
type AlertTarget struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Subject   string  `json:"subject,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Rule is an operator-defined predicate over detections that mints events.
type Rule struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	EventCode           string        `json:"eventCode"`
	EventType           EventType     `json:"eventType"`
	IsActive            bool          `json:"isActive"`
	ConfidenceThreshold float64       `json:"confidenceThreshold"`
	CameraIDs           []int64       `json:"cameraIds,omitempty"` // empty = all cameras
	Conditions          []Condition   `json:"-"`
	AlertTargets        []AlertTarget `json:"alertConfig,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// AppliesTo reports whether the rule's camera filter admits the camera.
func (r Rule) AppliesTo(cameraID int64) bool {
	if len(r.CameraIDs) == 0 {
		return true
	}
	for _, id := range r.CameraIDs {
		if id == cameraID {
			return true
		}
	}
	return false
}

// Validate checks domain invariants for Rule.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is required")
	}
	if strings.TrimSpace(r.EventCode) == "" {
		return errors.New("event code is required")
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return errors.New("confidence threshold must be in [0,1]")
	}
	return nil
}
