package worker

import (
	"fmt"
	"sync"
	"time"

	"visionstream/internal/domain"
)

// severityFor maps event types to the severity recorded on emitted events.
var severityFor = map[domain.EventType]domain.Severity{
	domain.EventPPEViolation:    domain.SeverityHigh,
	domain.EventSafetyIncident:  domain.SeverityCritical,
	domain.EventSecurityEvent:   domain.SeverityHigh,
	domain.EventBehaviorAnomaly: domain.SeverityMedium,
	domain.EventEquipmentMisuse: domain.SeverityMedium,
}

// Firing is one rule match on one frame, before persistence.
type Firing struct {
	Rule        domain.Rule
	FrameNumber int
	Confidence  float64
	TrackIDs    []int
}

// RuleEngine evaluates active rules against per-frame evidence and debounces
// repeat firings. A (rule, track) pair fires at most once per debounce
// window; a rule that keeps holding on the same track stays silent until the
// window elapses.
type RuleEngine struct {
	mu        sync.Mutex
	debounce  time.Duration
	lastFired map[string]time.Time
	now       func() time.Time
}

func NewRuleEngine(debounce time.Duration) *RuleEngine {
	if debounce <= 0 {
		debounce = 10 * time.Second
	}
	return &RuleEngine{
		debounce:  debounce,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Evaluate runs every rule applying to the camera against the frame and
// returns the firings that survive confidence filtering and debouncing.
func (e *RuleEngine) Evaluate(rules []domain.Rule, cameraID int64, frameNumber int, input domain.ConditionInput) []Firing {
	var firings []Firing
	for _, rule := range rules {
		if !rule.IsActive || !rule.AppliesTo(cameraID) {
			continue
		}

		filtered := input
		if rule.ConfidenceThreshold > 0 {
			kept := make([]domain.Detection, 0, len(input.Detections))
			for _, d := range input.Detections {
				if d.Confidence >= rule.ConfidenceThreshold {
					kept = append(kept, d)
				}
			}
			filtered.Detections = kept
		}

		holds := len(rule.Conditions) > 0
		for _, cond := range rule.Conditions {
			if !cond.Holds(filtered) {
				holds = false
				break
			}
		}
		if !holds {
			continue
		}

		confidence := 0.0
		for _, d := range filtered.Detections {
			if d.Confidence > confidence {
				confidence = d.Confidence
			}
		}

		trackIDs := e.admit(rule.ID, filtered.Tracks)
		if trackIDs == nil {
			continue
		}
		firings = append(firings, Firing{
			Rule:        rule,
			FrameNumber: frameNumber,
			Confidence:  confidence,
			TrackIDs:    trackIDs,
		})
	}
	return firings
}

// admit applies the per-(rule, track) debounce. It returns the track ids
// whose windows have elapsed, or nil when every involved track is still
// suppressed. A frame with no tracks debounces on the rule alone.
func (e *RuleEngine) admit(ruleID int64, tracks []domain.Track) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if len(tracks) == 0 {
		key := fmt.Sprintf("%d:", ruleID)
		if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.debounce {
			return nil
		}
		e.lastFired[key] = now
		return []int{}
	}

	var admitted []int
	for _, track := range tracks {
		key := fmt.Sprintf("%d:%d", ruleID, track.ID)
		if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.debounce {
			continue
		}
		e.lastFired[key] = now
		admitted = append(admitted, track.ID)
	}
	return admitted
}

// SeverityFor returns the severity recorded for the event type.
func SeverityFor(t domain.EventType) domain.Severity {
	if s, ok := severityFor[t]; ok {
		return s
	}
	return domain.SeverityMedium
}
