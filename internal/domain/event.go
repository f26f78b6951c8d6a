package domain

import (
	"errors"
	"time"
)

type EventType string

const (
	EventPPEViolation    EventType = "ppe_violation"
	EventSafetyIncident  EventType = "safety_incident"
	EventSecurityEvent   EventType = "security_event"
	EventBehaviorAnomaly EventType = "behavior_anomaly"
	EventEquipmentMisuse EventType = "equipment_misuse"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event is the persisted record of a rule firing. Immutable except for the
// acknowledgement triple.
type Event struct {
	ID             int64          `json:"id"`
	CameraID       int64          `json:"cameraId"`
	EventType      EventType      `json:"eventType"`
	EventCode      string         `json:"eventCode"`
	Severity       Severity       `json:"severity"`
	Confidence     float64        `json:"confidence"`
	Timestamp      time.Time      `json:"timestamp"`
	FrameNumber    *int           `json:"frameNumber,omitempty"`
	ClipPath       string         `json:"clipPath,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Description    string         `json:"description,omitempty"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedBy int64          `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt time.Time      `json:"acknowledgedAt,omitzero"`
}

// Validate checks domain invariants for Event.
func (e Event) Validate() error {
	if e.CameraID <= 0 {
		return errors.New("camera id is required")
	}
	if e.EventCode == "" {
		return errors.New("event code is required")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.New("confidence must be in [0,1]")
	}
	switch e.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	case "":
		return errors.New("severity is required")
	default:
		return errors.New("invalid severity: " + string(e.Severity))
	}
	return nil
}
