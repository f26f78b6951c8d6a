package domain

import (
	"errors"
	"time"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelInApp   Channel = "in_app"
)

type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertSent         AlertStatus = "sent"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is one pending notification minted by the event emitter and consumed
// by a notification dispatcher outside this service.
type Alert struct {
	ID             int64       `json:"id"`
	EventID        int64       `json:"eventId"`
	RuleID         int64       `json:"ruleId"`
	Channel        Channel     `json:"channel"`
	Recipient      string      `json:"recipient"`
	Subject        string      `json:"subject,omitempty"`
	Message        string      `json:"message,omitempty"`
	Status         AlertStatus `json:"status"`
	SentAt         time.Time   `json:"sentAt,omitzero"`
	Acknowledged   bool        `json:"acknowledged"`
	AcknowledgedBy int64       `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt time.Time   `json:"acknowledgedAt,omitzero"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Validate checks domain invariants for Alert.
func (a Alert) Validate() error {
	if a.EventID <= 0 {
		return errors.New("event id is required")
	}
	switch a.Channel {
	case ChannelEmail, ChannelWebhook, ChannelInApp:
	default:
		return errors.New("invalid channel: " + string(a.Channel))
	}
	if a.Recipient == "" {
		return errors.New("recipient is required")
	}
	switch a.Status {
	case AlertPending, AlertSent, AlertAcknowledged, AlertResolved:
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(a.Status))
	}
	return nil
}
