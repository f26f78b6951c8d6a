package domain

import "time"

// EventFilter narrows event listings. Zero values mean "no constraint".
type EventFilter struct {
	CameraID     int64
	EventType    EventType
	Severity     Severity
	Acknowledged *bool
	Since        time.Time
	Until        time.Time
	Limit        int64
	Offset       int64
}

// CameraFilter narrows camera listings.
type CameraFilter struct {
	Status   CameraStatus
	Location string
	Limit    int64
	Offset   int64
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	ActiveOnly bool
	CameraID   int64
	Limit      int64
	Offset     int64
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	EventID int64
	Status  AlertStatus
	Channel Channel
	Limit   int64
	Offset  int64
}
