package mongo

import (
	"testing"
	"time"

	"visionstream/internal/domain"
)

func TestCameraDocRoundTrip(t *testing.T) {
	camera := domain.Camera{
		ID:         7,
		Name:       "loading dock",
		Location:   "warehouse-b",
		StreamURL:  "rtsp://cam7/stream",
		StreamType: domain.StreamRTSP,
		Status:     domain.CameraActive,
		Zones: []domain.Zone{
			{ID: "dock", Name: "dock area", Polygon: [][2]float64{{0, 0}, {100, 0}, {100, 100}}},
		},
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
		UpdatedAt: time.Unix(1_700_000_100, 0).UTC(),
	}
	got := cameraFromDoc(cameraToDoc(camera))
	if got.Name != camera.Name || got.StreamType != camera.StreamType || got.Status != camera.Status {
		t.Fatalf("round trip = %+v", got)
	}
	if len(got.Zones) != 1 || got.Zones[0].ID != "dock" || len(got.Zones[0].Polygon) != 3 {
		t.Fatalf("zones = %+v", got.Zones)
	}
	if !got.CreatedAt.Equal(camera.CreatedAt) {
		t.Fatalf("createdAt = %v", got.CreatedAt)
	}
}

func TestRuleDocRoundTripPreservesConditions(t *testing.T) {
	rule := domain.Rule{
		ID:                  3,
		Name:                "no helmet",
		EventCode:           "PPE_NO_HELMET",
		EventType:           domain.EventPPEViolation,
		IsActive:            true,
		ConfidenceThreshold: 0.7,
		CameraIDs:           []int64{1, 2},
		Conditions: []domain.Condition{
			domain.PPEAbsent{PPE: []string{"helmet"}},
			domain.InZone{ZoneID: "dock"},
		},
		AlertTargets: []domain.AlertTarget{
			{Channel: domain.ChannelWebhook, Recipient: "https://hooks.example.com/safety"},
		},
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
		UpdatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}

	doc, err := ruleToDoc(rule)
	if err != nil {
		t.Fatalf("toDoc: %v", err)
	}
	got, err := ruleFromDoc(doc)
	if err != nil {
		t.Fatalf("fromDoc: %v", err)
	}
	if len(got.Conditions) != 2 {
		t.Fatalf("got %d conditions, want 2", len(got.Conditions))
	}
	if got.Conditions[0].Kind() != "ppe_absent" || got.Conditions[1].Kind() != "in_zone" {
		t.Fatalf("condition kinds = %s, %s", got.Conditions[0].Kind(), got.Conditions[1].Kind())
	}
	if len(got.AlertTargets) != 1 || got.AlertTargets[0].Channel != domain.ChannelWebhook {
		t.Fatalf("alert targets = %+v", got.AlertTargets)
	}
	if got.ConfidenceThreshold != 0.7 {
		t.Fatalf("threshold = %v", got.ConfidenceThreshold)
	}
}

func TestEventQueryBuildsFilters(t *testing.T) {
	ack := true
	since := time.Unix(1_700_000_000, 0)
	q := eventQuery(domain.EventFilter{
		CameraID:     4,
		Severity:     domain.SeverityHigh,
		Acknowledged: &ack,
		Since:        since,
	})
	if q["cameraId"] != int64(4) {
		t.Fatalf("cameraId = %v", q["cameraId"])
	}
	if q["severity"] != "high" {
		t.Fatalf("severity = %v", q["severity"])
	}
	if q["acknowledged"] != true {
		t.Fatalf("acknowledged = %v", q["acknowledged"])
	}
	if _, ok := q["timestamp"]; !ok {
		t.Fatal("timestamp range missing")
	}
}

func TestEventQueryEmptyFilter(t *testing.T) {
	q := eventQuery(domain.EventFilter{})
	if len(q) != 0 {
		t.Fatalf("empty filter should build empty query, got %v", q)
	}
}

func TestEventDocRoundTrip(t *testing.T) {
	frame := 120
	event := domain.Event{
		ID:          9,
		CameraID:    4,
		EventType:   domain.EventPPEViolation,
		EventCode:   "PPE_NO_HELMET",
		Severity:    domain.SeverityHigh,
		Confidence:  0.91,
		Timestamp:   time.Unix(1_700_000_000, 0).UTC(),
		FrameNumber: &frame,
		ClipPath:    "/data/clips/event_9_camera_4_20231114_221320.mp4",
	}
	got := eventFromDoc(eventToDoc(event))
	if got.ID != 9 || got.EventCode != event.EventCode || got.Severity != event.Severity {
		t.Fatalf("round trip = %+v", got)
	}
	if got.FrameNumber == nil || *got.FrameNumber != 120 {
		t.Fatalf("frame number = %v", got.FrameNumber)
	}
	if !got.AcknowledgedAt.IsZero() {
		t.Fatal("unacknowledged event must keep zero AcknowledgedAt")
	}
}

func TestAlertDocRoundTrip(t *testing.T) {
	alert := domain.Alert{
		ID:        2,
		EventID:   9,
		RuleID:    3,
		Channel:   domain.ChannelEmail,
		Recipient: "safety@example.com",
		Status:    domain.AlertPending,
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	got := alertFromDoc(alertToDoc(alert))
	if got.Channel != domain.ChannelEmail || got.Status != domain.AlertPending {
		t.Fatalf("round trip = %+v", got)
	}
	if !got.SentAt.IsZero() {
		t.Fatal("unsent alert must keep zero SentAt")
	}
}
