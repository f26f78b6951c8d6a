package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
	"visionstream/internal/metrics"
)

// Emitter persists firings as events, extracts evidence clips and fans out
// alerts per the rule's targets.
type Emitter struct {
	events    ports.EventRepository
	alerts    ports.AlertRepository
	clips     *ClipExtractor
	broadcast func(domain.Event)
	logger    *slog.Logger
	now       func() time.Time
}

func NewEmitter(events ports.EventRepository, alerts ports.AlertRepository, clips *ClipExtractor, broadcast func(domain.Event), logger *slog.Logger) *Emitter {
	if broadcast == nil {
		broadcast = func(domain.Event) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		events:    events,
		alerts:    alerts,
		clips:     clips,
		broadcast: broadcast,
		logger:    logger,
		now:       time.Now,
	}
}

// ClipSpec points the extractor at the file evidence is cut from. Frame is
// relative to the first frame of Path; FrameCount bounds the cut.
type ClipSpec struct {
	Path       string
	Frame      int
	FrameCount int
	FPS        float64
}

// Emit turns one firing into a persisted event. Clip extraction is best
// effort: a failed cut logs a warning and the event stands without a clip.
func (e *Emitter) Emit(ctx context.Context, firing Firing, cameraID int64, clip ClipSpec) (domain.Event, error) {
	frame := firing.FrameNumber
	event := domain.Event{
		CameraID:    cameraID,
		EventType:   firing.Rule.EventType,
		EventCode:   firing.Rule.EventCode,
		Severity:    SeverityFor(firing.Rule.EventType),
		Confidence:  firing.Confidence,
		Timestamp:   e.now(),
		FrameNumber: &frame,
		Metadata: map[string]any{
			"rule_id":   firing.Rule.ID,
			"rule_name": firing.Rule.Name,
			"track_ids": firing.TrackIDs,
		},
		Description: firing.Rule.Description,
	}
	created, err := e.events.Create(ctx, event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("persist event: %w", err)
	}
	metrics.EventsEmittedTotal.WithLabelValues(created.EventCode).Inc()

	if e.clips != nil && clip.FrameCount > 0 && clip.Path != "" {
		clipPath, err := e.clips.Extract(ctx, clip.Path, created.ID, cameraID, clip.Frame, clip.FrameCount, clip.FPS, created.Timestamp)
		if err != nil {
			e.logger.Warn("clip extraction failed", "event_id", created.ID, "error", err)
		} else if clipPath != "" {
			created.ClipPath = clipPath
			if err := e.events.UpdateClipPath(ctx, created.ID, clipPath); err != nil {
				e.logger.Warn("clip path update failed", "event_id", created.ID, "error", err)
			}
		}
	}

	for _, target := range firing.Rule.AlertTargets {
		alert := domain.Alert{
			EventID:   created.ID,
			RuleID:    firing.Rule.ID,
			Channel:   target.Channel,
			Recipient: target.Recipient,
			Subject:   target.Subject,
			Message:   target.Message,
			Status:    domain.AlertPending,
			CreatedAt: e.now(),
		}
		if _, err := e.alerts.Create(ctx, alert); err != nil {
			e.logger.Warn("alert creation failed", "event_id", created.ID, "channel", target.Channel, "error", err)
			continue
		}
		metrics.AlertsCreatedTotal.WithLabelValues(string(target.Channel)).Inc()
	}

	e.broadcast(created)
	return created, nil
}
