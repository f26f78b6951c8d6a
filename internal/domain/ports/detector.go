package ports

import (
	"context"

	"visionstream/internal/domain"
)

// Detector runs object detection on a single frame. Implementations apply
// their own confidence threshold; callers receive only detections at or above
// it. An empty frame yields an empty slice, not an error.
type Detector interface {
	Detect(ctx context.Context, frame domain.Frame) ([]domain.Detection, error)
	Ready(ctx context.Context) error
}
