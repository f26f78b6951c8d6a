package inference

import (
	"sort"

	"visionstream/internal/domain"
)

const (
	// iouThreshold is the minimum overlap for a detection to continue an
	// existing track.
	iouThreshold = 0.3
	// maxDisappeared is how many consecutive unmatched updates a track
	// survives before it is dropped.
	maxDisappeared = 5
)

// Tracker assigns stable ids to detections across frames by greedy IoU
// matching. One tracker serves one job; it is not safe for concurrent use.
type Tracker struct {
	tracks map[int]*domain.Track
	nextID int
}

func NewTracker() *Tracker {
	return &Tracker{tracks: make(map[int]*domain.Track), nextID: 1}
}

// Update matches the frame's detections against live tracks and returns the
// tracks touched this frame. Each detection extends the best-overlapping
// track of the same class; ties on IoU go to the lowest track id. Unmatched
// detections start new tracks; tracks unmatched for more than maxDisappeared
// consecutive updates are dropped.
func (t *Tracker) Update(frameNumber int, detections []domain.Detection) []domain.Track {
	matched := make(map[int]bool, len(t.tracks))
	var touched []int

	for _, det := range detections {
		bestID := 0
		bestIoU := 0.0
		for id, track := range t.tracks {
			if matched[id] || track.ClassName != det.ClassName {
				continue
			}
			iou := track.BBox.IoU(det.BBox)
			if iou < iouThreshold {
				continue
			}
			if iou > bestIoU || (iou == bestIoU && (bestID == 0 || id < bestID)) {
				bestID = id
				bestIoU = iou
			}
		}

		if bestID != 0 {
			track := t.tracks[bestID]
			track.BBox = det.BBox
			track.LastSeenFrame = frameNumber
			track.DetectionCount++
			track.Disappeared = 0
			matched[bestID] = true
			touched = append(touched, bestID)
			continue
		}

		id := t.nextID
		t.nextID++
		t.tracks[id] = &domain.Track{
			ID:             id,
			ClassName:      det.ClassName,
			BBox:           det.BBox,
			FirstSeenFrame: frameNumber,
			LastSeenFrame:  frameNumber,
			DetectionCount: 1,
		}
		matched[id] = true
		touched = append(touched, id)
	}

	for id, track := range t.tracks {
		if matched[id] {
			continue
		}
		track.Disappeared++
		if track.Disappeared > maxDisappeared {
			delete(t.tracks, id)
		}
	}

	sort.Ints(touched)
	out := make([]domain.Track, 0, len(touched))
	for _, id := range touched {
		out = append(out, *t.tracks[id])
	}
	return out
}

// Active returns every live track.
func (t *Tracker) Active() []domain.Track {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.tracks[id])
	}
	return out
}

// Reset drops all tracks and restarts id assignment at 1.
func (t *Tracker) Reset() {
	t.tracks = make(map[int]*domain.Track)
	t.nextID = 1
}
