package inference

import (
	"testing"

	"visionstream/internal/domain"
)

func det(class string, x1, y1, x2, y2 float64) domain.Detection {
	return domain.Detection{
		ClassName:  class,
		Confidence: 0.9,
		BBox:       domain.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func TestTrackerAssignsIDsFromOne(t *testing.T) {
	tr := NewTracker()
	tracks := tr.Update(0, []domain.Detection{
		det("person", 0, 0, 10, 10),
		det("person", 100, 100, 110, 110),
	})
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].ID != 1 || tracks[1].ID != 2 {
		t.Fatalf("track ids = %d, %d, want 1, 2", tracks[0].ID, tracks[1].ID)
	}
}

func TestTrackerContinuesOverlappingTrack(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 100, 100)})

	// Shifted but well over the IoU threshold.
	tracks := tr.Update(1, []domain.Detection{det("person", 10, 10, 110, 110)})
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	if tracks[0].ID != 1 {
		t.Fatalf("track id = %d, want continuation of 1", tracks[0].ID)
	}
	if tracks[0].DetectionCount != 2 {
		t.Fatalf("detection count = %d, want 2", tracks[0].DetectionCount)
	}
	if tracks[0].LastSeenFrame != 1 {
		t.Fatalf("last seen = %d, want 1", tracks[0].LastSeenFrame)
	}
}

func TestTrackerLowOverlapStartsNewTrack(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 10, 10)})
	tracks := tr.Update(1, []domain.Detection{det("person", 9, 9, 19, 19)})
	if tracks[0].ID != 2 {
		t.Fatalf("low-IoU detection should start track 2, got %d", tracks[0].ID)
	}
}

func TestTrackerClassMismatchNeverMatches(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 100, 100)})
	tracks := tr.Update(1, []domain.Detection{det("forklift", 0, 0, 100, 100)})
	if tracks[0].ID != 2 {
		t.Fatalf("different class should start a new track, got id %d", tracks[0].ID)
	}
}

func TestTrackerDropsAfterMaxDisappeared(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 100, 100)})

	// Five silent updates: still alive.
	for frame := 1; frame <= maxDisappeared; frame++ {
		tr.Update(frame, nil)
	}
	if len(tr.Active()) != 1 {
		t.Fatal("track should survive maxDisappeared silent updates")
	}

	// One more: gone.
	tr.Update(maxDisappeared+1, nil)
	if len(tr.Active()) != 0 {
		t.Fatal("track should be dropped after exceeding maxDisappeared")
	}
}

func TestTrackerReappearWithinWindowKeepsID(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 100, 100)})
	tr.Update(1, nil)
	tr.Update(2, nil)

	tracks := tr.Update(3, []domain.Detection{det("person", 5, 5, 105, 105)})
	if tracks[0].ID != 1 {
		t.Fatalf("reappearance within window should keep id 1, got %d", tracks[0].ID)
	}
	if tracks[0].Disappeared != 0 {
		t.Fatalf("disappeared counter should reset, got %d", tracks[0].Disappeared)
	}
}

func TestTrackerTieBreaksOnLowestID(t *testing.T) {
	tr := NewTracker()
	// Two identical tracks of the same class.
	tr.Update(0, []domain.Detection{
		det("person", 0, 0, 100, 100),
		det("person", 0, 0, 100, 100),
	})
	tracks := tr.Update(1, []domain.Detection{det("person", 0, 0, 100, 100)})
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	if tracks[0].ID != 1 {
		t.Fatalf("equal IoU must match the lowest id, got %d", tracks[0].ID)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Update(0, []domain.Detection{det("person", 0, 0, 10, 10)})
	tr.Reset()
	if len(tr.Active()) != 0 {
		t.Fatal("reset should drop all tracks")
	}
	tracks := tr.Update(0, []domain.Detection{det("person", 0, 0, 10, 10)})
	if tracks[0].ID != 1 {
		t.Fatalf("reset should restart ids at 1, got %d", tracks[0].ID)
	}
}
