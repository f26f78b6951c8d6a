package worker

import (
	"testing"
	"time"
)

func TestClipName(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := ClipName(42, 7, ts)
	want := "event_42_camera_7_20260314_092653.mp4"
	if got != want {
		t.Fatalf("ClipName = %q, want %q", got, want)
	}
}

func TestClipNameConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, loc)
	got := ClipName(1, 1, ts)
	want := "event_1_camera_1_20260314_090000.mp4"
	if got != want {
		t.Fatalf("ClipName = %q, want %q", got, want)
	}
}

func TestClipWindowClamping(t *testing.T) {
	tests := []struct {
		name               string
		eventFrame, frames int
		fps                float64
		padding            int
		wantStart, wantEnd int
	}{
		{"middle of source", 500, 1000, 30, 5, 350, 650},
		{"near start clamps to zero", 50, 1000, 30, 5, 0, 200},
		{"near end clamps to frame count", 950, 1000, 30, 5, 800, 1000},
		{"short source clamps both ends", 10, 20, 30, 5, 0, 20},
		{"event on last frame", 999, 1000, 30, 5, 849, 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ClipWindow(tc.eventFrame, tc.frames, tc.fps, tc.padding)
			if start != tc.wantStart || end != tc.wantEnd {
				t.Fatalf("window = [%d,%d), want [%d,%d)", start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestClipWindowLengthIsHalfOpen(t *testing.T) {
	// An unclamped window holds exactly 2*pad frames, not 2*pad+1.
	start, end := ClipWindow(500, 1000, 30, 5)
	if end-start != 300 {
		t.Fatalf("window length = %d, want 300", end-start)
	}
}
