package domain

// Track is the identity assigned to a detection across frames via IoU
// matching. Tracks are owned by one worker's tracker for the duration of a
// chunk and are never persisted.
type Track struct {
	ID             int    `json:"trackId"`
	ClassName      string `json:"className"`
	BBox           BBox   `json:"bbox"`
	FirstSeenFrame int    `json:"firstSeenFrame"`
	LastSeenFrame  int    `json:"lastSeenFrame"`
	DetectionCount int    `json:"detectionCount"`
	Disappeared    int    `json:"-"`
}

// Age is the number of frames since the track was first seen.
func (t Track) Age() int {
	return t.LastSeenFrame - t.FirstSeenFrame
}
