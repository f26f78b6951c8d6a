package domain

// ChunkMeta describes one chunk produced by splitting an uploaded file or a
// live stream segment. Path points at a self-contained mp4 on local disk.
type ChunkMeta struct {
	Index      int     `json:"index"`
	Path       string  `json:"path"`
	CameraID   int64   `json:"cameraId"`
	JobID      JobID   `json:"jobId"`
	StartFrame int     `json:"startFrame"`
	FrameCount int     `json:"frameCount"`
	FPS        float64 `json:"fps"`
}
