package domain

// StreamInfo carries the probed properties of an opened video source. For live
// streams FrameCount is 0.
type StreamInfo struct {
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int     `json:"frameCount"`
}

// Frame is one decoded image read from a source. Data is packed RGB24,
// Width*Height*3 bytes, row-major.
type Frame struct {
	Number int
	Width  int
	Height int
	Data   []byte
}
