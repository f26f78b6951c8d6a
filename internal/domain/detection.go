package domain

// BBox is an axis-aligned bounding box [x1,y1,x2,y2] in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IoU returns the intersection-over-union of two boxes, in [0,1].
// Disjoint boxes yield 0; identical non-degenerate boxes yield 1.
func (b BBox) IoU(other BBox) float64 {
	x1 := max(b.X1, other.X1)
	y1 := max(b.Y1, other.Y1)
	x2 := min(b.X2, other.X2)
	y2 := min(b.Y2, other.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + other.Area() - intersection
	if union == 0 {
		return 0
	}
	return intersection / union
}

// Detection is a single model output for one frame. Detections are ephemeral;
// they live only inside a worker's frame-processing scope unless promoted to
// an event.
type Detection struct {
	ClassID    int     `json:"classId"`
	ClassName  string  `json:"className"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}
