package domain

import (
	"math"
	"testing"
)

func TestIoUIdentical(t *testing.T) {
	b := BBox{X1: 10, Y1: 10, X2: 50, Y2: 50}
	if got := b.IoU(b); math.Abs(got-1) > 1e-9 {
		t.Fatalf("IoU of identical boxes = %v, want 1", got)
	}
}

func TestIoUDisjoint(t *testing.T) {
	a := BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := BBox{X1: 20, Y1: 20, X2: 30, Y2: 30}
	if got := a.IoU(b); got != 0 {
		t.Fatalf("IoU of disjoint boxes = %v, want 0", got)
	}
}

func TestIoUTouchingEdges(t *testing.T) {
	a := BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := BBox{X1: 10, Y1: 0, X2: 20, Y2: 10}
	if got := a.IoU(b); got != 0 {
		t.Fatalf("IoU of edge-touching boxes = %v, want 0", got)
	}
}

func TestIoUDegenerate(t *testing.T) {
	a := BBox{X1: 5, Y1: 5, X2: 5, Y2: 5}
	b := BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if got := a.IoU(b); got != 0 {
		t.Fatalf("IoU with degenerate box = %v, want 0", got)
	}
}

func TestIoUSymmetricAndBounded(t *testing.T) {
	a := BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := BBox{X1: 5, Y1: 5, X2: 15, Y2: 15}
	ab, ba := a.IoU(b), b.IoU(a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Fatalf("IoU not symmetric: %v vs %v", ab, ba)
	}
	if ab <= 0 || ab >= 1 {
		t.Fatalf("partial overlap IoU = %v, want in (0,1)", ab)
	}
	// 25 overlap, 100+100-25 union
	want := 25.0 / 175.0
	if math.Abs(ab-want) > 1e-9 {
		t.Fatalf("IoU = %v, want %v", ab, want)
	}
}

func TestBBoxCenter(t *testing.T) {
	b := BBox{X1: 0, Y1: 10, X2: 10, Y2: 30}
	cx, cy := b.Center()
	if cx != 5 || cy != 20 {
		t.Fatalf("center = (%v,%v), want (5,20)", cx, cy)
	}
}
