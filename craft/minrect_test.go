package craft

import (
	"image"
	"math"
	"testing"
)

func TestConvexHull(t *testing.T) {
	pts := []image.Point{
		{0, 0}, {2, 0}, {4, 0}, {4, 4}, {0, 4}, {2, 2}, {1, 3}, {4, 0},
	}
	hull := convexHull(pts)

	if len(hull) != 4 {
		t.Fatalf("hull: got %v, want 4 corners", hull)
	}
	if hull[0] != image.Pt(0, 0) {
		t.Errorf("hull start: got %v", hull[0])
	}
	seen := map[image.Point]bool{}
	for _, p := range hull {
		seen[p] = true
	}
	for _, p := range []image.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}} {
		if !seen[p] {
			t.Errorf("missing corner %v in %v", p, hull)
		}
	}
}

func TestMinAreaRect_AxisAligned(t *testing.T) {
	var pts []image.Point
	for y := 2; y <= 7; y++ {
		for x := 3; x <= 12; x++ {
			pts = append(pts, image.Pt(x, y))
		}
	}
	box := cornersToBox(minAreaRect(pts))

	want := Box{TopLeft: image.Pt(6, 4), BottomRight: image.Pt(24, 14)}
	if box != want {
		t.Errorf("got %v, want %v", box, want)
	}
}

func TestMinAreaRect_Rotated(t *testing.T) {
	// 45 度方向的菱形, 最小外接矩形面积应小于轴对齐矩形
	pts := []image.Point{{10, 0}, {20, 10}, {10, 20}, {0, 10}}
	rect := minAreaRect(pts)

	side := func(a, b pointF) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }
	area := side(rect[0], rect[1]) * side(rect[1], rect[2])
	if math.Abs(area-200) > 1e-6 {
		t.Errorf("area: got %v, want 200", area)
	}
}

func TestMinAreaRect_Degenerate(t *testing.T) {
	if r := minAreaRect(nil); r != [4]pointF{} {
		t.Errorf("empty: got %v", r)
	}

	r := minAreaRect([]image.Point{{5, 7}, {5, 7}})
	for _, p := range r {
		if p != (pointF{5, 7}) {
			t.Errorf("single point: got %v", r)
		}
	}

	box := cornersToBox(minAreaRect([]image.Point{{1, 1}, {6, 1}, {3, 1}}))
	if box.TopLeft != image.Pt(2, 2) || box.BottomRight != image.Pt(12, 2) {
		t.Errorf("collinear: got %v", box)
	}
}

func TestTruncSnap(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{3.0, 3},
		{2.9999999999, 3},
		{2.7, 2},
		{-0.5, 0},
		{-1.0000000001, -1},
		{-1.7, -1},
	}
	for _, tt := range tests {
		if got := truncSnap(tt.in); got != tt.want {
			t.Errorf("truncSnap(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
