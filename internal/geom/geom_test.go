package geom

import (
	"math"
	"testing"
)

func TestSignedArea(t *testing.T) {
	t.Parallel()

	square := []Point2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if got := SignedArea(square); got != 1 {
		t.Fatalf("CCW unit square area = %v, want 1", got)
	}

	// Clockwise winding flips the sign.
	cw := []Point2{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	if got := SignedArea(cw); got != -1 {
		t.Fatalf("CW unit square area = %v, want -1", got)
	}

	// Closing vertex repeated must not change the result.
	closed := append(append([]Point2{}, square...), square[0])
	if got := SignedArea(closed); got != 1 {
		t.Fatalf("closed ring area = %v, want 1", got)
	}
}

func TestPointInRing(t *testing.T) {
	t.Parallel()

	ring := []Point2{{0, 0}, {4, 0}, {4, 4}, {0, 4}}

	cases := []struct {
		name string
		p    Point2
		want bool
	}{
		{"centre", Point2{2, 2}, true},
		{"outside right", Point2{5, 2}, false},
		{"outside above", Point2{2, 5}, false},
		{"near corner inside", Point2{0.1, 0.1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PointInRing(tc.p, ring); got != tc.want {
				t.Fatalf("PointInRing(%v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestSegIntersect(t *testing.T) {
	t.Parallel()

	t.Run("crossing", func(t *testing.T) {
		p, ok := SegIntersect(Point2{0, 0}, Point2{2, 2}, Point2{0, 2}, Point2{2, 0})
		if !ok {
			t.Fatal("expected crossing")
		}
		if math.Abs(p.X-1) > 1e-12 || math.Abs(p.Y-1) > 1e-12 {
			t.Fatalf("intersection = %v, want (1,1)", p)
		}
	})

	t.Run("shared endpoint is not a crossing", func(t *testing.T) {
		if _, ok := SegIntersect(Point2{0, 0}, Point2{1, 1}, Point2{1, 1}, Point2{2, 0}); ok {
			t.Fatal("endpoint touch reported as crossing")
		}
	})

	t.Run("disjoint parallel", func(t *testing.T) {
		if _, ok := SegIntersect(Point2{0, 0}, Point2{1, 0}, Point2{0, 1}, Point2{1, 1}); ok {
			t.Fatal("parallel segments reported as crossing")
		}
	})

	t.Run("collinear overlap", func(t *testing.T) {
		p, ok := SegIntersect(Point2{0, 0}, Point2{2, 0}, Point2{1, 0}, Point2{3, 0})
		if !ok {
			t.Fatal("expected collinear overlap to report a crossing")
		}
		if math.Abs(p.X-1.5) > 1e-12 || p.Y != 0 {
			t.Fatalf("overlap midpoint = %v, want (1.5,0)", p)
		}
	})
}

func TestSimplifyDP(t *testing.T) {
	t.Parallel()

	// A straight run with a tiny wiggle collapses to its endpoints.
	pts := []Point2{{0, 0}, {1, 0.001}, {2, -0.001}, {3, 0}}
	got := SimplifyDP(pts, 0.01)
	if len(got) != 2 || got[0] != pts[0] || got[1] != pts[3] {
		t.Fatalf("SimplifyDP = %v, want endpoints only", got)
	}

	// A genuine corner survives.
	corner := []Point2{{0, 0}, {1, 0}, {1, 1}}
	if got := SimplifyDP(corner, 0.01); len(got) != 3 {
		t.Fatalf("corner simplified away: %v", got)
	}
}

func TestTurnAngle(t *testing.T) {
	t.Parallel()

	if a := TurnAngle(Point2{0, 0}, Point2{1, 0}, Point2{2, 0}); a != 0 {
		t.Fatalf("straight turn angle = %v, want 0", a)
	}
	if a := TurnAngle(Point2{0, 0}, Point2{1, 0}, Point2{1, 1}); math.Abs(a-math.Pi/2) > 1e-12 {
		t.Fatalf("right-angle turn = %v, want pi/2", a)
	}
}

func TestBoundsUnion(t *testing.T) {
	t.Parallel()

	a := BoundsOf([]Point2{{0, 0}, {1, 2}})
	b := BoundsOf([]Point2{{-1, 1}, {0.5, 3}})
	u := a.Union(b)
	want := Rect2{MinX: -1, MinY: 0, MaxX: 1, MaxY: 3}
	if u != want {
		t.Fatalf("union = %+v, want %+v", u, want)
	}
	if !EmptyRect2().IsEmpty() {
		t.Fatal("EmptyRect2 not empty")
	}
}
