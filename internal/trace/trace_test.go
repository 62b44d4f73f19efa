package trace

import (
	"math"
	"testing"

	"github.com/banshee-data/cloud2mesh/internal/crit"
	"github.com/banshee-data/cloud2mesh/internal/geom"
)

func hexagon(r float64) []geom.Point2 {
	pts := make([]geom.Point2, 6)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / 6
		pts[i] = geom.Point2{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return pts
}

func TestTraceHexagonClosesInOrder(t *testing.T) {
	t.Parallel()

	ctrds := hexagon(1)
	polys, crits, _ := Trace(0, ctrds, Params{SimplifyTolerance: 0.01, LengthPercentile: 1, MinChainPoints: 2})

	if len(polys) != 1 {
		t.Fatalf("got %d polylines, want 1", len(polys))
	}
	p := polys[0]
	if !p.Closed {
		t.Fatal("hexagon loop did not close")
	}
	if len(p.Points) != 6 {
		t.Fatalf("loop has %d points, want all 6", len(p.Points))
	}
	for _, c := range crits {
		t.Errorf("unexpected criticality: %v", c)
	}

	// All six vertices visited in ring order: each consecutive pair must be
	// adjacent on the hexagon (distance one side length).
	side := ctrds[0].Dist(ctrds[1])
	for i := range p.Points {
		j := (i + 1) % len(p.Points)
		if d := p.Points[i].Dist(p.Points[j]); math.Abs(d-side) > 1e-9 {
			t.Fatalf("points %d and %d are %v apart, want side length %v", i, j, d, side)
		}
	}
}

func TestTraceIsolatedPoint(t *testing.T) {
	t.Parallel()

	// A tight square loop plus one far-away stray.
	ctrds := []geom.Point2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 50, Y: 50}}
	polys, crits, _ := Trace(3, ctrds, Params{LengthPercentile: 1, MinChainPoints: 2})

	var isolated *crit.Criticality
	for i := range crits {
		if crits[i].Kind == crit.IsolatedPoint {
			isolated = &crits[i]
		}
	}
	if isolated == nil {
		t.Fatal("stray centroid not reported as isolated")
	}
	if isolated.Slice != 3 {
		t.Fatalf("criticality slice = %d, want 3", isolated.Slice)
	}
	if len(isolated.Coords) != 1 || isolated.Coords[0] != (geom.Point2{X: 50, Y: 50}) {
		t.Fatalf("criticality coords = %v, want [(50, 50)]", isolated.Coords)
	}

	// The stray is still returned as a degenerate polyline for the editor.
	degenerates := 0
	for _, p := range polys {
		if p.Degenerate() {
			degenerates++
		}
	}
	if degenerates != 1 {
		t.Fatalf("got %d degenerate polylines, want 1", degenerates)
	}
}

func TestTraceUnclosedChain(t *testing.T) {
	t.Parallel()

	// A straight run whose ends are far apart: cannot close.
	var ctrds []geom.Point2
	for i := 0; i < 8; i++ {
		ctrds = append(ctrds, geom.Point2{X: float64(i), Y: 0})
	}
	polys, crits, _ := Trace(0, ctrds, Params{LengthPercentile: 1, MinChainPoints: 2})

	if len(polys) != 1 || polys[0].Closed {
		t.Fatalf("expected one open polyline, got %+v", polys)
	}
	found := false
	for _, c := range crits {
		if c.Kind == crit.UnclosedChain {
			found = true
			if len(c.Coords) != 2 {
				t.Fatalf("unclosed-chain coords = %v, want the two free ends", c.Coords)
			}
		}
	}
	if !found {
		t.Fatal("open chain not reported as unclosed")
	}
}

func TestTraceBranchpoint(t *testing.T) {
	t.Parallel()

	// A T junction: the centre has three immediate neighbours.
	ctrds := []geom.Point2{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0}, // horizontal run
		{X: 2, Y: 1}, {X: 2, Y: 2}, // vertical stub meeting at (2,0)
	}
	_, crits, _ := Trace(0, ctrds, Params{LengthPercentile: 1, MinChainPoints: 2})

	found := false
	for _, c := range crits {
		if c.Kind == crit.Branchpoint && len(c.Coords) == 1 && c.Coords[0] == (geom.Point2{X: 2, Y: 0}) {
			found = true
		}
	}
	if !found {
		t.Fatalf("T junction not reported as branchpoint: %v", crits)
	}
}

func TestTraceStraightestContinuation(t *testing.T) {
	t.Parallel()

	// Walking right along y=0, the next wall point straight ahead is
	// slightly further than a nearer point off to the side. The tracer
	// must continue straight.
	ctrds := []geom.Point2{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0},
		{X: 3.2, Y: 0},   // straight ahead, distance 1.2
		{X: 2.4, Y: 0.9}, // off to the side, distance 0.97 from (2,0)
	}
	polys, _, _ := Trace(0, ctrds, Params{MaxConnect: 1.5, LengthPercentile: 1, MinChainPoints: 2})

	var main Polyline
	for _, p := range polys {
		if len(p.Points) >= 4 {
			main = p
		}
	}
	if len(main.Points) < 4 {
		t.Fatalf("main chain too short: %+v", polys)
	}
	if main.Points[3] != (geom.Point2{X: 3.2, Y: 0}) {
		t.Fatalf("chain continued to %v, want straight continuation (3.2, 0)", main.Points[3])
	}
}

func TestTraceEmptyInput(t *testing.T) {
	t.Parallel()

	polys, crits, notes := Trace(0, nil, Params{})
	if polys != nil || crits != nil || notes != nil {
		t.Fatalf("empty input produced output: %v %v %v", polys, crits, notes)
	}
}

func TestSimplifyKeepsLoops(t *testing.T) {
	t.Parallel()

	// Simplification must not collapse a closed loop below a triangle.
	loop := Polyline{Points: []geom.Point2{{X: 0, Y: 0}, {X: 1, Y: 0.0001}, {X: 2, Y: 0}, {X: 1, Y: 0.0002}}, Closed: true}
	got := simplify(loop, 0.01)
	if !got.Closed || len(got.Points) < 3 {
		t.Fatalf("loop collapsed: %+v", got)
	}
}
