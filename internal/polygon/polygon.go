// Package polygon assembles a slice's polylines into simple closed rings
// usable for meshing: one outer boundary per polygon, with contained loops
// classified as holes.
//
// The assembler never repairs geometry. Anything it cannot use (a
// self-crossing loop, an open chain, an isolated point) is excluded and
// reported with exact coordinates so the editor can correct the source
// artifact. One bad loop never aborts the slice: the assembler returns
// every polygon it could build.
package polygon

import (
	"fmt"
	"sort"

	"github.com/banshee-data/cloud2mesh/internal/crit"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

// Ring is a simple closed boundary. Points do not repeat the closing
// vertex; winding is normalised by Assemble (outer CCW, holes CW).
type Ring []geom.Point2

// Area returns the absolute area of the ring.
func (r Ring) Area() float64 {
	a := geom.SignedArea(r)
	if a < 0 {
		return -a
	}
	return a
}

// Contains reports whether p lies inside the ring.
func (r Ring) Contains(p geom.Point2) bool {
	return geom.PointInRing(p, r)
}

// Polygon is one simple outer boundary with zero or more holes.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Contains reports whether p lies inside the polygon footprint, holes
// excluded.
func (pg Polygon) Contains(p geom.Point2) bool {
	if !pg.Outer.Contains(p) {
		return false
	}
	for _, h := range pg.Holes {
		if h.Contains(p) {
			return false
		}
	}
	return true
}

// Bounds returns the polygon's bounding rectangle.
func (pg Polygon) Bounds() geom.Rect2 {
	return geom.BoundsOf(pg.Outer)
}

// Assemble builds polygons from the slice's polylines. It returns however
// many valid polygons it could build plus the criticalities that excluded
// the rest.
func Assemble(sliceIdx int, polylines []trace.Polyline) ([]Polygon, []crit.Criticality) {
	var crits []crit.Criticality
	var rings []Ring

	for _, pl := range polylines {
		switch {
		case pl.Degenerate():
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.IsolatedPoint,
				Coords: append([]geom.Point2(nil), pl.Points...),
				Detail: "isolated segment excluded from assembly",
			})
		case !pl.Closed:
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.UnclosedChain,
				Coords: []geom.Point2{pl.Points[0], pl.Points[len(pl.Points)-1]},
				Detail: "open polyline excluded from assembly",
			})
		case len(pl.Points) < 3:
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.UnclosedChain,
				Coords: append([]geom.Point2(nil), pl.Points...),
				Detail: "closed polyline with fewer than 3 distinct points",
			})
		default:
			ring := Ring(trimClosingVertex(pl.Points))
			if xs := selfIntersections(ring); len(xs) > 0 {
				crits = append(crits, crit.Criticality{
					Slice:  sliceIdx,
					Kind:   crit.SelfIntersection,
					Coords: xs,
					Detail: fmt.Sprintf("loop crosses itself %d time(s)", len(xs)),
				})
				continue
			}
			rings = append(rings, ring)
		}
	}

	return nest(rings), crits
}

// trimClosingVertex drops a repeated final vertex so rings are stored open.
func trimClosingVertex(pts []geom.Point2) []geom.Point2 {
	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		return append([]geom.Point2(nil), pts[:n-1]...)
	}
	return append([]geom.Point2(nil), pts...)
}

// selfIntersections returns every point where non-adjacent edges of the
// ring cross. Exact coordinates are load-bearing: the editor highlights
// them for manual correction.
func selfIntersections(ring Ring) []geom.Point2 {
	n := len(ring)
	var out []geom.Point2
	for i := 0; i < n; i++ {
		a1 := ring[i]
		a2 := ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges: they share a vertex by construction.
			if j == i || (j+1)%n == i || j == (i+1)%n {
				continue
			}
			b1 := ring[j]
			b2 := ring[(j+1)%n]
			if p, ok := geom.SegIntersect(a1, a2, b1, b2); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// nest classifies rings into outers and holes by containment depth: a ring
// inside an even number of other rings is an outer boundary, odd means a
// hole of its immediate parent. Output order is by descending outer area,
// so assembly is deterministic for identical input.
func nest(rings []Ring) []Polygon {
	if len(rings) == 0 {
		return nil
	}

	idx := make([]int, len(rings))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rings[idx[a]].Area() > rings[idx[b]].Area()
	})

	parent := make([]int, len(rings)) // into idx order, -1 = top level
	depth := make([]int, len(rings))
	for oi, ri := range idx {
		parent[oi] = -1
		probe := rings[ri][0]
		// Walk candidates from largest down; the smallest enclosing ring
		// wins. Larger rings precede in idx order.
		for oj := oi - 1; oj >= 0; oj-- {
			if rings[idx[oj]].Contains(probe) {
				parent[oi] = oj
				depth[oi] = depth[oj] + 1
				break
			}
		}
	}

	polyOf := make(map[int]int) // idx-order position of outer -> output index
	var out []Polygon
	for oi, ri := range idx {
		if depth[oi]%2 == 0 {
			polyOf[oi] = len(out)
			out = append(out, Polygon{Outer: orient(rings[ri], true)})
		}
	}
	for oi, ri := range idx {
		if depth[oi]%2 == 1 {
			pi := polyOf[parent[oi]]
			out[pi].Holes = append(out[pi].Holes, orient(rings[ri], false))
		}
	}
	return out
}

// orient returns the ring wound counter-clockwise when ccw is true,
// clockwise otherwise.
func orient(r Ring, ccw bool) Ring {
	a := geom.SignedArea(r)
	if (a >= 0) == ccw {
		return r
	}
	rev := make(Ring, len(r))
	for i, p := range r {
		rev[len(r)-1-i] = p
	}
	return rev
}
