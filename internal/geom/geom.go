// Package geom provides the planar and 3D primitives shared by the
// reconstruction pipeline: points, bounds, segment intersection,
// point-in-ring containment and polyline simplification.
//
// Dependency rule: geom depends on nothing above the standard library.
package geom

import "math"

// Point2 is a point in a slice plane (world XY, metres).
type Point2 struct {
	X, Y float64
}

// Point3 is a point in cloud coordinates (world frame, metres).
type Point3 struct {
	X, Y, Z float64
}

// XY projects a 3D point onto the slice plane.
func (p Point3) XY() Point2 { return Point2{X: p.X, Y: p.Y} }

// Dist returns the Euclidean distance between p and q.
func (p Point2) Dist(q Point2) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Dist2 returns the squared distance between p and q. Use this in inner
// loops to avoid the sqrt.
func (p Point2) Dist2(q Point2) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Rect2 is an axis-aligned bounding rectangle in the slice plane.
type Rect2 struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyRect2 returns a rectangle that any Extend call will replace.
func EmptyRect2() Rect2 {
	return Rect2{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether the rectangle contains no points.
func (r Rect2) IsEmpty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

// Extend grows the rectangle to include p.
func (r Rect2) Extend(p Point2) Rect2 {
	if p.X < r.MinX {
		r.MinX = p.X
	}
	if p.X > r.MaxX {
		r.MaxX = p.X
	}
	if p.Y < r.MinY {
		r.MinY = p.Y
	}
	if p.Y > r.MaxY {
		r.MaxY = p.Y
	}
	return r
}

// Union returns the smallest rectangle covering both r and s.
func (r Rect2) Union(s Rect2) Rect2 {
	if s.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return s
	}
	return r.Extend(Point2{s.MinX, s.MinY}).Extend(Point2{s.MaxX, s.MaxY})
}

// BoundsOf computes the bounding rectangle of a point set.
func BoundsOf(pts []Point2) Rect2 {
	r := EmptyRect2()
	for _, p := range pts {
		r = r.Extend(p)
	}
	return r
}

// SignedArea returns the signed shoelace area of a ring. The result is
// positive for counter-clockwise winding. The ring may be given with or
// without the closing vertex repeated.
func SignedArea(ring []Point2) float64 {
	n := len(ring)
	if n >= 2 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}

// PointInRing reports whether p lies strictly inside the ring using the
// even-odd (ray casting) rule. Points exactly on an edge may report either
// way; callers that care about boundary points must test separately.
func PointInRing(p Point2, ring []Point2) bool {
	n := len(ring)
	if n >= 2 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// SegIntersect reports whether segments a1-a2 and b1-b2 cross at a point
// interior to both, and returns that point. Touching at a shared endpoint
// does not count as a crossing; collinear overlap is reported as a crossing
// at the midpoint of the overlap.
func SegIntersect(a1, a2, b1, b2 Point2) (Point2, bool) {
	d1x, d1y := a2.X-a1.X, a2.Y-a1.Y
	d2x, d2y := b2.X-b1.X, b2.Y-b1.Y
	denom := d1x*d2y - d1y*d2x

	if denom == 0 {
		// Parallel. Check for collinear overlap.
		if cross(a1, a2, b1) != 0 {
			return Point2{}, false
		}
		lo, hi, ok := overlap1D(a1, a2, b1, b2)
		if !ok {
			return Point2{}, false
		}
		return Point2{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}, true
	}

	t := ((b1.X-a1.X)*d2y - (b1.Y-a1.Y)*d2x) / denom
	u := ((b1.X-a1.X)*d1y - (b1.Y-a1.Y)*d1x) / denom
	const eps = 1e-12
	if t <= eps || t >= 1-eps || u <= eps || u >= 1-eps {
		return Point2{}, false
	}
	return Point2{X: a1.X + t*d1x, Y: a1.Y + t*d1y}, true
}

// overlap1D returns the overlapping span of two collinear segments,
// projected along their dominant axis.
func overlap1D(a1, a2, b1, b2 Point2) (lo, hi Point2, ok bool) {
	key := func(p Point2) float64 { return p.X }
	if math.Abs(a2.X-a1.X) < math.Abs(a2.Y-a1.Y) {
		key = func(p Point2) float64 { return p.Y }
	}
	aLo, aHi := minMax2(a1, a2, key)
	bLo, bHi := minMax2(b1, b2, key)
	lo, hi = aLo, aHi
	if key(bLo) > key(lo) {
		lo = bLo
	}
	if key(bHi) < key(hi) {
		hi = bHi
	}
	if key(lo) >= key(hi) {
		return Point2{}, Point2{}, false
	}
	return lo, hi, true
}

func minMax2(p, q Point2, key func(Point2) float64) (lo, hi Point2) {
	if key(p) <= key(q) {
		return p, q
	}
	return q, p
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c Point2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// TurnAngle returns the absolute turning angle in radians at b when
// travelling a -> b -> c. Zero means a perfectly straight continuation.
func TurnAngle(a, b, c Point2) float64 {
	v1x, v1y := b.X-a.X, b.Y-a.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y
	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	cosA := (v1x*v2x + v1y*v2y) / (n1 * n2)
	if cosA > 1 {
		cosA = 1
	} else if cosA < -1 {
		cosA = -1
	}
	return math.Acos(cosA)
}

// perpDist returns the perpendicular distance from p to the line a-b.
func perpDist(p, a, b Point2) float64 {
	den := a.Dist(b)
	if den == 0 {
		return p.Dist(a)
	}
	return math.Abs(cross(a, b, p)) / den
}

// SimplifyDP reduces a polyline with the Douglas-Peucker algorithm,
// keeping every vertex further than tol from the chord of its span.
// Endpoints are always preserved. tol <= 0 returns the input unchanged.
func SimplifyDP(pts []Point2, tol float64) []Point2 {
	if tol <= 0 || len(pts) <= 2 {
		return pts
	}
	keep := make([]bool, len(pts))
	keep[0] = true
	keep[len(pts)-1] = true
	simplifySpan(pts, 0, len(pts)-1, tol, keep)

	out := make([]Point2, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func simplifySpan(pts []Point2, lo, hi int, tol float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	maxD := 0.0
	maxI := -1
	for i := lo + 1; i < hi; i++ {
		if d := perpDist(pts[i], pts[lo], pts[hi]); d > maxD {
			maxD = d
			maxI = i
		}
	}
	if maxD <= tol {
		return
	}
	keep[maxI] = true
	simplifySpan(pts, lo, maxI, tol, keep)
	simplifySpan(pts, maxI, hi, tol, keep)
}
