// Package centroid reduces each slice to the centerline of its walls.
//
// Slice points are projected onto the XY plane and grouped into wall
// segments by proximity: two parallel point layers no further apart than the
// minimum wall thickness collapse into one segment whose centroid sits on
// the wall midline. The neighbourhood radius is calibrated per slice from
// the observed point density, so sparse scans and dense scans both resolve.
//
// Extraction always succeeds. Slices too sparse to carry walls yield an
// empty set with an explanatory note; they are reported, never fatal.
package centroid

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
)

// neighbourDemand scales how many neighbours the calibration sample must
// see, per minimum segment point, before the tolerance stops growing.
const neighbourDemand = 3.5

// Params are the extraction tunables for one run.
type Params struct {
	MinWallThickness float64 // walls thicker than this are treated as two
	BaseTolerance    float64 // starting neighbourhood radius
	ToleranceGrowth  float64 // multiplicative growth during calibration
	CheckFraction    float64 // fraction of slice points sampled during calibration
	MinSlicePoints   int     // slices below this yield an empty set
	MinSegmentPoints int     // segments below this are dropped
}

// ParamsFromConfig resolves extraction parameters against the defaults.
func ParamsFromConfig(cfg *params.Config) Params {
	def := params.Default()
	return Params{
		MinWallThickness: params.Float(cfg.MinWallThickness, *def.MinWallThickness),
		BaseTolerance:    params.Float(cfg.BaseTolerance, *def.BaseTolerance),
		ToleranceGrowth:  params.Float(cfg.ToleranceGrowth, *def.ToleranceGrowth),
		CheckFraction:    params.Float(cfg.CheckFraction, *def.CheckFraction),
		MinSlicePoints:   params.Int(cfg.MinSlicePoints, *def.MinSlicePoints),
		MinSegmentPoints: params.Int(cfg.MinSegmentPoints, *def.MinSegmentPoints),
	}
}

// Segment is one cluster of slice points judged to belong to a single wall
// thickness, reduced to a centroid on the wall centerline.
type Segment struct {
	Points   []geom.Point2 // member points (copies, slice order)
	Centroid geom.Point2
	Dir      geom.Point2 // unit local wall direction; zero when degenerate
}

// Set is the editable centroid collection of one slice. Segments describe
// how extraction derived each centroid; hand-added centroids carry no
// segment.
type Set struct {
	Centroids []geom.Point2
	Segments  []Segment // len <= len(Centroids); Segments[i] derived Centroids[i]
}

// Len returns the number of centroids.
func (s *Set) Len() int { return len(s.Centroids) }

// Add appends a hand-placed centroid.
func (s *Set) Add(p geom.Point2) {
	s.Centroids = append(s.Centroids, p)
}

// Remove deletes centroid i, keeping order. The derived segment, if any,
// is dropped with it.
func (s *Set) Remove(i int) error {
	if i < 0 || i >= len(s.Centroids) {
		return fmt.Errorf("centroid %d out of range [0, %d)", i, len(s.Centroids))
	}
	s.Centroids = append(s.Centroids[:i], s.Centroids[i+1:]...)
	if i < len(s.Segments) {
		s.Segments = append(s.Segments[:i], s.Segments[i+1:]...)
	}
	return nil
}

// Clone returns a deep copy, used by edit transactions.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := &Set{
		Centroids: append([]geom.Point2(nil), s.Centroids...),
		Segments:  make([]Segment, len(s.Segments)),
	}
	for i, seg := range s.Segments {
		out.Segments[i] = Segment{
			Points:   append([]geom.Point2(nil), seg.Points...),
			Centroid: seg.Centroid,
			Dir:      seg.Dir,
		}
	}
	return out
}

// Extract partitions the slice's points into wall segments and derives one
// centroid per segment. It never fails: sparse slices return an empty set,
// and the returned notes explain anything the user should look at.
//
// The walk is deterministic: the first seed is the lowest-index point and
// each following seed is the remaining point nearest to the last centroid,
// ties broken by index. Determinism here keeps everything downstream
// (polyline order, mesh IDs) reproducible.
func Extract(pts []geom.Point2, p Params) (*Set, []string) {
	set := &Set{}
	if len(pts) < p.MinSlicePoints {
		return set, []string{fmt.Sprintf("slice has %d points, below minimum %d; no centroids derived", len(pts), p.MinSlicePoints)}
	}

	tol, calNote := calibrateTolerance(pts, p)
	var notes []string
	if calNote != "" {
		notes = append(notes, calNote)
	}

	si := newSpatialIndex(pts, tol)
	used := make([]bool, len(pts))
	remaining := len(pts)
	var scratch []int

	// Seed selection state: walk outward from the last derived centroid so
	// consecutive centroids trace along the wall.
	haveLast := false
	var last geom.Point2

	for remaining > 0 {
		seed := nextSeed(pts, used, haveLast, last)
		used[seed] = true
		remaining--

		scratch = si.neighbors(scratch[:0], pts[seed], tol, -1)
		group := scratch[:0]
		for _, idx := range scratch {
			if !used[idx] || idx == seed {
				group = append(group, idx)
			}
		}
		if len(group) < p.MinSegmentPoints {
			// Not enough support for a wall here; the seed is noise.
			continue
		}
		sort.Ints(group)

		seg := buildSegment(pts, group)
		for _, idx := range group {
			if !used[idx] {
				used[idx] = true
				remaining--
			}
		}
		set.Segments = append(set.Segments, seg)
		set.Centroids = append(set.Centroids, seg.Centroid)
		last = seg.Centroid
		haveLast = true
	}

	if len(set.Centroids) == 0 {
		notes = append(notes, fmt.Sprintf("slice has %d points but no segment reached %d members; no centroids derived", len(pts), p.MinSegmentPoints))
	}
	return set, notes
}

// nextSeed picks the next unused point: nearest to the last centroid when
// one exists, lowest index otherwise. Ties break by index.
func nextSeed(pts []geom.Point2, used []bool, haveLast bool, last geom.Point2) int {
	best := -1
	bestD := math.Inf(1)
	for i := range pts {
		if used[i] {
			continue
		}
		if !haveLast {
			return i
		}
		if d := pts[i].Dist2(last); d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// buildSegment computes the centroid and local wall direction of a point
// group. The centroid of a double-sided wall neighbourhood approximates the
// centerline midpoint; the direction is the principal axis of the group's
// 2x2 covariance.
func buildSegment(pts []geom.Point2, group []int) Segment {
	seg := Segment{Points: make([]geom.Point2, len(group))}
	var sx, sy float64
	for i, idx := range group {
		seg.Points[i] = pts[idx]
		sx += pts[idx].X
		sy += pts[idx].Y
	}
	n := float64(len(group))
	seg.Centroid = geom.Point2{X: sx / n, Y: sy / n}
	seg.Dir = principalAxis(seg.Points, seg.Centroid)
	return seg
}

// principalAxis returns the unit eigenvector of the group covariance with
// the largest eigenvalue, or zero for degenerate groups.
func principalAxis(pts []geom.Point2, mean geom.Point2) geom.Point2 {
	if len(pts) < 2 {
		return geom.Point2{}
	}
	var cxx, cxy, cyy float64
	for _, p := range pts {
		dx := p.X - mean.X
		dy := p.Y - mean.Y
		cxx += dx * dx
		cxy += dx * dy
		cyy += dy * dy
	}
	n := float64(len(pts) - 1)
	sym := mat.NewSymDense(2, []float64{cxx / n, cxy / n, cxy / n, cyy / n})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return geom.Point2{}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	// Eigenvalues come back ascending; the major axis is the last column.
	dir := geom.Point2{X: vecs.At(0, 1), Y: vecs.At(1, 1)}
	norm := math.Hypot(dir.X, dir.Y)
	if norm == 0 {
		return geom.Point2{}
	}
	// Canonical orientation so repeated runs agree.
	if dir.X < 0 || (dir.X == 0 && dir.Y < 0) {
		dir.X, dir.Y = -dir.X, -dir.Y
	}
	return geom.Point2{X: dir.X / norm, Y: dir.Y / norm}
}

// calibrateTolerance grows the neighbourhood radius until a deterministic
// sample of the slice sees enough neighbours, capped so two distinct walls
// never merge. This mirrors the survey tool's per-slice density adaptation.
func calibrateTolerance(pts []geom.Point2, p Params) (float64, string) {
	tol := p.BaseTolerance
	maxTol := p.MinWallThickness / p.ToleranceGrowth

	sample := sampleIndices(len(pts), p.CheckFraction)
	demand := int(neighbourDemand * float64(p.MinSegmentPoints) * float64(len(sample)))

	for {
		si := newSpatialIndex(pts, tol)
		sum := 0
		var scratch []int
		for _, idx := range sample {
			scratch = si.neighbors(scratch[:0], pts[idx], tol, idx)
			sum += len(scratch)
		}
		if tol >= maxTol || sum >= demand {
			break
		}
		tol *= p.ToleranceGrowth
		if tol > maxTol {
			tol = maxTol
		}
	}
	if tol > p.BaseTolerance {
		return tol, fmt.Sprintf("neighbourhood tolerance grown to %.5f for sparse slice", tol)
	}
	return tol, ""
}

// sampleIndices returns an evenly strided sample of [0, n). A strided
// sample keeps calibration deterministic where the original tool sampled
// randomly.
func sampleIndices(n int, fraction float64) []int {
	count := int(math.Round(float64(n) * fraction))
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	out := make([]int, 0, count)
	stride := float64(n) / float64(count)
	for i := 0; i < count; i++ {
		out = append(out, int(float64(i)*stride))
	}
	return out
}
