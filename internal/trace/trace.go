// Package trace orders a slice's centroids into polylines approximating the
// wall-loop topology.
//
// Chains grow by nearest-neighbour extension bounded by a connection
// distance derived from the centroid density. Where a continuation is
// ambiguous the tracer prefers the geometrically straightest option
// (minimum turning angle) over the merely nearest one, which keeps it from
// branching prematurely into a crossing wall. Tracing always succeeds; what
// it cannot resolve (isolated centroids, unclosed chains, branchpoints) is
// returned as criticalities with exact coordinates, not as errors.
package trace

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cloud2mesh/internal/crit"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
)

// connectFactor scales the median nearest-neighbour distance into the
// maximum connection distance when none is configured.
const connectFactor = 3.0

// lengthSlack relaxes the percentile length threshold so chains sitting
// right at the cut survive.
const lengthSlack = 1.3

// Polyline is an ordered chain of centroids for one slice. A closed
// polyline implicitly joins its last point back to its first; the closing
// vertex is not repeated. A polyline with fewer than two points is
// degenerate and only ever appears alongside an isolated-point criticality.
type Polyline struct {
	Points []geom.Point2
	Closed bool
}

// Clone returns a deep copy, used by edit transactions.
func (p Polyline) Clone() Polyline {
	return Polyline{Points: append([]geom.Point2(nil), p.Points...), Closed: p.Closed}
}

// Degenerate reports whether the polyline is a single stranded point.
func (p Polyline) Degenerate() bool { return len(p.Points) < 2 }

// Params are the tracing tunables.
type Params struct {
	MaxConnect        float64 // maximum connection distance; 0 derives it from density
	SimplifyTolerance float64 // Douglas-Peucker tolerance, 0 disables
	LengthPercentile  float64 // chains shorter than this percentile are dropped
	MinChainPoints    int     // chains below this are dropped (degenerates excepted)
}

// ParamsFromConfig resolves tracing parameters against the defaults.
func ParamsFromConfig(cfg *params.Config) Params {
	def := params.Default()
	return Params{
		SimplifyTolerance: params.Float(cfg.SimplifyTolerance, *def.SimplifyTolerance),
		LengthPercentile:  params.Float(cfg.LengthPercentile, *def.LengthPercentile),
		MinChainPoints:    params.Int(cfg.MinChainPoints, *def.MinChainPoints),
	}
}

// Trace chains the slice's centroids into polylines. It always succeeds;
// criticalities document isolated points, unclosed chains and branchpoints,
// and notes summarise non-geometric findings for the stage report.
func Trace(sliceIdx int, ctrds []geom.Point2, p Params) ([]Polyline, []crit.Criticality, []string) {
	if len(ctrds) == 0 {
		return nil, nil, nil
	}

	maxConnect := p.MaxConnect
	var notes []string
	if maxConnect <= 0 {
		maxConnect = deriveMaxConnect(ctrds)
		if maxConnect > 0 {
			notes = append(notes, fmt.Sprintf("connection distance derived from density: %.5f", maxConnect))
		}
	}

	adj := buildAdjacency(ctrds, maxConnect)

	// Branchpoints are judged at a tighter radius than chaining: a centroid
	// with three or more immediate neighbours marks a wall junction the
	// tracer cannot resolve on its own.
	tight := buildAdjacency(ctrds, maxConnect/2)
	var crits []crit.Criticality
	for i, nbrs := range tight {
		if len(nbrs) >= 3 {
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.Branchpoint,
				Coords: []geom.Point2{ctrds[i]},
				Detail: fmt.Sprintf("%d candidate continuations", len(nbrs)),
			})
		}
	}

	visited := make([]bool, len(ctrds))
	var chains []Polyline
	for seed := range ctrds {
		if visited[seed] {
			continue
		}
		chain := growChain(ctrds, adj, visited, seed, maxConnect)
		chains = append(chains, chain)
	}

	chains, dropped := filterShort(chains, p)
	if dropped > 0 {
		notes = append(notes, fmt.Sprintf("%d short polylines dropped by length threshold", dropped))
	}

	out := make([]Polyline, 0, len(chains))
	for _, c := range chains {
		switch {
		case c.Degenerate():
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.IsolatedPoint,
				Coords: append([]geom.Point2(nil), c.Points...),
			})
		case !c.Closed:
			crits = append(crits, crit.Criticality{
				Slice:  sliceIdx,
				Kind:   crit.UnclosedChain,
				Coords: []geom.Point2{c.Points[0], c.Points[len(c.Points)-1]},
				Detail: fmt.Sprintf("chain of %d centroids did not close", len(c.Points)),
			})
		}
		out = append(out, simplify(c, p.SimplifyTolerance))
	}
	return out, crits, notes
}

// deriveMaxConnect estimates the connection distance as a multiple of the
// median nearest-neighbour spacing.
func deriveMaxConnect(ctrds []geom.Point2) float64 {
	if len(ctrds) < 2 {
		return 0
	}
	nn := make([]float64, 0, len(ctrds))
	for i, p := range ctrds {
		best := math.Inf(1)
		for j, q := range ctrds {
			if i == j {
				continue
			}
			if d := p.Dist2(q); d < best {
				best = d
			}
		}
		nn = append(nn, math.Sqrt(best))
	}
	sort.Float64s(nn)
	return connectFactor * stat.Quantile(0.5, stat.Empirical, nn, nil)
}

// buildAdjacency lists, per centroid, its neighbours within maxConnect in
// ascending distance order.
func buildAdjacency(ctrds []geom.Point2, maxConnect float64) [][]int {
	adj := make([][]int, len(ctrds))
	if maxConnect <= 0 {
		return adj
	}
	m2 := maxConnect * maxConnect
	for i, p := range ctrds {
		for j, q := range ctrds {
			if i != j && p.Dist2(q) <= m2 {
				adj[i] = append(adj[i], j)
			}
		}
		nbrs := adj[i]
		sort.Slice(nbrs, func(a, b int) bool {
			da, db := p.Dist2(ctrds[nbrs[a]]), p.Dist2(ctrds[nbrs[b]])
			if da != db {
				return da < db
			}
			return nbrs[a] < nbrs[b]
		})
	}
	return adj
}

// growChain extends a chain from seed at both ends until no unvisited
// neighbour remains, then decides closure.
func growChain(ctrds []geom.Point2, adj [][]int, visited []bool, seed int, maxConnect float64) Polyline {
	chain := []int{seed}
	visited[seed] = true

	for pass := 0; pass < 2; pass++ {
		for {
			next := pickContinuation(ctrds, adj, visited, chain)
			if next < 0 {
				break
			}
			chain = append(chain, next)
			visited[next] = true
		}
		// Extend from the opposite end on the second pass.
		reverse(chain)
	}

	pts := make([]geom.Point2, len(chain))
	for i, idx := range chain {
		pts[i] = ctrds[idx]
	}
	closed := len(pts) >= 3 && pts[0].Dist(pts[len(pts)-1]) <= maxConnect
	return Polyline{Points: pts, Closed: closed}
}

// pickContinuation chooses the next centroid from the chain's tail: the
// nearest unvisited neighbour while the chain has no direction yet, then
// the straightest continuation once it does.
func pickContinuation(ctrds []geom.Point2, adj [][]int, visited []bool, chain []int) int {
	tail := chain[len(chain)-1]
	best := -1
	bestAngle := math.Inf(1)
	for _, cand := range adj[tail] {
		if visited[cand] {
			continue
		}
		if len(chain) < 2 {
			// Neighbours are distance-ordered, so the first unvisited one
			// is the nearest.
			return cand
		}
		prev := chain[len(chain)-2]
		a := geom.TurnAngle(ctrds[prev], ctrds[tail], ctrds[cand])
		if a < bestAngle {
			bestAngle = a
			best = cand
		}
	}
	return best
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// filterShort drops chains below the percentile-derived length threshold.
// Degenerate single points survive the filter; they carry their own
// criticality instead.
func filterShort(chains []Polyline, p Params) ([]Polyline, int) {
	if len(chains) == 0 {
		return chains, 0
	}
	lengths := make([]float64, 0, len(chains))
	for _, c := range chains {
		lengths = append(lengths, float64(len(c.Points)))
	}
	sort.Float64s(lengths)
	thresh := stat.Quantile(p.LengthPercentile/100, stat.Empirical, lengths, nil)

	kept := chains[:0]
	dropped := 0
	for _, c := range chains {
		n := len(c.Points)
		if c.Degenerate() {
			kept = append(kept, c)
			continue
		}
		if n < p.MinChainPoints || float64(n) < thresh/lengthSlack {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// simplify runs Douglas-Peucker on the chain, keeping closed loops valid.
func simplify(c Polyline, tol float64) Polyline {
	if tol <= 0 || len(c.Points) <= 3 {
		return c
	}
	s := geom.SimplifyDP(c.Points, tol)
	if c.Closed && len(s) < 3 {
		return c // refuse to collapse a loop below a triangle
	}
	return Polyline{Points: s, Closed: c.Closed}
}
