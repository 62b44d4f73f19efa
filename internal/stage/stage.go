// Package stage implements the per-slice stage graph: five ordered pipeline
// stages with fresh/stale bookkeeping and staleness propagation.
//
// The graph is pure bookkeeping. It never triggers recomputation; the
// pipeline driver asks it whether a stage may run and records outcomes.
package stage

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStaleUpstream marks an attempted stage run whose direct upstream is not
// current. Fatal to that call only; recoverable by rerunning upstream.
var ErrStaleUpstream = errors.New("stale upstream stage")

// Stage enumerates the pipeline stages in dependency order.
type Stage int

const (
	Sliced Stage = iota
	Centroids
	Polylines
	Polygons
	Mesh

	numStages
)

var stageNames = [numStages]string{"sliced", "centroids", "polylines", "polygons", "mesh"}

func (s Stage) String() string {
	if s >= 0 && s < numStages {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Stages returns all stages in order, for iteration by reports and stores.
func Stages() []Stage {
	return []Stage{Sliced, Centroids, Polylines, Polygons, Mesh}
}

// State is the freshness of one stage for one slice.
type State int

const (
	// Stale: the stage has never run, or an upstream artifact changed since.
	Stale State = iota
	// Fresh: the stage ran successfully from current upstream data.
	Fresh
	// Dirty: the stage's artifact was hand-edited. The data is current and
	// downstream stages may run from it, but it no longer matches what the
	// stage would compute.
	Dirty
)

var stateNames = map[State]string{Stale: "stale", Fresh: "fresh", Dirty: "dirty"}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Current reports whether the stage's artifact is usable as downstream input.
func (s State) Current() bool { return s == Fresh || s == Dirty }

// Status is the recorded outcome of one stage for one slice.
type Status struct {
	State  State
	Errors []string // non-fatal findings from the last run (empty result notes etc.)
}

// Graph tracks stage status for every slice. Safe for concurrent use; the
// per-slice parallel stages record their results through it.
type Graph struct {
	mu     sync.Mutex
	slices [][numStages]Status
}

// NewGraph returns a graph for n slices with every stage stale.
func NewGraph(n int) *Graph {
	return &Graph{slices: make([][numStages]Status, n)}
}

// Reset replaces all bookkeeping, as after a re-slice.
func (g *Graph) Reset(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slices = make([][numStages]Status, n)
}

// Len returns the number of tracked slices.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slices)
}

func (g *Graph) check(slice int, s Stage) error {
	if slice < 0 || slice >= len(g.slices) {
		return fmt.Errorf("slice %d out of range [0, %d)", slice, len(g.slices))
	}
	if s < 0 || s >= numStages {
		return fmt.Errorf("unknown stage %d", int(s))
	}
	return nil
}

// CheckRunnable reports whether stage s may run for the given slice. The
// first stage is always runnable; later stages need a current direct
// upstream, otherwise ErrStaleUpstream.
func (g *Graph) CheckRunnable(slice int, s Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(slice, s); err != nil {
		return err
	}
	if s == Sliced {
		return nil
	}
	if up := g.slices[slice][s-1].State; !up.Current() {
		return fmt.Errorf("%w: slice %d stage %s requires %s", ErrStaleUpstream, slice, s, s-1)
	}
	return nil
}

// MarkFresh records a successful (re)computation of stage s for slice,
// invalidating every downstream stage. errs carries the stage's non-fatal
// findings for the report. Refuses with ErrStaleUpstream when the direct
// upstream is not current.
func (g *Graph) MarkFresh(slice int, s Stage, errs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(slice, s); err != nil {
		return err
	}
	if s > Sliced && !g.slices[slice][s-1].State.Current() {
		return fmt.Errorf("%w: slice %d stage %s requires %s", ErrStaleUpstream, slice, s, s-1)
	}
	g.slices[slice][s] = Status{State: Fresh, Errors: errs}
	for d := s + 1; d < numStages; d++ {
		g.slices[slice][d] = Status{State: Stale}
	}
	return nil
}

// MarkEdited records a manual edit of the stage-s artifact for slice: the
// stage becomes dirty (current but hand-modified) and every downstream stage
// becomes stale. Only an existing artifact can be edited.
func (g *Graph) MarkEdited(slice int, s Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(slice, s); err != nil {
		return err
	}
	if !g.slices[slice][s].State.Current() {
		return fmt.Errorf("slice %d stage %s is stale, nothing to edit", slice, s)
	}
	g.slices[slice][s].State = Dirty
	for d := s + 1; d < numStages; d++ {
		g.slices[slice][d] = Status{State: Stale}
	}
	return nil
}

// Status returns a copy of the recorded status for one slice and stage.
func (g *Graph) Status(slice int, s Stage) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.check(slice, s) != nil {
		return Status{}
	}
	st := g.slices[slice][s]
	out := Status{State: st.State}
	if len(st.Errors) > 0 {
		out.Errors = append([]string(nil), st.Errors...)
	}
	return out
}

// SliceStatuses returns a copy of all stage statuses for one slice, in
// stage order.
func (g *Graph) SliceStatuses(slice int) []Status {
	out := make([]Status, numStages)
	for _, s := range Stages() {
		out[s] = g.Status(slice, s)
	}
	return out
}
