package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/cloud2mesh/internal/centroid"
	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/crit"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/mesh"
	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/polygon"
	"github.com/banshee-data/cloud2mesh/internal/slicer"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

// sliceArtifacts holds everything computed for one slice. Each field is a
// write-once slot per stage run: the stage worker for slice i is the only
// writer of artifacts[i] while that stage runs.
type sliceArtifacts struct {
	centroids  *centroid.Set
	polylines  []trace.Polyline
	traceCrits []crit.Criticality
	polygons   []polygon.Polygon
	polyCrits  []crit.Criticality
	sliceCrits []crit.Criticality
}

// Project is one reconstruction job: a cloud, its parameters, and all
// derived artifacts. Methods are safe for concurrent use, but stage runs
// serialise against each other.
type Project struct {
	ID   uuid.UUID
	Name string

	runMu sync.Mutex // serialises Run* calls
	mu    sync.Mutex // guards all fields below

	cfg       *params.Config
	cloud     *cloud.Cloud
	graph     *stage.Graph
	slices    []slicer.Slice
	artifacts []sliceArtifacts
	mesh      *mesh.Mesh
	meshNotes []string
}

// New creates an empty project. A nil config means defaults.
func New(name string, cfg *params.Config) (*Project, error) {
	merged := params.Default()
	merged.Merge(cfg)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &Project{
		ID:    uuid.New(),
		Name:  name,
		cfg:   merged,
		graph: stage.NewGraph(0),
	}, nil
}

// Config returns the project's resolved parameter set.
func (p *Project) Config() *params.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetConfig replaces the parameter set. Existing artifacts are kept; the
// caller decides which stages to rerun.
func (p *Project) SetConfig(cfg *params.Config) error {
	merged := params.Default()
	merged.Merge(cfg)
	if err := merged.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = merged
	return nil
}

// SetCloud installs the point cloud and discards all derived artifacts.
func (p *Project) SetCloud(c *cloud.Cloud) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cloud = c
	p.slices = nil
	p.artifacts = nil
	p.mesh = nil
	p.meshNotes = nil
	p.graph.Reset(0)
}

// LoadCloud reads an .asc point file into the project.
func (p *Project) LoadCloud(path string) error {
	c, err := cloud.LoadASC(path)
	if err != nil {
		return err
	}
	p.SetCloud(c)
	log.Printf("project %s: loaded %d points from %s", p.Name, c.Len(), path)
	return nil
}

// Cloud returns the loaded cloud, or nil.
func (p *Project) Cloud() *cloud.Cloud {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cloud
}

// NumSlices returns the current slice count.
func (p *Project) NumSlices() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slices)
}

// Slices returns a copy of the slice partition.
func (p *Project) Slices() []slicer.Slice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]slicer.Slice(nil), p.slices...)
}

// SlicePoints returns slice i's points projected onto the XY plane.
func (p *Project) SlicePoints(i int) []geom.Point2 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cloud == nil || i < 0 || i >= len(p.slices) {
		return nil
	}
	out := make([]geom.Point2, len(p.slices[i].Points))
	for k, idx := range p.slices[i].Points {
		out[k] = p.cloud.At(idx).XY()
	}
	return out
}

// CentroidSet returns a deep copy of slice i's centroids, or nil when the
// stage has not run.
func (p *Project) CentroidSet(i int) *centroid.Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.artifacts) {
		return nil
	}
	return p.artifacts[i].centroids.Clone()
}

// Polylines returns a deep copy of slice i's polylines.
func (p *Project) Polylines(i int) []trace.Polyline {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.artifacts) {
		return nil
	}
	out := make([]trace.Polyline, len(p.artifacts[i].polylines))
	for k, pl := range p.artifacts[i].polylines {
		out[k] = pl.Clone()
	}
	return out
}

// Polygons returns slice i's assembled polygons.
func (p *Project) Polygons(i int) []polygon.Polygon {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.artifacts) {
		return nil
	}
	return append([]polygon.Polygon(nil), p.artifacts[i].polygons...)
}

// Mesh returns the generated mesh and its notes. The mesh is shared; treat
// it as read-only.
func (p *Project) Mesh() (*mesh.Mesh, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mesh, append([]string(nil), p.meshNotes...)
}

// StageStatus returns the stage graph statuses for one slice.
func (p *Project) StageStatus(i int) []stage.Status {
	return p.graph.SliceStatuses(i)
}

// Criticalities returns every recorded finding across all slices, ordered
// by slice then by pipeline stage.
func (p *Project) Criticalities() []crit.Criticality {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []crit.Criticality
	for i := range p.artifacts {
		out = append(out, p.artifacts[i].sliceCrits...)
		out = append(out, p.artifacts[i].traceCrits...)
		out = append(out, p.artifacts[i].polyCrits...)
	}
	return out
}

// RunSlicer partitions the cloud by the configured rule. Re-slicing
// discards every downstream artifact.
func (p *Project) RunSlicer(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	c, cfg := p.cloud, p.cfg
	p.mu.Unlock()
	if c == nil {
		return errors.New("no point cloud loaded")
	}

	rule, err := slicer.FromConfig(cfg, c.ZMin(), c.ZMax())
	if err != nil {
		return err
	}
	slices, err := slicer.Run(c, rule)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.slices = slices
	p.artifacts = make([]sliceArtifacts, len(slices))
	p.mesh = nil
	p.meshNotes = nil
	p.graph.Reset(len(slices))
	for i := range slices {
		var errs []string
		if len(slices[i].Points) == 0 {
			errs = append(errs, "slice contains no points")
			p.artifacts[i].sliceCrits = []crit.Criticality{{
				Slice:  i,
				Kind:   crit.EmptySlice,
				Detail: fmt.Sprintf("no points in z range [%g, %g)", slices[i].ZLo, slices[i].ZHi),
			}}
		}
		if err := p.graph.MarkFresh(i, stage.Sliced, errs); err != nil {
			return err
		}
	}
	log.Printf("project %s: sliced %d points into %d slices (%s)", p.Name, c.Len(), len(slices), rule)
	return nil
}

// RunCentroids derives wall centroids for the given slices, or all slices
// when none are given.
func (p *Project) RunCentroids(ctx context.Context, targets ...int) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	c, cfg := p.cloud, p.cfg
	p.mu.Unlock()
	cp := centroid.ParamsFromConfig(cfg)

	return p.runStage(ctx, stage.Centroids, targets, func(i int) error {
		p.mu.Lock()
		idxs := p.slices[i].Points
		p.mu.Unlock()

		pts := make([]geom.Point2, len(idxs))
		for k, idx := range idxs {
			pts[k] = c.At(idx).XY()
		}
		set, notes := centroid.Extract(pts, cp)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.artifacts[i].centroids = set
		return p.graph.MarkFresh(i, stage.Centroids, notes)
	})
}

// RunPolylines traces slice centroids into chains for the given slices, or
// all slices when none are given.
func (p *Project) RunPolylines(ctx context.Context, targets ...int) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	tp := trace.ParamsFromConfig(p.cfg)
	p.mu.Unlock()

	return p.runStage(ctx, stage.Polylines, targets, func(i int) error {
		p.mu.Lock()
		ctrds := append([]geom.Point2(nil), p.artifacts[i].centroids.Centroids...)
		p.mu.Unlock()

		polys, crits, notes := trace.Trace(i, ctrds, tp)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.artifacts[i].polylines = polys
		p.artifacts[i].traceCrits = crits
		for _, c := range crits {
			notes = append(notes, c.String())
		}
		return p.graph.MarkFresh(i, stage.Polylines, notes)
	})
}

// RunPolygons assembles polylines into polygons for the given slices, or
// all slices when none are given.
func (p *Project) RunPolygons(ctx context.Context, targets ...int) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	return p.runStage(ctx, stage.Polygons, targets, func(i int) error {
		p.mu.Lock()
		polylines := p.artifacts[i].polylines
		p.mu.Unlock()

		polys, crits := polygon.Assemble(i, polylines)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.artifacts[i].polygons = polys
		p.artifacts[i].polyCrits = crits
		var notes []string
		for _, c := range crits {
			notes = append(notes, c.String())
		}
		if len(polys) == 0 {
			notes = append(notes, "no polygons assembled")
		}
		return p.graph.MarkFresh(i, stage.Polygons, notes)
	})
}

// RunMesh extrudes every slice's polygons into one connected brick mesh.
// All slices must have current polygons; the mesh is whole-model, so there
// is no per-slice form.
func (p *Project) RunMesh(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	if len(p.slices) == 0 {
		p.mu.Unlock()
		return errors.New("point cloud not sliced yet")
	}
	layers := make([]mesh.Layer, len(p.slices))
	for i, s := range p.slices {
		layers[i] = mesh.Layer{
			Slice:    i,
			ZLo:      s.ZLo,
			ZHi:      s.ZHi,
			Polygons: p.artifacts[i].polygons,
		}
	}
	mp := mesh.ParamsFromConfig(p.cfg)
	p.mu.Unlock()

	for i := range layers {
		if err := p.graph.CheckRunnable(i, stage.Mesh); err != nil {
			return err
		}
	}

	m, notes, err := mesh.Generate(ctx, layers, mp)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mesh = m
	p.meshNotes = notes
	for i := range layers {
		if err := p.graph.MarkFresh(i, stage.Mesh, nil); err != nil {
			return err
		}
	}
	log.Printf("project %s: meshed %d nodes, %d elements", p.Name, len(m.Nodes), len(m.Elements))
	return nil
}

// RunAll executes the full pipeline in stage order.
func (p *Project) RunAll(ctx context.Context) error {
	if err := p.RunSlicer(ctx); err != nil {
		return err
	}
	if err := p.RunCentroids(ctx); err != nil {
		return err
	}
	if err := p.RunPolylines(ctx); err != nil {
		return err
	}
	if err := p.RunPolygons(ctx); err != nil {
		return err
	}
	return p.RunMesh(ctx)
}

// EditCentroids applies fn to a copy of slice i's centroid set. On success
// the copy replaces the original, the stage becomes dirty and everything
// downstream becomes stale; on error nothing changes.
func (p *Project) EditCentroids(i int, fn func(*centroid.Set) error) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.artifacts) || p.artifacts[i].centroids == nil {
		return fmt.Errorf("slice %d has no centroids to edit", i)
	}
	next := p.artifacts[i].centroids.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := p.graph.MarkEdited(i, stage.Centroids); err != nil {
		return err
	}
	p.artifacts[i].centroids = next
	return nil
}

// EditPolylines applies fn to a copy of slice i's polylines, with the same
// transaction semantics as EditCentroids.
func (p *Project) EditPolylines(i int, fn func([]trace.Polyline) ([]trace.Polyline, error)) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.artifacts) || p.artifacts[i].polylines == nil {
		return fmt.Errorf("slice %d has no polylines to edit", i)
	}
	work := make([]trace.Polyline, len(p.artifacts[i].polylines))
	for k, pl := range p.artifacts[i].polylines {
		work[k] = pl.Clone()
	}
	next, err := fn(work)
	if err != nil {
		return err
	}
	if err := p.graph.MarkEdited(i, stage.Polylines); err != nil {
		return err
	}
	p.artifacts[i].polylines = next
	return nil
}

// runStage checks runnability for every target up front, then runs fn per
// slice on a bounded worker pool. Per-slice failures are isolated and
// joined; a stale upstream anywhere fails the whole call before any work.
func (p *Project) runStage(ctx context.Context, st stage.Stage, targets []int, fn func(i int) error) error {
	targets, err := p.resolveTargets(targets)
	if err != nil {
		return err
	}
	for _, i := range targets {
		if err := p.graph.CheckRunnable(i, st); err != nil {
			return err
		}
	}

	p.mu.Lock()
	workers := params.Int(p.cfg.Workers, 0)
	p.mu.Unlock()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for k, i := range targets {
		if err := ctx.Err(); err != nil {
			errs[k] = err
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(k, i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[k] = fn(i)
		}(k, i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// resolveTargets validates and normalises a target list; empty means all.
func (p *Project) resolveTargets(targets []int) ([]int, error) {
	p.mu.Lock()
	n := len(p.slices)
	p.mu.Unlock()
	if n == 0 {
		return nil, errors.New("point cloud not sliced yet")
	}
	if len(targets) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := append([]int(nil), targets...)
	sort.Ints(out)
	prev := -1
	dedup := out[:0]
	for _, i := range out {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("slice %d out of range [0, %d)", i, n)
		}
		if i != prev {
			dedup = append(dedup, i)
			prev = i
		}
	}
	return dedup, nil
}
