package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloud2mesh/internal/centroid"
	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

// tubeWall returns the midline points and outward normals of a hollow
// square footprint with 4-unit sides, sampled every 0.25 along the
// perimeter: 64 points, corners included once.
func tubeWall() (pts, normals []geom.Point2) {
	const side, step = 4.0, 0.25
	for s := 0.0; s < side; s += step {
		pts = append(pts, geom.Point2{X: s, Y: 0})
		normals = append(normals, geom.Point2{X: 0, Y: -1})
	}
	for s := 0.0; s < side; s += step {
		pts = append(pts, geom.Point2{X: side, Y: s})
		normals = append(normals, geom.Point2{X: 1, Y: 0})
	}
	for s := 0.0; s < side; s += step {
		pts = append(pts, geom.Point2{X: side - s, Y: side})
		normals = append(normals, geom.Point2{X: 0, Y: 1})
	}
	for s := 0.0; s < side; s += step {
		pts = append(pts, geom.Point2{X: 0, Y: side - s})
		normals = append(normals, geom.Point2{X: -1, Y: 0})
	}
	return pts, normals
}

// tubeCloud builds a thin-walled square tube: at five z planes, each wall
// sample becomes an inner/outer point pair straddling the midline.
func tubeCloud(t *testing.T) *cloud.Cloud {
	t.Helper()
	mids, normals := tubeWall()
	var pts []geom.Point3
	for k := 0; k < 5; k++ {
		z := 0.1 + 0.2*float64(k)
		for i, m := range mids {
			n := normals[i]
			pts = append(pts,
				geom.Point3{X: m.X - 0.03*n.X, Y: m.Y - 0.03*n.Y, Z: z},
				geom.Point3{X: m.X + 0.03*n.X, Y: m.Y + 0.03*n.Y, Z: z},
			)
		}
	}
	c, err := cloud.New(pts)
	require.NoError(t, err)
	return c
}

func tubeConfig() *params.Config {
	from, to, step := 0.0, 1.0, 0.2
	// A 0.15 wall-thickness cap keeps the calibrated neighbourhood radius
	// well below the 0.25 sample spacing, so every inner/outer pair stays
	// its own segment.
	wall := 0.15
	return &params.Config{SliceFrom: &from, SliceTo: &to, SliceStep: &step, MinWallThickness: &wall}
}

func tubeProject(t *testing.T) *Project {
	t.Helper()
	p, err := New("tube", tubeConfig())
	require.NoError(t, err)
	p.SetCloud(tubeCloud(t))
	return p
}

func TestRunAllSquareTube(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	require.NoError(t, p.RunAll(context.Background()))

	require.Equal(t, 5, p.NumSlices())
	for i, s := range p.Slices() {
		require.Len(t, s.Points, 128, "slice %d point count", i)

		set := p.CentroidSet(i)
		require.NotNil(t, set)
		require.Equal(t, 64, set.Len(), "slice %d: one centroid per wall pair", i)

		pls := p.Polylines(i)
		require.Len(t, pls, 1, "slice %d polylines", i)
		require.True(t, pls[0].Closed, "slice %d loop must close", i)

		polys := p.Polygons(i)
		require.Len(t, polys, 1, "slice %d polygons", i)
		require.Empty(t, polys[0].Holes)
	}

	require.Empty(t, p.Criticalities())

	m, notes := p.Mesh()
	require.NotNil(t, m)
	require.Empty(t, notes)

	// The 4x4 midline square at a 0.25 grid holds 16x16 cell centres, over
	// five layers; the node lattice is 17x17 on six shared planes.
	require.Len(t, m.Elements, 5*16*16)
	require.Len(t, m.Nodes, 17*17*6)

	bySlice := m.ElementIDsBySlice()
	require.Len(t, bySlice, 5)
	for i := 0; i < 5; i++ {
		require.Len(t, bySlice[i], 256, "slice %d element set", i)
	}

	for i := 0; i < 5; i++ {
		for _, st := range p.StageStatus(i) {
			require.Equal(t, stage.Fresh, st.State)
		}
	}
}

func TestStageOrderEnforced(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx := context.Background()

	err := p.RunCentroids(ctx)
	require.Error(t, err, "centroids before slicing")

	require.NoError(t, p.RunSlicer(ctx))
	err = p.RunPolylines(ctx)
	require.ErrorIs(t, err, stage.ErrStaleUpstream)
	err = p.RunMesh(ctx)
	require.ErrorIs(t, err, stage.ErrStaleUpstream)
}

func TestEditCentroidsInvalidatesSliceOnly(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx := context.Background()
	require.NoError(t, p.RunAll(ctx))
	before, _ := p.Mesh()

	require.NoError(t, p.EditCentroids(2, func(set *centroid.Set) error {
		set.Add(geom.Point2{X: 50, Y: 50})
		return nil
	}))

	sts := p.StageStatus(2)
	require.Equal(t, stage.Dirty, sts[stage.Centroids].State)
	require.Equal(t, stage.Stale, sts[stage.Polylines].State)
	require.Equal(t, stage.Stale, sts[stage.Mesh].State)

	// Other slices stay fresh.
	for _, st := range p.StageStatus(1) {
		require.Equal(t, stage.Fresh, st.State)
	}

	// Downstream refuses to run from the stale artifact until the edit has
	// been propagated.
	require.ErrorIs(t, p.RunPolygons(ctx, 2), stage.ErrStaleUpstream)

	require.NoError(t, p.RunPolylines(ctx, 2))
	require.NoError(t, p.RunPolygons(ctx, 2))
	require.NoError(t, p.RunMesh(ctx))

	// The stray centroid surfaces as an isolated-point finding but is
	// excluded from assembly, so the regenerated mesh is identical, IDs
	// included.
	require.NotEmpty(t, p.Criticalities())
	after, _ := p.Mesh()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("mesh changed after no-op edit round trip (-before +after):\n%s", diff)
	}
}

func TestEditRollsBackOnError(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx := context.Background()
	require.NoError(t, p.RunSlicer(ctx))
	require.NoError(t, p.RunCentroids(ctx))
	require.NoError(t, p.RunPolylines(ctx))

	wantLen := p.CentroidSet(0).Len()
	editErr := errors.New("change of heart")
	err := p.EditCentroids(0, func(set *centroid.Set) error {
		set.Add(geom.Point2{X: 1, Y: 1})
		return editErr
	})
	require.ErrorIs(t, err, editErr)
	require.Equal(t, wantLen, p.CentroidSet(0).Len(), "failed edit must not apply")
	require.Equal(t, stage.Fresh, p.StageStatus(0)[stage.Centroids].State)

	err = p.EditPolylines(0, func(pls []trace.Polyline) ([]trace.Polyline, error) {
		return nil, editErr
	})
	require.ErrorIs(t, err, editErr)
	require.Equal(t, stage.Fresh, p.StageStatus(0)[stage.Polylines].State)
}

func TestEditPolylinesReroutesDownstream(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx := context.Background()
	require.NoError(t, p.RunSlicer(ctx))
	require.NoError(t, p.RunCentroids(ctx))
	require.NoError(t, p.RunPolylines(ctx))

	require.NoError(t, p.EditPolylines(0, func(pls []trace.Polyline) ([]trace.Polyline, error) {
		return pls, nil
	}))
	sts := p.StageStatus(0)
	require.Equal(t, stage.Fresh, sts[stage.Centroids].State, "upstream untouched by edit")
	require.Equal(t, stage.Dirty, sts[stage.Polylines].State)
	require.Equal(t, stage.Stale, sts[stage.Polygons].State)

	// A dirty artifact is still valid downstream input.
	require.NoError(t, p.RunPolygons(ctx, 0))
}

func TestReSliceDiscardsEverything(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx := context.Background()
	require.NoError(t, p.RunAll(ctx))

	require.NoError(t, p.RunSlicer(ctx))
	m, _ := p.Mesh()
	require.Nil(t, m, "re-slicing must discard the mesh")
	require.ErrorIs(t, p.RunPolylines(ctx), stage.ErrStaleUpstream)
	require.Nil(t, p.CentroidSet(0))
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	p := tubeProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.RunSlicer(ctx), context.Canceled)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Parallel()

	bad := -1.0
	_, err := New("bad", &params.Config{GridDX: &bad})
	require.ErrorIs(t, err, params.ErrInvalidParameter)
}
