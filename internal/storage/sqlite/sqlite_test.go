package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloud2mesh/internal/centroid"
	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/slicer"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.MigrateUp())
	return s
}

func TestMigrateUpDown(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// Up again is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	require.Equal(t, uint(0), version)
}

func TestProjectRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	id := uuid.NewString()
	step := 0.5
	rec := ProjectRecord{
		ID:     id,
		Name:   "tower north wing",
		Config: &params.Config{SliceStep: &step},
	}
	require.NoError(t, s.SaveProject(rec))

	got, err := s.GetProject(id)
	require.NoError(t, err)
	require.Equal(t, rec.Name, got.Name)
	require.NotNil(t, got.Config.SliceStep)
	require.Equal(t, step, *got.Config.SliceStep)
	require.False(t, got.CreatedAt.IsZero())

	// Upsert updates in place.
	rec.Name = "tower north wing (rescan)"
	require.NoError(t, s.SaveProject(rec))
	got, err = s.GetProject(id)
	require.NoError(t, err)
	require.Equal(t, rec.Name, got.Name)

	list, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteProject(id))
	_, err = s.GetProject(id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteProject(id), ErrNotFound)
}

func TestCloudRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	id := uuid.NewString()
	require.NoError(t, s.SaveProject(ProjectRecord{ID: id, Name: "cloud"}))

	c, err := cloud.New([]geom.Point3{{X: 1, Y: 2, Z: 3}, {X: -4, Y: 0.5, Z: 9}})
	require.NoError(t, err)
	require.NoError(t, s.PutCloud(id, c))

	got, err := s.GetCloud(id)
	require.NoError(t, err)
	if diff := cmp.Diff(c.Points(), got.Points()); diff != "" {
		t.Fatalf("cloud changed in storage (-want +got):\n%s", diff)
	}

	_, err = s.GetCloud(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSlicesRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	id := uuid.NewString()
	require.NoError(t, s.SaveProject(ProjectRecord{ID: id, Name: "slices"}))

	slices := []slicer.Slice{
		{Index: 0, ZLo: 0, ZHi: 0.5, Points: []int{0, 3, 5}},
		{Index: 1, ZLo: 0.5, ZHi: 1, Points: []int{1, 2, 4}},
	}
	require.NoError(t, s.PutSlices(id, slices))

	got, err := s.GetSlices(id)
	require.NoError(t, err)
	if diff := cmp.Diff(slices, got); diff != "" {
		t.Fatalf("slices changed in storage (-want +got):\n%s", diff)
	}

	// Replacing drops the old partition entirely.
	require.NoError(t, s.PutSlices(id, slices[:1]))
	got, err = s.GetSlices(id)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestArtifactRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	id := uuid.NewString()
	require.NoError(t, s.SaveProject(ProjectRecord{ID: id, Name: "artifacts"}))

	set := &centroid.Set{
		Centroids: []geom.Point2{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Segments: []centroid.Segment{{
			Points:   []geom.Point2{{X: 0.9, Y: 2}, {X: 1.1, Y: 2}},
			Centroid: geom.Point2{X: 1, Y: 2},
			Dir:      geom.Point2{X: 1, Y: 0},
		}},
	}
	require.NoError(t, s.PutCentroids(id, 0, set))
	gotSet, err := s.GetCentroids(id, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(set, gotSet); diff != "" {
		t.Fatalf("centroids changed in storage (-want +got):\n%s", diff)
	}

	pls := []trace.Polyline{
		{Points: []geom.Point2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, Closed: true},
		{Points: []geom.Point2{{X: 5, Y: 5}}},
	}
	require.NoError(t, s.PutPolylines(id, 0, pls))
	gotPls, err := s.GetPolylines(id, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(pls, gotPls); diff != "" {
		t.Fatalf("polylines changed in storage (-want +got):\n%s", diff)
	}

	_, err = s.GetCentroids(id, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatusRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	id := uuid.NewString()
	require.NoError(t, s.SaveProject(ProjectRecord{ID: id, Name: "status"}))

	statuses := []stage.Status{
		{State: stage.Fresh},
		{State: stage.Dirty, Errors: []string{"tolerance grown for sparse slice"}},
		{State: stage.Stale},
		{State: stage.Stale},
		{State: stage.Stale},
	}
	require.NoError(t, s.PutStatuses(id, 3, statuses))

	got, err := s.GetStatuses(id, 3)
	require.NoError(t, err)
	require.Len(t, got, len(stage.Stages()))
	require.Equal(t, stage.Fresh, got[stage.Sliced].State)
	require.Equal(t, stage.Dirty, got[stage.Centroids].State)
	require.Equal(t, statuses[1].Errors, got[stage.Centroids].Errors)
	require.Equal(t, stage.Stale, got[stage.Mesh].State)

	// A slice never stored reads back all-stale.
	got, err = s.GetStatuses(id, 9)
	require.NoError(t, err)
	for _, st := range got {
		require.Equal(t, stage.Stale, st.State)
	}
}
