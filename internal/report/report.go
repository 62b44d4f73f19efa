// Package report renders diagnostics of a reconstruction run: a plain-text
// per-slice summary for the terminal, an HTML overview with charts, and
// per-slice SVG plots for close inspection of centroids and polylines.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/cloud2mesh/internal/centroid"
	"github.com/banshee-data/cloud2mesh/internal/crit"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/mesh"
	"github.com/banshee-data/cloud2mesh/internal/polygon"
	"github.com/banshee-data/cloud2mesh/internal/slicer"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

// Source is the read-only view of a project the report needs. Implemented
// by pipeline.Project.
type Source interface {
	NumSlices() int
	Slices() []slicer.Slice
	SlicePoints(i int) []geom.Point2
	CentroidSet(i int) *centroid.Set
	Polylines(i int) []trace.Polyline
	Polygons(i int) []polygon.Polygon
	Mesh() (*mesh.Mesh, []string)
	StageStatus(i int) []stage.Status
	Criticalities() []crit.Criticality
}

// WriteSummary writes the per-slice diagnostics table.
func WriteSummary(w io.Writer, src Source) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLICE\tZ RANGE\tPOINTS\tCENTROIDS\tPOLYLINES\tCLOSED\tPOLYGONS\tSTAGES")

	slices := src.Slices()
	for i, s := range slices {
		set := src.CentroidSet(i)
		nCtrds := 0
		if set != nil {
			nCtrds = set.Len()
		}
		pls := src.Polylines(i)
		closed := 0
		for _, pl := range pls {
			if pl.Closed {
				closed++
			}
		}
		fmt.Fprintf(tw, "%d\t[%.3f, %.3f)\t%d\t%d\t%d\t%d\t%d\t%s\n",
			i, s.ZLo, s.ZHi, len(s.Points), nCtrds, len(pls), closed,
			len(src.Polygons(i)), stageSummary(src.StageStatus(i)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if m, notes := src.Mesh(); m != nil {
		fmt.Fprintf(w, "\nmesh: %d nodes, %d elements\n", len(m.Nodes), len(m.Elements))
		for _, n := range notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	} else {
		fmt.Fprintf(w, "\nmesh: not generated\n")
	}

	crits := src.Criticalities()
	if len(crits) == 0 {
		fmt.Fprintln(w, "no criticalities")
		return nil
	}
	fmt.Fprintf(w, "%d criticalities:\n", len(crits))
	for _, c := range crits {
		fmt.Fprintf(w, "  %s\n", c)
	}
	return nil
}

// stageSummary compresses the five stage states into a short marker string,
// one letter per stage: F fresh, D dirty, - stale.
func stageSummary(statuses []stage.Status) string {
	marks := make([]byte, len(statuses))
	for i, st := range statuses {
		switch st.State {
		case stage.Fresh:
			marks[i] = 'F'
		case stage.Dirty:
			marks[i] = 'D'
		default:
			marks[i] = '-'
		}
	}
	return string(marks)
}
