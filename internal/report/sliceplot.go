package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/cloud2mesh/internal/geom"
)

// SaveSlicePlot renders one slice to an image file: raw points in grey,
// centroids on top, polylines as connected lines. The output format follows
// the path extension (.svg, .png, .pdf).
func SaveSlicePlot(path string, src Source, i int) error {
	if i < 0 || i >= src.NumSlices() {
		return fmt.Errorf("slice %d out of range [0, %d)", i, src.NumSlices())
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Slice %d", i)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	if pts := src.SlicePoints(i); len(pts) > 0 {
		sc, err := plotter.NewScatter(xys(pts))
		if err != nil {
			return fmt.Errorf("plot slice points: %w", err)
		}
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Color = color.Gray{Y: 190}
		p.Add(sc)
	}

	if set := src.CentroidSet(i); set != nil && set.Len() > 0 {
		sc, err := plotter.NewScatter(xys(set.Centroids))
		if err != nil {
			return fmt.Errorf("plot centroids: %w", err)
		}
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Color = color.RGBA{B: 200, A: 255}
		p.Add(sc)
	}

	for _, pl := range src.Polylines(i) {
		pts := pl.Points
		if pl.Closed && len(pts) > 0 {
			pts = append(append([]geom.Point2(nil), pts...), pts[0])
		}
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(xys(pts))
		if err != nil {
			return fmt.Errorf("plot polyline: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 200, A: 255}
		p.Add(line)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save slice plot %s: %w", path, err)
	}
	return nil
}

func xys(pts []geom.Point2) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return out
}
