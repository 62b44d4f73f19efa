package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the run overview as a standalone HTML page: per-slice
// centroid and element counts, plus a scatter of criticality locations.
func WriteHTML(w io.Writer, src Source) error {
	page := components.NewPage()
	page.AddCharts(countsChart(src))
	if sc := criticalityChart(src); sc != nil {
		page.AddCharts(sc)
	}
	return page.Render(w)
}

// SaveHTML writes the overview page to a file.
func SaveHTML(path string, src Source) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteHTML(f, src); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// countsChart shows centroid and mesh element counts per slice.
func countsChart(src Source) *charts.Bar {
	n := src.NumSlices()
	labels := make([]string, n)
	ctrds := make([]opts.BarData, n)
	elems := make([]opts.BarData, n)

	var bySlice map[int][]int
	if m, _ := src.Mesh(); m != nil {
		bySlice = m.ElementIDsBySlice()
	}
	for i := 0; i < n; i++ {
		labels[i] = fmt.Sprintf("%d", i)
		count := 0
		if set := src.CentroidSet(i); set != nil {
			count = set.Len()
		}
		ctrds[i] = opts.BarData{Value: count}
		elems[i] = opts.BarData{Value: len(bySlice[i])}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Per-slice artifact counts"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "slice"}),
	)
	bar.SetXAxis(labels).
		AddSeries("centroids", ctrds).
		AddSeries("elements", elems)
	return bar
}

// criticalityChart plots every criticality coordinate, or nil when the run
// was clean.
func criticalityChart(src Source) *charts.Scatter {
	crits := src.Criticalities()
	if len(crits) == 0 {
		return nil
	}

	bySeries := map[string][]opts.ScatterData{}
	for _, c := range crits {
		for _, p := range c.Coords {
			bySeries[c.Kind.String()] = append(bySeries[c.Kind.String()],
				opts.ScatterData{Value: []interface{}{p.X, p.Y, c.Slice}})
		}
	}
	if len(bySeries) == 0 {
		return nil
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Criticality locations"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y"}),
	)
	kinds := make([]string, 0, len(bySeries))
	for kind := range bySeries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		scatter.AddSeries(kind, bySeries[kind], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	return scatter
}
