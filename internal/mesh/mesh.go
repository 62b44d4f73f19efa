// Package mesh generates the structured volumetric mesh: a regular XY grid
// is laid over every slice's polygons, cells whose centres fall inside a
// polygon become quadrilateral footprints, and each footprint is extruded
// across its slice interval into an eight-node brick element.
//
// Nodes are deduplicated within a layer and across the shared interface of
// adjacent layers, so stacked elements share nodes wherever their (x, y)
// footprints match; where the footprint changes between slices, unmatched
// nodes simply remain top- or bottom-only boundary nodes. Node and element
// IDs are contiguous, 1-based, and deterministic for identical input;
// the export format and the golden tests both depend on that.
package mesh

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/polygon"
)

// Params are the grid dimensions.
type Params struct {
	DX, DY float64
}

// ParamsFromConfig resolves grid parameters against the defaults.
func ParamsFromConfig(cfg *params.Config) Params {
	def := params.Default()
	return Params{
		DX: params.Float(cfg.GridDX, *def.GridDX),
		DY: params.Float(cfg.GridDY, *def.GridDY),
	}
}

// Node is a unique mesh position with a stable 1-based ID.
type Node struct {
	ID      int
	X, Y, Z float64
}

// Element is one eight-node brick. Node IDs follow the solver convention:
// bottom face counter-clockwise (SW, SE, NE, NW), then the top face in the
// same order.
type Element struct {
	ID    int
	Slice int // source slice index, for per-slice element sets
	Nodes [8]int
}

// Mesh is the connected 3D element set.
type Mesh struct {
	Nodes    []Node
	Elements []Element
}

// ElementIDsBySlice groups element IDs by their source slice, ascending.
func (m *Mesh) ElementIDsBySlice() map[int][]int {
	out := make(map[int][]int)
	for _, e := range m.Elements {
		out[e.Slice] = append(out[e.Slice], e.ID)
	}
	return out
}

// Layer is the meshing input for one slice: its Z interval and its
// assembled polygons. A layer with no polygons contributes no elements.
type Layer struct {
	Slice    int
	ZLo, ZHi float64
	Polygons []polygon.Polygon
}

// nodeKey identifies a grid node by integer grid coordinates and z-plane
// level, avoiding float comparison in the dedup table.
type nodeKey struct {
	ix, iy, level int
}

// nodeTable allocates stable node IDs. It is written by the single
// generator goroutine only; cross-slice stitching happens behind the join
// barrier the pipeline provides.
type nodeTable struct {
	ids   map[nodeKey]int
	nodes []Node
}

func (t *nodeTable) get(k nodeKey, x, y, z float64) int {
	if id, ok := t.ids[k]; ok {
		return id
	}
	id := len(t.nodes) + 1
	t.ids[k] = id
	t.nodes = append(t.nodes, Node{ID: id, X: x, Y: y, Z: z})
	return id
}

// Generate meshes all layers into one connected element set. Layers are
// processed bottom-up; cancellation is checked between layers and releases
// everything computed so far. Slices with no polygons are skipped with a
// note, never an error.
func Generate(ctx context.Context, layers []Layer, p Params) (*Mesh, []string, error) {
	if p.DX <= 0 {
		return nil, nil, fmt.Errorf("%w: grid dx %g must be positive", params.ErrInvalidParameter, p.DX)
	}
	if p.DY <= 0 {
		return nil, nil, fmt.Errorf("%w: grid dy %g must be positive", params.ErrInvalidParameter, p.DY)
	}

	ordered := append([]Layer(nil), layers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZLo < ordered[j].ZLo })

	// Union footprint across all layers; the grid covers the whole
	// structure so vertically stacked layers index the same cells.
	bounds := geom.EmptyRect2()
	for _, l := range ordered {
		for _, pg := range l.Polygons {
			bounds = bounds.Union(pg.Bounds())
		}
	}

	var notes []string
	m := &Mesh{}
	if bounds.IsEmpty() {
		notes = append(notes, "no layer has polygons; mesh is empty")
		return m, notes, nil
	}

	// One padding cell on every side, so boundary walls never sit on the
	// outermost grid line.
	x0 := bounds.MinX - p.DX
	y0 := bounds.MinY - p.DY
	nx := int(math.Ceil((bounds.MaxX+p.DX-x0)/p.DX)) + 1
	ny := int(math.Ceil((bounds.MaxY+p.DY-y0)/p.DY)) + 1

	table := &nodeTable{ids: make(map[nodeKey]int)}
	elemID := 1

	for li, layer := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(layer.Polygons) == 0 {
			notes = append(notes, fmt.Sprintf("slice %d has no polygons; layer contributes no elements", layer.Slice))
			continue
		}

		// Bottom plane of layer li is level li, top is li+1; adjacent
		// layers share the interface level, which is what stitches their
		// meshes together.
		for ix := 0; ix < nx; ix++ {
			for iy := 0; iy < ny; iy++ {
				cx := x0 + (float64(ix)+0.5)*p.DX
				cy := y0 + (float64(iy)+0.5)*p.DY
				if !anyContains(layer.Polygons, geom.Point2{X: cx, Y: cy}) {
					continue
				}

				xw := x0 + float64(ix)*p.DX
				xe := xw + p.DX
				ys := y0 + float64(iy)*p.DY
				yn := ys + p.DY

				var e Element
				e.ID = elemID
				e.Slice = layer.Slice
				e.Nodes = [8]int{
					table.get(nodeKey{ix, iy, li}, xw, ys, layer.ZLo),
					table.get(nodeKey{ix + 1, iy, li}, xe, ys, layer.ZLo),
					table.get(nodeKey{ix + 1, iy + 1, li}, xe, yn, layer.ZLo),
					table.get(nodeKey{ix, iy + 1, li}, xw, yn, layer.ZLo),
					table.get(nodeKey{ix, iy, li + 1}, xw, ys, layer.ZHi),
					table.get(nodeKey{ix + 1, iy, li + 1}, xe, ys, layer.ZHi),
					table.get(nodeKey{ix + 1, iy + 1, li + 1}, xe, yn, layer.ZHi),
					table.get(nodeKey{ix, iy + 1, li + 1}, xw, yn, layer.ZHi),
				}
				m.Elements = append(m.Elements, e)
				elemID++
			}
		}
	}

	m.Nodes = table.nodes
	if len(m.Elements) == 0 {
		notes = append(notes, "no grid cell centre fell inside any polygon; mesh is empty")
	}
	return m, notes, nil
}

func anyContains(pgs []polygon.Polygon, p geom.Point2) bool {
	for _, pg := range pgs {
		if pg.Contains(p) {
			return true
		}
	}
	return false
}
