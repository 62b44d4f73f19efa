package centroid

import (
	"math"

	"github.com/banshee-data/cloud2mesh/internal/geom"
)

// estimatedPointsPerCell is used for initial spatial index capacity estimation.
const estimatedPointsPerCell = 4

// spatialIndex provides neighbourhood queries over slice points using a
// regular grid. Cell size should approximately match the query radius.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int // cell ID -> point indices
	pts      []geom.Point2
}

func newSpatialIndex(pts []geom.Point2, cellSize float64) *spatialIndex {
	si := &spatialIndex{
		cellSize: cellSize,
		grid:     make(map[int64][]int, len(pts)/estimatedPointsPerCell+1),
		pts:      pts,
	}
	for i, p := range pts {
		id := si.cellID(cellIdx(p.X, cellSize), cellIdx(p.Y, cellSize))
		si.grid[id] = append(si.grid[id], i)
	}
	return si
}

func cellIdx(v, cellSize float64) int64 {
	return int64(math.Floor(v / cellSize))
}

// cellID maps a signed cell coordinate pair to a unique non-negative key
// using zigzag encoding and Szudzik's pairing function.
func (si *spatialIndex) cellID(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// neighbors appends to dst the indices of all points within radius of q,
// excluding exclude (pass -1 to keep everything). Results are in index
// order within each visited cell; callers that need global determinism
// must sort.
func (si *spatialIndex) neighbors(dst []int, q geom.Point2, radius float64, exclude int) []int {
	r2 := radius * radius
	cx := cellIdx(q.X, si.cellSize)
	cy := cellIdx(q.Y, si.cellSize)
	// The radius may exceed the cell size after tolerance calibration.
	span := int64(math.Ceil(radius/si.cellSize)) + 1
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for _, idx := range si.grid[si.cellID(cx+dx, cy+dy)] {
				if idx == exclude {
					continue
				}
				if si.pts[idx].Dist2(q) <= r2 {
					dst = append(dst, idx)
				}
			}
		}
	}
	return dst
}
