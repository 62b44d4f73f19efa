// Package slicer partitions the point cloud into horizontal slices by Z.
//
// Slicing rules form a closed set of tagged variants: fixed step height,
// fixed slice count, or an explicit list of Z boundaries. Slices own their
// points by index into the cloud, never by copy.
package slicer

import (
	"fmt"
	"sort"

	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/params"
)

// Rule is a sealed slicing-rule variant. The set is small and fixed;
// external packages select a rule, they do not define new ones.
type Rule interface {
	// boundaries expands the rule into an ascending list of z planes.
	// n planes define n-1 slices.
	boundaries() ([]float64, error)
	String() string
}

// FixedStep emits slices of equal thickness Step from From to To. The final
// slice may be thinner when the range does not divide evenly.
type FixedStep struct {
	From, To, Step float64
}

func (r FixedStep) String() string {
	return fmt.Sprintf("fixed-step[%g, %g) step %g", r.From, r.To, r.Step)
}

func (r FixedStep) boundaries() ([]float64, error) {
	if r.Step <= 0 {
		return nil, fmt.Errorf("%w: slice step %g must be positive", params.ErrInvalidParameter, r.Step)
	}
	if r.From >= r.To {
		return nil, fmt.Errorf("%w: slice range start %g must be below end %g", params.ErrInvalidParameter, r.From, r.To)
	}
	var bs []float64
	z := r.From
	for z < r.To {
		bs = append(bs, z)
		z += r.Step
	}
	// Snap the final boundary to To so the partition is exact even when
	// the range does not divide evenly.
	bs = append(bs, r.To)
	if n := len(bs); n >= 2 && bs[n-1]-bs[n-2] < r.Step*1e-9 {
		// Floating point left a sliver slice; merge it into the previous.
		bs = append(bs[:n-2], r.To)
	}
	return bs, nil
}

// FixedCount divides [From, To] into Count slices of equal thickness.
type FixedCount struct {
	From, To float64
	Count    int
}

func (r FixedCount) String() string {
	return fmt.Sprintf("fixed-count[%g, %g) n=%d", r.From, r.To, r.Count)
}

func (r FixedCount) boundaries() ([]float64, error) {
	if r.Count < 1 {
		return nil, fmt.Errorf("%w: slice count %d must be >= 1", params.ErrInvalidParameter, r.Count)
	}
	if r.From >= r.To {
		return nil, fmt.Errorf("%w: slice range start %g must be below end %g", params.ErrInvalidParameter, r.From, r.To)
	}
	bs := make([]float64, r.Count+1)
	span := r.To - r.From
	for i := range bs {
		bs[i] = r.From + span*float64(i)/float64(r.Count)
	}
	bs[r.Count] = r.To
	return bs, nil
}

// Explicit uses user-specified z boundaries with arbitrary non-uniform
// thicknesses. Z must be sorted ascending.
type Explicit struct {
	Z []float64
}

func (r Explicit) String() string {
	return fmt.Sprintf("explicit-boundaries n=%d", len(r.Z))
}

func (r Explicit) boundaries() ([]float64, error) {
	if len(r.Z) < 2 {
		return nil, fmt.Errorf("%w: explicit boundaries need at least 2 z values", params.ErrInvalidParameter)
	}
	if !sort.Float64sAreSorted(r.Z) {
		return nil, fmt.Errorf("%w: explicit boundaries must be sorted ascending", params.ErrInvalidParameter)
	}
	for i := 1; i < len(r.Z); i++ {
		if r.Z[i] == r.Z[i-1] {
			return nil, fmt.Errorf("%w: duplicate boundary %g", params.ErrInvalidParameter, r.Z[i])
		}
	}
	return append([]float64(nil), r.Z...), nil
}

// FromConfig builds the configured rule. Missing from/to default to the
// cloud's Z extent.
func FromConfig(cfg *params.Config, zmin, zmax float64) (Rule, error) {
	from := params.Float(cfg.SliceFrom, zmin)
	to := params.Float(cfg.SliceTo, zmax)
	switch kind := params.String(cfg.SlicingRule, params.RuleFixedStep); kind {
	case params.RuleFixedStep:
		if cfg.SliceStep == nil {
			return nil, fmt.Errorf("%w: fixed-step rule needs slice_step", params.ErrInvalidParameter)
		}
		return FixedStep{From: from, To: to, Step: *cfg.SliceStep}, nil
	case params.RuleFixedCount:
		if cfg.SliceCount == nil {
			return nil, fmt.Errorf("%w: fixed-count rule needs slice_count", params.ErrInvalidParameter)
		}
		return FixedCount{From: from, To: to, Count: *cfg.SliceCount}, nil
	case params.RuleExplicit:
		return Explicit{Z: cfg.Boundaries}, nil
	default:
		return nil, fmt.Errorf("%w: unknown slicing rule %q", params.ErrInvalidParameter, kind)
	}
}

// Slice is one horizontal Z-band of the cloud. Points holds indices into
// the source cloud whose Z falls in [ZLo, ZHi); membership is invariant
// unless the cloud is re-sliced.
type Slice struct {
	Index    int
	ZLo, ZHi float64
	Points   []int
}

// ZMid returns the midplane of the slice interval.
func (s *Slice) ZMid() float64 { return (s.ZLo + s.ZHi) / 2 }

// Thickness returns the slice's Z extent.
func (s *Slice) Thickness() float64 { return s.ZHi - s.ZLo }

// Run partitions the cloud according to the rule. Every point with
// boundaries[0] <= z < boundaries[last] lands in exactly one slice
// (half-open intervals, lower-inclusive). Points outside the configured
// range are left unassigned.
func Run(c *cloud.Cloud, r Rule) ([]Slice, error) {
	bs, err := r.boundaries()
	if err != nil {
		return nil, err
	}

	slices := make([]Slice, len(bs)-1)
	for i := range slices {
		slices[i] = Slice{Index: i, ZLo: bs[i], ZHi: bs[i+1]}
	}

	for i := 0; i < c.Len(); i++ {
		z := c.At(i).Z
		// Binary search for the band with ZLo <= z < ZHi.
		k := sort.SearchFloat64s(bs, z)
		if k < len(bs) && bs[k] == z {
			// On a boundary: lower-inclusive, so it belongs to the band
			// starting here (if any).
			if k < len(slices) {
				slices[k].Points = append(slices[k].Points, i)
			}
			continue
		}
		if k == 0 || k >= len(bs) {
			continue // below or above the sliced range
		}
		slices[k-1].Points = append(slices[k-1].Points, i)
	}
	return slices, nil
}
