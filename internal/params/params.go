// Package params holds the user-facing parameter surface of the pipeline.
// The JSON schema uses pointer fields so a config file can set only the
// values it cares about; unset fields fall back to defaults.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrInvalidParameter marks a rejected slicing/thickness/grid input. It is
// fatal to the requested operation but never to previously computed results.
var ErrInvalidParameter = errors.New("invalid parameter")

// Slicing rule kinds. The rule set is small and fixed.
const (
	RuleFixedStep  = "fixed-step"
	RuleFixedCount = "fixed-count"
	RuleExplicit   = "explicit-boundaries"
)

// Config is the root parameter set. The schema doubles as the on-disk
// config file format, so pointer fields distinguish "unset" from zero.
type Config struct {
	// Slicing rule selection and inputs.
	SlicingRule *string   `json:"slicing_rule,omitempty"` // fixed-step | fixed-count | explicit-boundaries
	SliceFrom   *float64  `json:"slice_from,omitempty"`
	SliceTo     *float64  `json:"slice_to,omitempty"`
	SliceStep   *float64  `json:"slice_step,omitempty"`
	SliceCount  *int      `json:"slice_count,omitempty"`
	Boundaries  []float64 `json:"boundaries,omitempty"` // sorted z values for explicit rule

	// Centroid extraction.
	MinWallThickness *float64 `json:"min_wall_thickness,omitempty"`
	BaseTolerance    *float64 `json:"base_tolerance,omitempty"`     // starting neighbourhood radius
	ToleranceGrowth  *float64 `json:"tolerance_growth,omitempty"`   // calibration growth factor
	CheckFraction    *float64 `json:"check_fraction,omitempty"`     // fraction of points sampled during calibration
	MinSlicePoints   *int     `json:"min_slice_points,omitempty"`   // below this a slice yields no centroids
	MinSegmentPoints *int     `json:"min_segment_points,omitempty"` // below this a wall segment is dropped

	// Polyline tracing.
	SimplifyTolerance *float64 `json:"simplify_tolerance,omitempty"` // Douglas-Peucker tolerance
	LengthPercentile  *float64 `json:"length_percentile,omitempty"`  // percentile for short-chain rejection
	MinChainPoints    *int     `json:"min_chain_points,omitempty"`

	// Mesh grid.
	GridDX *float64 `json:"grid_dx,omitempty"`
	GridDY *float64 `json:"grid_dy,omitempty"`

	// Stage execution.
	Workers *int `json:"workers,omitempty"` // parallel slice workers, 0 = GOMAXPROCS
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// Default returns the built-in parameter set. Length units are metres,
// matching the original survey tooling.
func Default() *Config {
	return &Config{
		SlicingRule:       ptrString(RuleFixedStep),
		SliceStep:         ptrFloat64(0.5),
		MinWallThickness:  ptrFloat64(0.30),
		BaseTolerance:     ptrFloat64(0.01),
		ToleranceGrowth:   ptrFloat64(1.35),
		CheckFraction:     ptrFloat64(0.10),
		MinSlicePoints:    ptrInt(10),
		MinSegmentPoints:  ptrInt(2),
		SimplifyTolerance: ptrFloat64(0.025),
		LengthPercentile:  ptrFloat64(1),
		MinChainPoints:    ptrInt(2),
		GridDX:            ptrFloat64(0.25),
		GridDY:            ptrFloat64(0.25),
		Workers:           ptrInt(0),
	}
}

// Load reads a JSON config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := Default()
	cfg.Merge(&file)
	return cfg, nil
}

// Merge overlays every set field of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.SlicingRule != nil {
		c.SlicingRule = other.SlicingRule
	}
	if other.SliceFrom != nil {
		c.SliceFrom = other.SliceFrom
	}
	if other.SliceTo != nil {
		c.SliceTo = other.SliceTo
	}
	if other.SliceStep != nil {
		c.SliceStep = other.SliceStep
	}
	if other.SliceCount != nil {
		c.SliceCount = other.SliceCount
	}
	if other.Boundaries != nil {
		c.Boundaries = other.Boundaries
	}
	if other.MinWallThickness != nil {
		c.MinWallThickness = other.MinWallThickness
	}
	if other.BaseTolerance != nil {
		c.BaseTolerance = other.BaseTolerance
	}
	if other.ToleranceGrowth != nil {
		c.ToleranceGrowth = other.ToleranceGrowth
	}
	if other.CheckFraction != nil {
		c.CheckFraction = other.CheckFraction
	}
	if other.MinSlicePoints != nil {
		c.MinSlicePoints = other.MinSlicePoints
	}
	if other.MinSegmentPoints != nil {
		c.MinSegmentPoints = other.MinSegmentPoints
	}
	if other.SimplifyTolerance != nil {
		c.SimplifyTolerance = other.SimplifyTolerance
	}
	if other.LengthPercentile != nil {
		c.LengthPercentile = other.LengthPercentile
	}
	if other.MinChainPoints != nil {
		c.MinChainPoints = other.MinChainPoints
	}
	if other.GridDX != nil {
		c.GridDX = other.GridDX
	}
	if other.GridDY != nil {
		c.GridDY = other.GridDY
	}
	if other.Workers != nil {
		c.Workers = other.Workers
	}
}

// Validate checks every set field. Violations wrap ErrInvalidParameter.
func (c *Config) Validate() error {
	if c.MinWallThickness != nil && *c.MinWallThickness <= 0 {
		return fmt.Errorf("%w: min_wall_thickness %v must be positive", ErrInvalidParameter, *c.MinWallThickness)
	}
	if c.GridDX != nil && *c.GridDX <= 0 {
		return fmt.Errorf("%w: grid_dx %v must be positive", ErrInvalidParameter, *c.GridDX)
	}
	if c.GridDY != nil && *c.GridDY <= 0 {
		return fmt.Errorf("%w: grid_dy %v must be positive", ErrInvalidParameter, *c.GridDY)
	}
	if c.SimplifyTolerance != nil && *c.SimplifyTolerance < 0 {
		return fmt.Errorf("%w: simplify_tolerance %v must not be negative", ErrInvalidParameter, *c.SimplifyTolerance)
	}
	if c.CheckFraction != nil && (*c.CheckFraction <= 0 || *c.CheckFraction > 1) {
		return fmt.Errorf("%w: check_fraction %v must be in (0, 1]", ErrInvalidParameter, *c.CheckFraction)
	}
	if c.ToleranceGrowth != nil && *c.ToleranceGrowth <= 1 {
		return fmt.Errorf("%w: tolerance_growth %v must be > 1", ErrInvalidParameter, *c.ToleranceGrowth)
	}
	if c.LengthPercentile != nil && (*c.LengthPercentile < 0 || *c.LengthPercentile > 100) {
		return fmt.Errorf("%w: length_percentile %v must be in [0, 100]", ErrInvalidParameter, *c.LengthPercentile)
	}
	if c.SlicingRule != nil {
		switch *c.SlicingRule {
		case RuleFixedStep:
			if c.SliceStep != nil && *c.SliceStep <= 0 {
				return fmt.Errorf("%w: slice_step %v must be positive", ErrInvalidParameter, *c.SliceStep)
			}
		case RuleFixedCount:
			if c.SliceCount != nil && *c.SliceCount < 1 {
				return fmt.Errorf("%w: slice_count %d must be >= 1", ErrInvalidParameter, *c.SliceCount)
			}
		case RuleExplicit:
			if len(c.Boundaries) < 2 {
				return fmt.Errorf("%w: explicit-boundaries needs at least 2 z values", ErrInvalidParameter)
			}
			if !sort.Float64sAreSorted(c.Boundaries) {
				return fmt.Errorf("%w: boundaries must be sorted ascending", ErrInvalidParameter)
			}
		default:
			return fmt.Errorf("%w: unknown slicing_rule %q", ErrInvalidParameter, *c.SlicingRule)
		}
	}
	if c.SliceFrom != nil && c.SliceTo != nil && *c.SliceFrom >= *c.SliceTo {
		return fmt.Errorf("%w: slice_from %v must be below slice_to %v", ErrInvalidParameter, *c.SliceFrom, *c.SliceTo)
	}
	return nil
}

// Float returns *p, or def when p is nil.
func Float(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

// Int returns *p, or def when p is nil.
func Int(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

// String returns *p, or def when p is nil.
func String(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}
