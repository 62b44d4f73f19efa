package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"slice_step": 0.2,
		"min_wall_thickness": 0.4,
		"workers": 2
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.2, *cfg.SliceStep)
	assert.Equal(t, 0.4, *cfg.MinWallThickness)
	assert.Equal(t, 2, *cfg.Workers)
	// Unset fields keep their defaults.
	assert.Equal(t, RuleFixedStep, *cfg.SlicingRule)
	assert.Equal(t, 0.25, *cfg.GridDX)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	t.Parallel()

	base := Default()
	step := 0.1
	base.Merge(&Config{SliceStep: &step})
	assert.Equal(t, 0.1, *base.SliceStep)
	assert.Equal(t, 0.30, *base.MinWallThickness)

	base.Merge(nil) // no-op
	assert.Equal(t, 0.1, *base.SliceStep)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	neg := -0.5
	zero := 0.0
	lowGrowth := 1.0
	badFrac := 1.5
	badPct := 150.0
	count := 0
	rule := "spiral"

	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative wall thickness", Config{MinWallThickness: &neg}},
		{"zero grid dx", Config{GridDX: &zero}},
		{"negative simplify tolerance", Config{SimplifyTolerance: &neg}},
		{"growth not above 1", Config{ToleranceGrowth: &lowGrowth}},
		{"check fraction above 1", Config{CheckFraction: &badFrac}},
		{"percentile above 100", Config{LengthPercentile: &badPct}},
		{"zero slice count", Config{SlicingRule: ptrString(RuleFixedCount), SliceCount: &count}},
		{"unknown rule", Config{SlicingRule: &rule}},
		{"unsorted boundaries", Config{SlicingRule: ptrString(RuleExplicit), Boundaries: []float64{1, 0, 2}}},
		{"from at or above to", Config{SliceFrom: &badFrac, SliceTo: &lowGrowth}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.cfg.Validate(), ErrInvalidParameter)
		})
	}
}

func TestPointerHelpers(t *testing.T) {
	t.Parallel()

	v := 2.5
	assert.Equal(t, 2.5, Float(&v, 1))
	assert.Equal(t, 1.0, Float(nil, 1))
	n := 7
	assert.Equal(t, 7, Int(&n, 3))
	assert.Equal(t, 3, Int(nil, 3))
	s := "x"
	assert.Equal(t, "x", String(&s, "y"))
	assert.Equal(t, "y", String(nil, "y"))
}
