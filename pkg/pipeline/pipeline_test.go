package pipeline

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclear/engine/pkg/errors"
)

func testRunner() *Runner {
	return NewRunner(log.NewWithOptions(io.Discard, log.Options{}))
}

func resultFor(t *testing.T, res *Result, id string) FeatureResult {
	t.Helper()
	for _, fr := range res.Results {
		if fr.ID == id {
			return fr
		}
	}
	t.Fatalf("no result for feature %q", id)
	return FeatureResult{}
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	var opts Options
	require.NoError(t, opts.ValidateAndSetDefaults())

	assert.InDelta(t, DefaultMinClearance, opts.MinClearance, 1e-9)
	assert.InDelta(t, DefaultForceStrength, opts.ForceStrength, 1e-9)
	assert.InDelta(t, DefaultAngleThreshold, opts.AngleThreshold, 1e-9)
	assert.InDelta(t, DefaultSnapTolerance, opts.SnapTolerance, 1e-9)
	assert.Equal(t, DefaultMaxIterations, opts.MaxIterations)

	// Idempotent: explicit values survive a second call.
	opts2 := Options{MinClearance: 5}
	require.NoError(t, opts2.ValidateAndSetDefaults())
	require.NoError(t, opts2.ValidateAndSetDefaults())
	assert.InDelta(t, 5.0, opts2.MinClearance, 1e-9)
}

func TestExecuteIdempotentWithoutConflicts(t *testing.T) {
	inputs := []FeatureInput{
		{ID: "a", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P1_HIGHWAY"},
		{ID: "b", Geometry: "LINESTRING(0 500, 100 500)", Priority: "P2_MAIN_ROAD"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	assert.Zero(t, res.TotalConflictsDetected)
	assert.True(t, res.TopologyPreserved)
	for _, fr := range res.Results {
		assert.False(t, fr.WasDisplaced)
		assert.Equal(t, fr.OriginalGeometry, fr.CorrectedGeometry)
		assert.Zero(t, fr.DisplacementMagnitude)
		assert.Empty(t, fr.Conflicts)
	}
}

func TestExecutePriorityInvariant(t *testing.T) {
	// Parallel near miss: the P2 road must move, the P1 highway must not.
	inputs := []FeatureInput{
		{ID: "highway", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P1_HIGHWAY"},
		{ID: "road", Geometry: "LINESTRING(0 2, 100 2)", Priority: "P2_MAIN_ROAD"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{MinClearance: 2.0})
	require.NoError(t, err)
	require.Positive(t, res.TotalConflictsDetected)

	hw := resultFor(t, res, "highway")
	assert.False(t, hw.WasDisplaced, "higher priority feature never moves")
	assert.Equal(t, hw.OriginalGeometry, hw.CorrectedGeometry)
	assert.Empty(t, hw.Conflicts, "only the mover carries conflict metadata")

	rd := resultFor(t, res, "road")
	assert.True(t, rd.WasDisplaced)
	assert.Positive(t, rd.DisplacementMagnitude)
	require.Len(t, rd.Conflicts, 1)
	assert.Equal(t, "highway", rd.Conflicts[0].OtherFeatureID)
	assert.Positive(t, rd.Conflicts[0].OverlapAmount)
	assert.Positive(t, rd.Conflicts[0].DisplacementVector[1], "road pushed away from highway")
}

func TestExecuteSharedJunctionPreserved(t *testing.T) {
	// B shares endpoint (100, 0) with highway A and also conflicts with a
	// parallel highway, so B is displaced. Its shared endpoint must come
	// back to the junction.
	inputs := []FeatureInput{
		{ID: "trunk", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P1_HIGHWAY"},
		{ID: "spur", Geometry: "LINESTRING(100 0, 200 2)", Priority: "P3_STREET"},
		{ID: "other", Geometry: "LINESTRING(100 4, 200 4)", Priority: "P1_HIGHWAY"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{})
	require.NoError(t, err)
	assert.True(t, res.TopologyPreserved)

	spur := resultFor(t, res, "spur")
	require.True(t, spur.WasDisplaced)
	assert.Contains(t, spur.CorrectedGeometry, "LINESTRING(100 0",
		"shared endpoint snapped back to the junction")
}

func TestExecuteSnapLeavesFixedFeatureAlone(t *testing.T) {
	// The spur's start sits a quantization hair away from the trunk's end, so
	// both endpoints land in the same junction. The spur is the only mover;
	// the fixed trunk must keep its input geometry verbatim even though the
	// spur is listed first.
	inputs := []FeatureInput{
		{ID: "spur", Geometry: "LINESTRING(10.004 0, 110 3)", Priority: "P3_STREET"},
		{ID: "trunk", Geometry: "LINESTRING(0 0, 10 0)", Priority: "P1_HIGHWAY"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{})
	require.NoError(t, err)
	assert.True(t, res.TopologyPreserved)

	trunk := resultFor(t, res, "trunk")
	assert.False(t, trunk.WasDisplaced)
	assert.Equal(t, trunk.OriginalGeometry, trunk.CorrectedGeometry,
		"fixed feature survives resolution untouched")

	spur := resultFor(t, res, "spur")
	require.True(t, spur.WasDisplaced)
	assert.Contains(t, spur.CorrectedGeometry, "LINESTRING(10 0",
		"displaced feature's endpoint lands on the quantized junction point")
}

func TestExecuteSuperposition(t *testing.T) {
	// A street squeezed between two highways accumulates the vector sum of
	// both conflicts.
	inputs := []FeatureInput{
		{ID: "north", Geometry: "LINESTRING(0 4, 100 4)", Priority: "P1_HIGHWAY"},
		{ID: "mid", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P3_STREET"},
		{ID: "south", Geometry: "LINESTRING(0 -4, 100 -4)", Priority: "P1_HIGHWAY"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{})
	require.NoError(t, err)

	mid := resultFor(t, res, "mid")
	require.Len(t, mid.Conflicts, 2)

	var sumX, sumY float64
	for _, c := range mid.Conflicts {
		sumX += c.DisplacementVector[0]
		sumY += c.DisplacementVector[1]
	}
	if mid.WasDisplaced {
		assert.InDelta(t, math.Hypot(sumX, sumY), mid.DisplacementMagnitude, 1e-9,
			"net displacement equals the sum of per-conflict vectors")
	} else {
		assert.LessOrEqual(t, math.Hypot(sumX, sumY), 0.001,
			"symmetric pushes cancel out")
	}
}

func TestExecuteAbortsBatchOnBadInput(t *testing.T) {
	tests := []struct {
		name   string
		inputs []FeatureInput
		code   errors.Code
	}{
		{
			name:   "empty batch",
			inputs: nil,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name: "malformed geometry",
			inputs: []FeatureInput{
				{ID: "ok", Geometry: "LINESTRING(0 0, 10 0)", Priority: "P1_HIGHWAY"},
				{ID: "bad", Geometry: "LINESTRING(0 0", Priority: "P2_MAIN_ROAD"},
			},
			code: errors.ErrCodeInvalidGeometry,
		},
		{
			name: "single vertex",
			inputs: []FeatureInput{
				{ID: "pt", Geometry: "LINESTRING(5 5, 5 5)", Priority: "P1_HIGHWAY"},
			},
			code: errors.ErrCodeInvalidGeometry,
		},
		{
			name: "unknown priority",
			inputs: []FeatureInput{
				{ID: "x", Geometry: "LINESTRING(0 0, 10 0)", Priority: "P9_BANANA"},
			},
			code: errors.ErrCodeInvalidPriority,
		},
		{
			name: "duplicate id",
			inputs: []FeatureInput{
				{ID: "dup", Geometry: "LINESTRING(0 0, 10 0)", Priority: "P1_HIGHWAY"},
				{ID: "dup", Geometry: "LINESTRING(0 5, 10 5)", Priority: "P2_MAIN_ROAD"},
			},
			code: errors.ErrCodeInvalidInput,
		},
	}

	r := testRunner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Execute(context.Background(), tt.inputs, Options{})
			require.Error(t, err)
			assert.Nil(t, res, "no partial results on abort")
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestExecuteDepthMetadata(t *testing.T) {
	inputs := []FeatureInput{
		{ID: "highway", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P1_HIGHWAY"},
		{ID: "road", Geometry: "LINESTRING(0 2, 100 2)", Priority: "P2_MAIN_ROAD"},
	}

	t.Run("disabled leaves fields absent", func(t *testing.T) {
		res, err := testRunner().Execute(context.Background(), inputs, Options{})
		require.NoError(t, err)
		rd := resultFor(t, res, "road")
		require.NotEmpty(t, rd.Conflicts)
		assert.Nil(t, rd.Conflicts[0].ZIndex)
	})

	t.Run("enabled populates z order", func(t *testing.T) {
		res, err := testRunner().Execute(context.Background(), inputs, Options{Enable3DDepth: true})
		require.NoError(t, err)
		rd := resultFor(t, res, "road")
		require.NotEmpty(t, rd.Conflicts)
		require.NotNil(t, rd.Conflicts[0].ZIndex)
		assert.True(t, rd.Conflicts[0].VisualDepthFlag)
	})
}

func TestExecuteMetricsReport(t *testing.T) {
	inputs := []FeatureInput{
		{ID: "highway", Geometry: "LINESTRING(0 0, 100 0)", Priority: "P1_HIGHWAY"},
		{ID: "road", Geometry: "LINESTRING(0 2, 100 2)", Priority: "P2_MAIN_ROAD"},
	}

	res, err := testRunner().Execute(context.Background(), inputs, Options{})
	require.NoError(t, err)

	m := res.Metrics
	assert.Equal(t, 2, m.TotalFeatures)
	assert.Equal(t, res.TotalConflictsDetected, m.ConflictsDetected)
	assert.Equal(t, 1, m.FeaturesDisplaced)
	assert.Equal(t, 1, m.FeaturesUnchanged)
	assert.Positive(t, m.TotalDisplacement)
	assert.NotEmpty(t, m.ConflictsByKind)
}
