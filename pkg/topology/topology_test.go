package topology

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclear/engine/pkg/feature"
)

func mustFeature(t *testing.T, id string, line orb.LineString, p feature.Priority) feature.Feature {
	t.Helper()
	f, err := feature.New(id, line, p)
	require.NoError(t, err)
	return f
}

func TestFindJunctions(t *testing.T) {
	tests := []struct {
		name  string
		feats []feature.Feature
		want  int
	}{
		{
			name: "shared endpoint forms a junction",
			feats: []feature.Feature{
				mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway),
				mustFeature(t, "b", orb.LineString{{10, 0}, {20, 0}}, feature.PriorityRoad),
			},
			want: 1,
		},
		{
			name: "disjoint endpoints form none",
			feats: []feature.Feature{
				mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway),
				mustFeature(t, "b", orb.LineString{{0, 5}, {10, 5}}, feature.PriorityRoad),
			},
			want: 0,
		},
		{
			name: "near-coincident endpoints quantize together",
			feats: []feature.Feature{
				mustFeature(t, "a", orb.LineString{{0, 0}, {10.001, 0.002}}, feature.PriorityHighway),
				mustFeature(t, "b", orb.LineString{{9.999, -0.002}, {20, 0}}, feature.PriorityRoad),
			},
			want: 1,
		},
		{
			name: "three-way junction",
			feats: []feature.Feature{
				mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway),
				mustFeature(t, "b", orb.LineString{{10, 0}, {20, 0}}, feature.PriorityRoad),
				mustFeature(t, "c", orb.LineString{{10, 0}, {10, 10}}, feature.PriorityStreet),
			},
			want: 1,
		},
	}

	p := NewPreserver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.FindJunctions(tt.feats)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestFindJunctionsMembers(t *testing.T) {
	feats := []feature.Feature{
		mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway),
		mustFeature(t, "b", orb.LineString{{10, 0}, {20, 0}}, feature.PriorityRoad),
	}

	p := NewPreserver()
	junctions := p.FindJunctions(feats)
	require.Len(t, junctions, 1)

	j := junctions[0]
	assert.Equal(t, orb.Point{10, 0}, j.Point)
	require.Len(t, j.Members, 2)
	assert.Contains(t, j.Members, Endpoint{FeatureID: "a", IsStart: false})
	assert.Contains(t, j.Members, Endpoint{FeatureID: "b", IsStart: true})
}

func TestSnapRestoresSharedEndpoint(t *testing.T) {
	// A and B share (10, 0). B is displaced; its start must come home while
	// interior vertices keep the displaced position.
	a := mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)
	b := mustFeature(t, "b", orb.LineString{{10, 0}, {15, 3}, {20, 0}}, feature.PriorityRoad)

	p := NewPreserver()
	junctions := p.FindJunctions([]feature.Feature{a, b})
	require.Len(t, junctions, 1)

	displaced := b
	displaced.Line = orb.LineString{{10, 5}, {15, 8}, {20, 5}}

	out, snapped := p.Snap(junctions, []feature.Feature{a, displaced}, map[string]bool{"b": true})
	assert.Equal(t, 1, snapped)

	var snappedB feature.Feature
	for _, f := range out {
		if f.ID == "b" {
			snappedB = f
		}
	}
	assert.Equal(t, orb.Point{10, 0}, snappedB.Line[0], "start snapped back to junction")
	assert.Equal(t, orb.Point{15, 8}, snappedB.Line[1], "interior vertex keeps displacement")
	assert.Equal(t, orb.Point{20, 5}, snappedB.Line[2], "free endpoint keeps displacement")

	// Input slice untouched.
	assert.Equal(t, orb.Point{10, 5}, displaced.Line[0])
}

func TestSnapNoJunctionsNoChange(t *testing.T) {
	a := mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)

	p := NewPreserver()
	out, snapped := p.Snap(nil, []feature.Feature{a}, map[string]bool{"a": true})
	assert.Zero(t, snapped)
	require.Len(t, out, 1)
	assert.Equal(t, a.Line, out[0].Line)
}

func TestSnapLeavesUndisplacedMembers(t *testing.T) {
	// Endpoints that differ within quantization noise share one junction. A
	// member that never moved keeps its own coordinates regardless of input
	// order; only displaced members are pulled onto the junction point.
	b := mustFeature(t, "b", orb.LineString{{10.004, 0}, {20, 0}}, feature.PriorityRoad)
	a := mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)

	p := NewPreserver()
	junctions := p.FindJunctions([]feature.Feature{b, a})
	require.Len(t, junctions, 1)
	assert.Equal(t, orb.Point{10, 0}, junctions[0].Point,
		"junction sits on the quantized coordinate, not a raw endpoint")

	out, snapped := p.Snap(junctions, []feature.Feature{b, a}, nil)
	assert.Zero(t, snapped)
	assert.Equal(t, b.Line, out[0].Line)
	assert.Equal(t, a.Line, out[1].Line)

	// Displacing b pulls only b's start onto the junction.
	moved := b
	moved.Line = orb.LineString{{10.004, 4}, {20, 4}}
	out, snapped = p.Snap(junctions, []feature.Feature{moved, a}, map[string]bool{"b": true})
	assert.Equal(t, 1, snapped)
	assert.Equal(t, orb.Point{10, 0}, out[0].Line[0])
	assert.Equal(t, a.Line, out[1].Line)
}

func TestValidate(t *testing.T) {
	a := mustFeature(t, "a", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)
	b := mustFeature(t, "b", orb.LineString{{10, 0}, {20, 0}}, feature.PriorityRoad)

	p := NewPreserver()
	junctions := p.FindJunctions([]feature.Feature{a, b})
	require.Len(t, junctions, 1)

	t.Run("intact junction passes", func(t *testing.T) {
		violations := p.Validate(junctions, []feature.Feature{a, b})
		assert.Empty(t, violations)
	})

	t.Run("drift within tolerance passes", func(t *testing.T) {
		moved := b
		moved.Line = orb.LineString{{10.05, 0}, {20.05, 0}}
		violations := p.Validate(junctions, []feature.Feature{a, moved})
		assert.Empty(t, violations)
	})

	t.Run("broken junction reported", func(t *testing.T) {
		moved := b
		moved.Line = orb.LineString{{10, 5}, {20, 5}}
		violations := p.Validate(junctions, []feature.Feature{a, moved})
		require.Len(t, violations, 1)
		require.Len(t, violations[0].Drifted, 1)
		assert.Equal(t, "b", violations[0].Drifted[0].FeatureID)
	})
}

func TestPreserverOptions(t *testing.T) {
	p := NewPreserver(WithSnapTolerance(0.5), WithPrecision(1))
	assert.InDelta(t, 0.5, p.snapTolerance, 1e-9)
	assert.Equal(t, 1, p.precision)

	// Invalid values keep defaults.
	p = NewPreserver(WithSnapTolerance(-1), WithPrecision(-1))
	assert.InDelta(t, DefaultSnapTolerance, p.snapTolerance, 1e-9)
	assert.Equal(t, DefaultPrecision, p.precision)
}
