package conflictgraph

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/feature"
)

func mustFeature(t *testing.T, id string, line orb.LineString, p feature.Priority) feature.Feature {
	t.Helper()
	f, err := feature.New(id, line, p)
	require.NoError(t, err)
	return f
}

func TestToDOT(t *testing.T) {
	hw := mustFeature(t, "hw", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)
	rd := mustFeature(t, "rd", orb.LineString{{0, 1}, {10, 1}}, feature.PriorityRoad)
	solo := mustFeature(t, "solo", orb.LineString{{0, 99}, {10, 99}}, feature.PriorityStreet)

	conflicts := []detect.Conflict{{
		A: hw, B: rd, Severity: 12.5,
		Findings: []detect.Finding{detect.BufferOverlap{Area: 3}},
	}}

	dot := ToDOT([]feature.Feature{rd, hw, solo}, conflicts, Options{})

	assert.True(t, strings.HasPrefix(dot, "graph conflicts {"))
	assert.Contains(t, dot, `"hw"`)
	assert.Contains(t, dot, `"solo"`, "features without conflicts still get nodes")
	assert.Contains(t, dot, `"hw" -- "rd";`)
	assert.Contains(t, dot, "fillcolor=tomato", "top priority gets the hottest fill")
	assert.NotContains(t, dot, "severity", "plain edges carry no label")

	// Node order is deterministic regardless of input order.
	assert.Less(t, strings.Index(dot, `"hw"`), strings.Index(dot, `"rd"`))
}

func TestToDOTDetailed(t *testing.T) {
	hw := mustFeature(t, "hw", orb.LineString{{0, 0}, {10, 0}}, feature.PriorityHighway)
	rd := mustFeature(t, "rd", orb.LineString{{5, -5}, {5, 5}}, feature.PriorityRoad)

	conflicts := []detect.Conflict{{
		A: hw, B: rd, Severity: 20,
		Findings: []detect.Finding{detect.Crossing{Points: []orb.Point{{5, 0}}}},
	}}

	dot := ToDOT([]feature.Feature{hw, rd}, conflicts, Options{Detailed: true})
	assert.Contains(t, dot, "severity 20.0")
	assert.Contains(t, dot, "CROSSING_CONFLICT")
	assert.Contains(t, dot, "color=red", "crossings are highlighted")
}
