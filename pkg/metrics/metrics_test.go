package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclear/engine/pkg/detect"
)

func TestPhaseTimings(t *testing.T) {
	tr := NewTracker()

	clock := time.Unix(0, 0)
	tr.now = func() time.Time { return clock }

	tr.StartPhase(PhaseDetection)
	clock = clock.Add(250 * time.Millisecond)
	d := tr.EndPhase(PhaseDetection)

	assert.Equal(t, 250*time.Millisecond, d)
	assert.InDelta(t, 250.0, tr.report.PhaseMillis[PhaseDetection], 1e-9)

	assert.Zero(t, tr.EndPhase(PhaseTopology), "unstarted phase is a no-op")
}

func TestRecordConflicts(t *testing.T) {
	tr := NewTracker()
	tr.RecordConflicts([]detect.Conflict{
		{Findings: []detect.Finding{detect.BufferOverlap{Area: 1}, detect.Crossing{}}},
		{Findings: []detect.Finding{detect.BufferOverlap{Area: 2}}},
	})

	assert.Equal(t, 2, tr.report.ConflictsDetected)
	assert.Equal(t, 2, tr.report.ConflictsByKind[string(detect.KindBufferOverlap)])
	assert.Equal(t, 1, tr.report.ConflictsByKind[string(detect.KindCrossing)])
}

func TestDisplacementStats(t *testing.T) {
	tr := NewTracker()
	tr.RecordDisplacement(3.0, true)
	tr.RecordDisplacement(5.0, true)
	tr.RecordDisplacement(0, false)
	tr.RecordConflicts(make([]detect.Conflict, 4))
	tr.RecordResolved(3)
	tr.RecordTopology(2, 0)

	r := tr.Finalize(3)
	assert.Equal(t, 3, r.TotalFeatures)
	assert.Equal(t, 2, r.FeaturesDisplaced)
	assert.Equal(t, 1, r.FeaturesUnchanged)
	assert.InDelta(t, 4.0, r.AvgDisplacement, 1e-9)
	assert.InDelta(t, 5.0, r.MaxDisplacement, 1e-9)
	assert.InDelta(t, 3.0, r.MinDisplacement, 1e-9)
	assert.InDelta(t, 75.0, r.SuccessRate, 1e-9)
	assert.True(t, r.TopologyPreserved)
	assert.Equal(t, 2, r.JunctionsPreserved)
}

func TestFinalizeEmptyRun(t *testing.T) {
	tr := NewTracker()
	r := tr.Finalize(0)

	require.Zero(t, r.FeaturesDisplaced)
	assert.Zero(t, r.MinDisplacement, "no displacement leaves min at zero, not +inf")
	assert.Zero(t, r.SuccessRate)
	assert.True(t, r.TopologyPreserved)
}

func TestTopologyBreaks(t *testing.T) {
	tr := NewTracker()
	tr.RecordTopology(3, 1)

	r := tr.Finalize(5)
	assert.False(t, r.TopologyPreserved)
	assert.Equal(t, 2, r.JunctionsPreserved)
	assert.Equal(t, 1, r.TopologyBreaks)
}
