// Package metrics collects bookkeeping for one processing run: conflict
// counts, displacement statistics, topology outcomes, and per-phase timings.
// The tracker is request-scoped and not safe for concurrent use; the pipeline
// records into it from a single goroutine.
package metrics

import (
	"math"
	"time"

	"github.com/geoclear/engine/pkg/detect"
)

// Phase names the pipeline stages tracked individually.
type Phase string

const (
	PhaseDetection    Phase = "detection"
	PhaseDisplacement Phase = "displacement"
	PhaseTopology     Phase = "topology"
	PhaseDepth        Phase = "depth"
)

// Report is the summary attached to a processing result.
type Report struct {
	ConflictsDetected int     `json:"conflicts_detected"`
	ConflictsResolved int     `json:"conflicts_resolved"`
	SuccessRate       float64 `json:"success_rate_percent"`

	TotalFeatures     int `json:"total_features"`
	FeaturesDisplaced int `json:"features_displaced"`
	FeaturesUnchanged int `json:"features_unchanged"`

	TotalDisplacement float64 `json:"total_displacement"`
	AvgDisplacement   float64 `json:"average_displacement"`
	MaxDisplacement   float64 `json:"max_displacement"`
	MinDisplacement   float64 `json:"min_displacement"`

	JunctionsDetected  int  `json:"junctions_detected"`
	JunctionsPreserved int  `json:"junctions_preserved"`
	TopologyBreaks     int  `json:"topology_breaks"`
	TopologyPreserved  bool `json:"topology_preserved"`

	ConflictsByKind map[string]int `json:"conflicts_by_kind"`

	TotalDuration time.Duration     `json:"-"`
	TotalMillis   float64           `json:"processing_time_ms"`
	PhaseMillis   map[Phase]float64 `json:"phase_time_ms"`
}

// Tracker accumulates metrics as the pipeline advances through a request.
type Tracker struct {
	report Report

	started     time.Time
	phaseStarts map[Phase]time.Time
	now         func() time.Time
}

// NewTracker returns a tracker ready for one request.
func NewTracker() *Tracker {
	t := &Tracker{
		phaseStarts: make(map[Phase]time.Time),
		now:         time.Now,
	}
	t.report.ConflictsByKind = make(map[string]int)
	t.report.PhaseMillis = make(map[Phase]float64)
	t.report.MinDisplacement = math.Inf(1)
	t.report.TopologyPreserved = true
	t.started = t.now()
	return t
}

// StartPhase marks the beginning of a pipeline stage.
func (t *Tracker) StartPhase(p Phase) {
	t.phaseStarts[p] = t.now()
}

// EndPhase closes a stage and records its duration. Unknown phases are a
// no-op and return zero.
func (t *Tracker) EndPhase(p Phase) time.Duration {
	start, ok := t.phaseStarts[p]
	if !ok {
		return 0
	}
	d := t.now().Sub(start)
	t.report.PhaseMillis[p] = float64(d) / float64(time.Millisecond)
	delete(t.phaseStarts, p)
	return d
}

// RecordConflicts tallies the detected conflict set, broken down by finding
// kind.
func (t *Tracker) RecordConflicts(conflicts []detect.Conflict) {
	t.report.ConflictsDetected = len(conflicts)
	for _, c := range conflicts {
		for _, f := range c.Findings {
			t.report.ConflictsByKind[string(f.Kind())]++
		}
	}
}

// RecordDisplacement records one feature's outcome.
func (t *Tracker) RecordDisplacement(magnitude float64, displaced bool) {
	if !displaced {
		t.report.FeaturesUnchanged++
		return
	}
	t.report.FeaturesDisplaced++
	t.report.TotalDisplacement += magnitude
	t.report.MaxDisplacement = math.Max(t.report.MaxDisplacement, magnitude)
	t.report.MinDisplacement = math.Min(t.report.MinDisplacement, magnitude)
}

// RecordResolved records how many conflicts produced an applied correction.
func (t *Tracker) RecordResolved(n int) {
	t.report.ConflictsResolved = n
}

// RecordTopology records junction preservation results.
func (t *Tracker) RecordTopology(detected, broken int) {
	t.report.JunctionsDetected = detected
	t.report.TopologyBreaks = broken
	t.report.JunctionsPreserved = detected - broken
	t.report.TopologyPreserved = broken == 0
}

// Finalize computes derived values and returns the completed report.
func (t *Tracker) Finalize(totalFeatures int) Report {
	r := t.report
	r.TotalFeatures = totalFeatures

	if r.FeaturesDisplaced > 0 {
		r.AvgDisplacement = r.TotalDisplacement / float64(r.FeaturesDisplaced)
	}
	if math.IsInf(r.MinDisplacement, 1) {
		r.MinDisplacement = 0
	}
	if r.ConflictsDetected > 0 {
		r.SuccessRate = math.Round(float64(r.ConflictsResolved)/float64(r.ConflictsDetected)*10000) / 100
	}

	r.TotalDuration = t.now().Sub(t.started)
	r.TotalMillis = float64(r.TotalDuration) / float64(time.Millisecond)
	return r
}
