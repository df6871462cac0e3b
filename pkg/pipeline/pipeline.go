// Package pipeline provides the core conflict resolution pipeline.
//
// This package implements the complete detect → displace → snap pipeline that
// can be used by CLI and API components. By centralizing this logic, we ensure
// consistent behavior across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Detect: Pairwise multi-strategy conflict analysis across the batch
//  2. Displace: Priority resolution, per-conflict vectors, superposition
//  3. Topology: Junction snapping and connectivity validation
//  4. Depth: Optional cosmetic z-order and shadow metadata
//
// Stage boundaries are hard barriers: displacement only starts once the
// complete conflict set is known, and snapping only starts once every
// correction has been applied. Each stage consumes an immutable snapshot and
// produces new values; features are never mutated in place.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(logger)
//	opts := pipeline.Options{MinClearance: 2.0}
//	result, err := runner.Execute(ctx, inputs, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fr := range result.Results {
//	    fmt.Println(fr.ID, fr.WasDisplaced)
//	}
package pipeline

import (
	"time"

	"github.com/geoclear/engine/pkg/metrics"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMinClearance is the minimum visual gap between rendered
	// footprints, in map units.
	DefaultMinClearance = 2.0

	// DefaultForceStrength scales every repulsion vector.
	DefaultForceStrength = 1.0

	// DefaultAngleThreshold is the bearing difference, in degrees, under
	// which two features count as parallel.
	DefaultAngleThreshold = 15.0

	// DefaultSnapTolerance bounds how far an endpoint may sit from a
	// junction and still count as connected.
	DefaultSnapTolerance = 0.1

	// DefaultMaxIterations is reserved for callers running multiple
	// correction passes. The pipeline itself performs a single pass.
	DefaultMaxIterations = 1
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the resolution pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// MinClearance is the required gap between feature footprints.
	MinClearance float64 `json:"min_clearance,omitempty"`

	// ForceStrength scales repulsion magnitudes.
	ForceStrength float64 `json:"force_strength,omitempty"`

	// MaxIterations is accepted for API compatibility; the single-pass
	// pipeline does not loop, but callers may use it to drive repeat runs.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Enable3DDepth attaches z-order and shadow metadata to results.
	Enable3DDepth bool `json:"enable_3d_depth,omitempty"`

	// AngleThreshold is the parallel detection cutoff in degrees.
	AngleThreshold float64 `json:"angle_threshold,omitempty"`

	// SnapTolerance is the junction connectivity tolerance.
	SnapTolerance float64 `json:"snap_tolerance,omitempty"`

	// MaxDisplacement caps any single feature's accumulated correction.
	// Zero means unbounded.
	MaxDisplacement float64 `json:"max_displacement,omitempty"`

	// Workers bounds detection parallelism. Zero means one worker per CPU.
	Workers int `json:"workers,omitempty"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.MinClearance <= 0 {
		o.MinClearance = DefaultMinClearance
	}
	if o.ForceStrength <= 0 {
		o.ForceStrength = DefaultForceStrength
	}
	if o.AngleThreshold <= 0 {
		o.AngleThreshold = DefaultAngleThreshold
	}
	if o.SnapTolerance <= 0 {
		o.SnapTolerance = DefaultSnapTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
	o.validated = true
	return nil
}

// =============================================================================
// Wire Types - API Request and Response Shapes
// =============================================================================

// FeatureInput is one feature as submitted by a caller.
type FeatureInput struct {
	ID       string `json:"id"`
	Geometry string `json:"geometry"`
	Priority string `json:"priority"`
}

// ConflictMetadata describes one conflict a feature was the mover in.
type ConflictMetadata struct {
	OtherFeatureID     string      `json:"other_feature_id"`
	ConflictKinds      []string    `json:"conflict_types"`
	Severity           float64     `json:"severity"`
	OverlapAmount      float64     `json:"overlap_amount"`
	DisplacementVector [2]float64  `json:"displacement_vector"`
	ZIndex             *int        `json:"z_index,omitempty"`
	VisualDepthFlag    bool        `json:"visual_depth_flag,omitempty"`
	ShadowOffset       *[2]float64 `json:"shadow_offset,omitempty"`
}

// FeatureResult is the per-feature outcome of one run.
type FeatureResult struct {
	ID                    string             `json:"id"`
	Priority              string             `json:"priority"`
	OriginalGeometry      string             `json:"original_geometry"`
	CorrectedGeometry     string             `json:"corrected_geometry"`
	WasDisplaced          bool               `json:"was_displaced"`
	DisplacementMagnitude float64            `json:"displacement_magnitude"`
	Conflicts             []ConflictMetadata `json:"conflicts"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	Results                []FeatureResult `json:"results"`
	TotalConflictsDetected int             `json:"total_conflicts_detected"`
	TotalConflictsResolved int             `json:"total_conflicts_resolved"`
	TopologyPreserved      bool            `json:"topology_preserved"`
	Metrics                metrics.Report  `json:"metrics"`

	// Stats contains timing information.
	Stats Stats `json:"-"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	FeatureCount  int
	ConflictCount int
	DetectTime    time.Duration
	DisplaceTime  time.Duration
	TopologyTime  time.Duration
	DepthTime     time.Duration
}
