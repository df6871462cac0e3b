package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/geoclear/engine/pkg/depth"
	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/displace"
	"github.com/geoclear/engine/pkg/errors"
	"github.com/geoclear/engine/pkg/feature"
	"github.com/geoclear/engine/pkg/geom"
	"github.com/geoclear/engine/pkg/metrics"
	"github.com/geoclear/engine/pkg/observability"
	"github.com/geoclear/engine/pkg/topology"
)

// Runner encapsulates pipeline execution.
//
// The Runner is stateless except for the logger - it doesn't store pipeline
// results. Multiple goroutines can safely use the same Runner with different
// options.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, the package default is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Execute runs the complete detect → displace → snap pipeline.
//
// Parsing is all-or-nothing: any malformed geometry or unknown priority
// aborts the whole batch before computation begins, and no partial results
// are returned.
func (r *Runner) Execute(ctx context.Context, inputs []FeatureInput, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	feats, err := r.parseInputs(inputs)
	if err != nil {
		return nil, err
	}

	tracker := metrics.NewTracker()
	result := &Result{TopologyPreserved: true}
	result.Stats.FeatureCount = len(feats)

	// Junction snapshot, taken before anything moves.
	preserver := topology.NewPreserver(topology.WithSnapTolerance(opts.SnapTolerance))
	junctions := preserver.FindJunctions(feats)

	// Stage 1: Detect
	conflicts, err := r.detect(ctx, feats, opts, tracker, result)
	if err != nil {
		return nil, err
	}

	// Stage 2: Displace
	corrected, net, perConflict := r.displaceAll(ctx, feats, conflicts, opts, tracker, result)

	// Stage 3: Topology
	corrected = r.snapAndValidate(ctx, preserver, junctions, corrected, net, tracker, result)

	// Stage 4: Depth (optional)
	var depthMeta map[string]depth.Metadata
	if opts.Enable3DDepth {
		depthStart := time.Now()
		tracker.StartPhase(metrics.PhaseDepth)
		depthMeta = depth.NewAssigner(0).Assign(corrected, conflicts)
		tracker.EndPhase(metrics.PhaseDepth)
		result.Stats.DepthTime = time.Since(depthStart)
	}

	r.assemble(feats, corrected, conflicts, perConflict, net, depthMeta, result)
	result.Metrics = tracker.Finalize(len(feats))

	r.Logger.Info("processing complete",
		"features", len(feats),
		"conflicts", result.TotalConflictsDetected,
		"resolved", result.TotalConflictsResolved,
		"topology_preserved", result.TopologyPreserved)

	return result, nil
}

// parseInputs converts wire features into domain features. The first failure
// aborts the batch.
func (r *Runner) parseInputs(inputs []FeatureInput) ([]feature.Feature, error) {
	if len(inputs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no features provided")
	}

	feats := make([]feature.Feature, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "feature id is required")
		}
		if _, dup := seen[in.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate feature id %q", in.ID)
		}
		seen[in.ID] = struct{}{}

		prio, err := feature.Parse(in.Priority)
		if err != nil {
			return nil, err
		}
		line, err := geom.ParseLineString(in.Geometry)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGeometry, err, "feature %q", in.ID)
		}
		f, err := feature.New(in.ID, line, prio)
		if err != nil {
			return nil, err
		}
		feats = append(feats, f)
	}
	return feats, nil
}

func (r *Runner) detect(ctx context.Context, feats []feature.Feature, opts Options, tracker *metrics.Tracker, result *Result) ([]detect.Conflict, error) {
	start := time.Now()
	tracker.StartPhase(metrics.PhaseDetection)
	observability.Pipeline().OnDetectStart(ctx, len(feats))

	detector := detect.NewDetector(detect.Config{
		MinClearance:   opts.MinClearance,
		AngleThreshold: opts.AngleThreshold,
		Workers:        opts.Workers,
	})
	conflicts, err := detector.DetectAll(ctx, feats)

	elapsed := time.Since(start)
	tracker.EndPhase(metrics.PhaseDetection)
	observability.Pipeline().OnDetectComplete(ctx, len(feats), len(conflicts), elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	tracker.RecordConflicts(conflicts)
	result.Stats.ConflictCount = len(conflicts)
	result.Stats.DetectTime = elapsed
	result.TotalConflictsDetected = len(conflicts)

	r.Logger.Debug("detection complete",
		"features", len(feats),
		"conflicts", len(conflicts),
		"duration", elapsed)
	return conflicts, nil
}

// displaceAll groups conflicts by mover, accumulates each mover's vectors by
// superposition, and applies the net correction as a rigid translation.
// Returns the corrected feature set, the applied net vector per feature, and
// the individual vector computed for each conflict (aligned with conflicts).
func (r *Runner) displaceAll(ctx context.Context, feats []feature.Feature, conflicts []detect.Conflict, opts Options, tracker *metrics.Tracker, result *Result) ([]feature.Feature, map[string]displace.Vector, []displace.Vector) {
	start := time.Now()
	tracker.StartPhase(metrics.PhaseDisplacement)

	calc := displace.NewCalculator(displace.Config{
		Strength:        opts.ForceStrength,
		MaxDisplacement: opts.MaxDisplacement,
	})

	vectorsByMover := make(map[string][]displace.Vector)
	conflictCountByMover := make(map[string]int)
	perConflict := make([]displace.Vector, len(conflicts))
	for i, c := range conflicts {
		mover, _ := c.Resolve()
		v := calc.VectorForConflict(c, opts.MinClearance)
		perConflict[i] = v
		vectorsByMover[mover.ID] = append(vectorsByMover[mover.ID], v)
		conflictCountByMover[mover.ID]++
	}

	observability.Pipeline().OnDisplaceStart(ctx, len(vectorsByMover))

	corrected := make([]feature.Feature, len(feats))
	net := make(map[string]displace.Vector, len(vectorsByMover))
	displaced := 0
	resolved := 0
	for i, f := range feats {
		vecs, ok := vectorsByMover[f.ID]
		if !ok {
			corrected[i] = f
			tracker.RecordDisplacement(0, false)
			continue
		}
		total := calc.Accumulate(vecs)
		if !total.Significant() {
			corrected[i] = f
			tracker.RecordDisplacement(0, false)
			continue
		}
		corrected[i] = calc.Apply(f, total)
		net[f.ID] = total
		displaced++
		resolved += conflictCountByMover[f.ID]
		tracker.RecordDisplacement(total.Magnitude(), true)
	}
	tracker.RecordResolved(resolved)
	result.TotalConflictsResolved = resolved

	elapsed := time.Since(start)
	tracker.EndPhase(metrics.PhaseDisplacement)
	observability.Pipeline().OnDisplaceComplete(ctx, len(vectorsByMover), displaced, elapsed, nil)
	result.Stats.DisplaceTime = elapsed

	r.Logger.Debug("displacement complete",
		"movers", len(vectorsByMover),
		"displaced", displaced,
		"duration", elapsed)
	return corrected, net, perConflict
}

func (r *Runner) snapAndValidate(ctx context.Context, preserver *topology.Preserver, junctions []topology.Junction, feats []feature.Feature, net map[string]displace.Vector, tracker *metrics.Tracker, result *Result) []feature.Feature {
	start := time.Now()
	tracker.StartPhase(metrics.PhaseTopology)
	observability.Pipeline().OnTopologyStart(ctx, len(junctions))

	// Only features that actually moved get their endpoints pulled back;
	// fixed features keep their input geometry verbatim.
	displaced := make(map[string]bool, len(net))
	for id := range net {
		displaced[id] = true
	}
	snapped, snapCount := preserver.Snap(junctions, feats, displaced)
	violations := preserver.Validate(junctions, snapped)

	preserved := len(violations) == 0
	tracker.RecordTopology(len(junctions), len(violations))
	result.TopologyPreserved = preserved

	elapsed := time.Since(start)
	tracker.EndPhase(metrics.PhaseTopology)
	observability.Pipeline().OnTopologyComplete(ctx, len(junctions), snapCount, preserved, elapsed)
	result.Stats.TopologyTime = elapsed

	if !preserved {
		for _, v := range violations {
			r.Logger.Warn("topology break", "junction", v.String())
		}
	}
	return snapped
}

// assemble builds one result per input feature, in input order.
func (r *Runner) assemble(originals, corrected []feature.Feature, conflicts []detect.Conflict, perConflict []displace.Vector, net map[string]displace.Vector, depthMeta map[string]depth.Metadata, result *Result) {
	type movedConflict struct {
		conflict detect.Conflict
		vector   displace.Vector
	}
	conflictsByMover := make(map[string][]movedConflict)
	for i, c := range conflicts {
		mover, _ := c.Resolve()
		conflictsByMover[mover.ID] = append(conflictsByMover[mover.ID], movedConflict{c, perConflict[i]})
	}

	result.Results = make([]FeatureResult, len(originals))
	for i, orig := range originals {
		v, wasDisplaced := net[orig.ID]
		fr := FeatureResult{
			ID:                orig.ID,
			Priority:          string(orig.Priority),
			OriginalGeometry:  geom.MarshalLineString(orig.Line),
			CorrectedGeometry: geom.MarshalLineString(corrected[i].Line),
			WasDisplaced:      wasDisplaced,
		}
		if wasDisplaced {
			fr.DisplacementMagnitude = v.Magnitude()
		}

		for _, mc := range conflictsByMover[orig.ID] {
			c := mc.conflict
			other, _ := c.Other(orig.ID)
			kinds := make([]string, 0, len(c.Findings))
			for _, f := range c.Findings {
				kinds = append(kinds, string(f.Kind()))
			}
			meta := ConflictMetadata{
				OtherFeatureID:     other.ID,
				ConflictKinds:      kinds,
				Severity:           c.Severity,
				OverlapAmount:      c.OverlapArea(),
				DisplacementVector: [2]float64{mc.vector.DX, mc.vector.DY},
			}
			if dm, ok := depthMeta[orig.ID]; ok {
				zi := dm.ZIndex
				meta.ZIndex = &zi
				meta.VisualDepthFlag = dm.VisualDepth
				meta.ShadowOffset = dm.ShadowOffset
			}
			fr.Conflicts = append(fr.Conflicts, meta)
		}
		result.Results[i] = fr
	}
}
