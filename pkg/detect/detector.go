package detect

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/paulmach/orb"

	"github.com/geoclear/engine/pkg/feature"
	"github.com/geoclear/engine/pkg/geom"
)

// Default detection parameters.
const (
	// DefaultMinClearance is the minimum gap required between rendered
	// features, in points.
	DefaultMinClearance = 2.0

	// DefaultAngleThreshold is the maximum bearing difference, in degrees,
	// for two features to count as parallel.
	DefaultAngleThreshold = 15.0
)

// Config tunes the detector. Zero values take the documented defaults.
type Config struct {
	// MinClearance is the minimum gap required between rendered features.
	MinClearance float64

	// AngleThreshold is the parallel-conflict bearing threshold in degrees.
	AngleThreshold float64

	// Workers caps the goroutines used for the pairwise scan. Defaults to
	// GOMAXPROCS. 1 forces a sequential scan.
	Workers int
}

func (c *Config) applyDefaults() {
	if c.MinClearance <= 0 {
		c.MinClearance = DefaultMinClearance
	}
	if c.AngleThreshold <= 0 {
		c.AngleThreshold = DefaultAngleThreshold
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Detector runs the five detection strategies over feature pairs.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector, applying defaults for zero config fields.
func NewDetector(cfg Config) *Detector {
	cfg.applyDefaults()
	return &Detector{cfg: cfg}
}

// pair indexes one unordered feature pair (i < j).
type pair struct {
	i, j int
}

// DetectAll analyzes every unordered feature pair and returns one Conflict
// per pair for which at least one strategy fired. The scan is O(n²) and runs
// on a worker pool; each worker owns its own GEOS engine so pair analysis
// proceeds in parallel. Results are merged in pair order, so the output is
// deterministic regardless of worker scheduling.
func (d *Detector) DetectAll(ctx context.Context, feats []feature.Feature) ([]Conflict, error) {
	n := len(feats)
	if n < 2 {
		return nil, nil
	}

	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	workers := d.cfg.Workers
	if workers > len(pairs) {
		workers = len(pairs)
	}

	// One slot per pair keeps the merge deterministic.
	results := make([]*Conflict, len(pairs))
	errs := make([]error, workers)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			engine := geom.NewEngine()
			for idx := range jobs {
				p := pairs[idx]
				c, err := d.detectPair(engine, feats[p.i], feats[p.j])
				if err != nil {
					errs[worker] = err
					return
				}
				results[idx] = c
			}
		}(w)
	}

feed:
	for idx := range pairs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	conflicts := make([]Conflict, 0, len(results))
	for _, c := range results {
		if c != nil {
			conflicts = append(conflicts, *c)
		}
	}
	return conflicts, nil
}

// detectPair runs all five strategies on one pair. Every strategy executes
// unconditionally; a pair yields a Conflict iff at least one fired.
func (d *Detector) detectPair(engine *geom.Engine, a, b feature.Feature) (*Conflict, error) {
	var findings []Finding

	// 1. Buffer overlap (primary). Strict mode: any positive-area
	// intersection fires, no threshold filtering.
	fa, err := engine.Buffer(a.Line, a.HalfWidth())
	if err != nil {
		return nil, err
	}
	defer fa.Destroy()

	fb, err := engine.Buffer(b.Line, b.HalfWidth())
	if err != nil {
		return nil, err
	}
	defer fb.Destroy()

	if overlaps, area := engine.Overlap(fa, fb); overlaps {
		findings = append(findings, BufferOverlap{Area: area})
	}

	// 2. Centerline proximity.
	minDist, err := engine.MinDistance(a.Line, b.Line)
	if err != nil {
		return nil, err
	}
	required := a.HalfWidth() + b.HalfWidth() + d.cfg.MinClearance
	if minDist < required {
		closest, _ := geom.NearestBetween(a.Line, b.Line)
		findings = append(findings, Proximity{Distance: minDist, Required: required, Closest: closest})
	}

	// 3. Crossing.
	if pts := geom.Crossings(a.Line, b.Line); len(pts) > 0 {
		findings = append(findings, Crossing{Points: pts})
	}

	// 4. Parallel conflict.
	angleDiff := geom.AngleDiff(geom.Bearing(a.Line), geom.Bearing(b.Line))
	if angleDiff <= d.cfg.AngleThreshold && minDist < required {
		findings = append(findings, Parallel{AngleDiff: angleDiff, Distance: minDist})
	}

	// 5. Endpoint conflict.
	if violations := d.endpointViolations(a, b); len(violations) > 0 {
		findings = append(findings, Endpoint{Violations: violations})
	}

	if len(findings) == 0 {
		return nil, nil
	}

	c := &Conflict{A: a, B: b, Findings: findings}
	for _, f := range findings {
		c.Severity += f.Severity()
	}
	return c, nil
}

// endpointViolations checks the four endpoint-to-endpoint pairings and every
// endpoint against the opposite centerline. The endpoint clearance uses the
// larger half-width rather than the sum.
func (d *Detector) endpointViolations(a, b feature.Feature) []EndpointViolation {
	required := max(a.HalfWidth(), b.HalfWidth()) + d.cfg.MinClearance

	endsA := []orb.Point{a.Start(), a.End()}
	endsB := []orb.Point{b.Start(), b.End()}

	var out []EndpointViolation
	for _, ea := range endsA {
		for _, eb := range endsB {
			if dist := planarDistance(ea, eb); dist < required {
				out = append(out, EndpointViolation{From: ea, To: eb, Distance: dist})
			}
		}
		if dist := geom.DistanceToLine(ea, b.Line); dist < required {
			out = append(out, EndpointViolation{From: ea, To: geom.NearestPoint(ea, b.Line), Distance: dist})
		}
	}
	for _, eb := range endsB {
		if dist := geom.DistanceToLine(eb, a.Line); dist < required {
			out = append(out, EndpointViolation{From: eb, To: geom.NearestPoint(eb, a.Line), Distance: dist})
		}
	}
	return out
}

func planarDistance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}
