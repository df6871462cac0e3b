// Package detect implements pairwise conflict detection between map
// features.
//
// For every unordered feature pair, five independent strategies run
// unconditionally (no short-circuiting) so that every applicable finding is
// captured:
//
//  1. Buffer overlap (primary): the buffered footprints intersect.
//  2. Centerline proximity: centerlines closer than the required clearance.
//  3. Crossing: the centerlines properly cross.
//  4. Parallel conflict: near-parallel bearings and insufficient separation.
//  5. Endpoint conflict: endpoints too close to each other or to the
//     opposite centerline.
//
// Each strategy that fires contributes a [Finding] to the pair's [Conflict]
// record along with a strategy-weighted severity contribution. Severity is a
// reporting heuristic only; it never participates in correctness decisions.
package detect

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind identifies one of the closed set of detection strategies.
type Kind string

// The closed detection strategy enumeration.
const (
	KindBufferOverlap       Kind = "BUFFER_OVERLAP"
	KindCenterlineProximity Kind = "CENTERLINE_PROXIMITY"
	KindCrossing            Kind = "CROSSING_CONFLICT"
	KindParallel            Kind = "PARALLEL_CONFLICT"
	KindEndpoint            Kind = "ENDPOINT_CONFLICT"
)

// Epsilon guards the distance-based severity formulas against division by
// zero. Numerical singularities here are intentionally soft: near-zero
// distances produce large severities, never errors.
const Epsilon = 1e-6

// Severity weights per strategy.
const (
	proximityWeight = 10.0
	crossingWeight  = 20.0
	parallelWeight  = 5.0
	endpointWeight  = 5.0
)

// Finding is one detection strategy's result for a feature pair. The
// concrete type carries the strategy-specific data needed to recompute the
// severity contribution and render a report line.
//
// The set of implementations is closed: BufferOverlap, Proximity, Crossing,
// Parallel, and Endpoint.
type Finding interface {
	// Kind returns the strategy that produced this finding.
	Kind() Kind

	// Severity returns this finding's contribution to the pair's aggregate
	// severity score. Always >= 0.
	Severity() float64

	// Describe renders a one-line human-readable report.
	Describe() string
}

// BufferOverlap records an intersection of the two buffered footprints.
type BufferOverlap struct {
	// Area is the intersection area of the two footprints.
	Area float64
}

func (f BufferOverlap) Kind() Kind        { return KindBufferOverlap }
func (f BufferOverlap) Severity() float64 { return f.Area }
func (f BufferOverlap) Describe() string {
	return fmt.Sprintf("footprints overlap by %.3f", f.Area)
}

// Proximity records centerlines closer than the required clearance.
type Proximity struct {
	// Distance is the minimum centerline distance.
	Distance float64
	// Required is the clearance the pair needed (sum of half-widths plus the
	// configured minimum clearance).
	Required float64
	// Closest is the point on the first feature's centerline nearest to the
	// second.
	Closest orb.Point
}

func (f Proximity) Kind() Kind        { return KindCenterlineProximity }
func (f Proximity) Severity() float64 { return proximityWeight / (f.Distance + Epsilon) }
func (f Proximity) Describe() string {
	return fmt.Sprintf("centerlines %.3f apart, need %.3f", f.Distance, f.Required)
}

// Crossing records the centerlines properly crossing each other.
type Crossing struct {
	// Points are the crossing locations.
	Points []orb.Point
}

func (f Crossing) Kind() Kind        { return KindCrossing }
func (f Crossing) Severity() float64 { return crossingWeight * float64(len(f.Points)) }
func (f Crossing) Describe() string {
	return fmt.Sprintf("centerlines cross at %d point(s)", len(f.Points))
}

// Parallel records two near-parallel features running too close together.
type Parallel struct {
	// AngleDiff is the bearing difference folded into [0°, 90°].
	AngleDiff float64
	// Distance is the minimum centerline distance.
	Distance float64
}

func (f Parallel) Kind() Kind        { return KindParallel }
func (f Parallel) Severity() float64 { return parallelWeight / (f.Distance + Epsilon) }
func (f Parallel) Describe() string {
	return fmt.Sprintf("parallel within %.1f°, %.3f apart", f.AngleDiff, f.Distance)
}

// EndpointViolation is one endpoint pairing that breaches the endpoint
// clearance.
type EndpointViolation struct {
	From     orb.Point
	To       orb.Point
	Distance float64
}

// Endpoint records endpoints too close to the other feature.
type Endpoint struct {
	// Violations lists every breaching endpoint-to-endpoint and
	// endpoint-to-centerline pairing.
	Violations []EndpointViolation
}

func (f Endpoint) Kind() Kind        { return KindEndpoint }
func (f Endpoint) Severity() float64 { return endpointWeight * float64(len(f.Violations)) }
func (f Endpoint) Describe() string {
	return fmt.Sprintf("%d endpoint clearance violation(s)", len(f.Violations))
}
