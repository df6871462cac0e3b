// Package topology preserves shared junctions across displacement.
//
// Features that meet at a common endpoint form a junction. Displacement moves
// each feature independently, so members of a junction can drift apart. The
// preserver records junctions before any movement, snaps displaced endpoints
// back to the junction coordinate afterwards, and validates that every
// junction survived.
//
// Junction membership is decided on quantized coordinates so that endpoints
// within floating point noise of each other still register as shared.
package topology

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/geoclear/engine/pkg/feature"
)

const (
	// DefaultSnapTolerance is how far a displaced endpoint may sit from its
	// junction and still be pulled back.
	DefaultSnapTolerance = 0.1

	// DefaultPrecision is the number of decimal places used to quantize
	// endpoint coordinates into junction keys.
	DefaultPrecision = 2
)

// Endpoint identifies one end of a feature.
type Endpoint struct {
	FeatureID string
	// IsStart is true for the first vertex, false for the last.
	IsStart bool
}

// Junction is a point shared by two or more feature endpoints.
type Junction struct {
	Point   orb.Point
	Members []Endpoint
}

// Violation reports a junction that no longer holds its members together.
type Violation struct {
	Junction Junction
	// Drifted lists members whose endpoint sits beyond tolerance from the
	// junction point.
	Drifted []Endpoint
}

func (v Violation) String() string {
	return fmt.Sprintf("junction (%g, %g): %d of %d members drifted",
		v.Junction.Point[0], v.Junction.Point[1], len(v.Drifted), len(v.Junction.Members))
}

// Preserver detects, snaps, and validates junctions.
type Preserver struct {
	snapTolerance float64
	precision     int
}

// Option configures a Preserver.
type Option func(*Preserver)

// WithSnapTolerance overrides the snap distance.
func WithSnapTolerance(tol float64) Option {
	return func(p *Preserver) {
		if tol > 0 {
			p.snapTolerance = tol
		}
	}
}

// WithPrecision overrides the quantization precision.
func WithPrecision(digits int) Option {
	return func(p *Preserver) {
		if digits >= 0 {
			p.precision = digits
		}
	}
}

// NewPreserver returns a preserver with default tolerance and precision.
func NewPreserver(opts ...Option) *Preserver {
	p := &Preserver{
		snapTolerance: DefaultSnapTolerance,
		precision:     DefaultPrecision,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type junctionKey struct {
	x, y int64
}

func (p *Preserver) scale() float64 {
	return math.Pow(10, float64(p.precision))
}

func (p *Preserver) keyFor(pt orb.Point) junctionKey {
	scale := p.scale()
	return junctionKey{
		x: int64(math.Round(pt[0] * scale)),
		y: int64(math.Round(pt[1] * scale)),
	}
}

// pointFor is the inverse of keyFor: the quantized coordinate a key stands
// for. Junctions carry this point rather than any single member's raw
// endpoint, so the junction coordinate does not depend on input order.
func (p *Preserver) pointFor(k junctionKey) orb.Point {
	scale := p.scale()
	return orb.Point{float64(k.x) / scale, float64(k.y) / scale}
}

// FindJunctions scans feature endpoints and returns every point shared by at
// least two of them. Results are ordered by coordinate for determinism.
func (p *Preserver) FindJunctions(feats []feature.Feature) []Junction {
	buckets := make(map[junctionKey][]Endpoint)

	add := func(pt orb.Point, ep Endpoint) {
		key := p.keyFor(pt)
		buckets[key] = append(buckets[key], ep)
	}

	for _, f := range feats {
		add(f.Start(), Endpoint{FeatureID: f.ID, IsStart: true})
		add(f.End(), Endpoint{FeatureID: f.ID, IsStart: false})
	}

	var junctions []Junction
	for key, members := range buckets {
		if len(members) < 2 {
			continue
		}
		junctions = append(junctions, Junction{Point: p.pointFor(key), Members: members})
	}

	sort.Slice(junctions, func(i, j int) bool {
		a, b := junctions[i].Point, junctions[j].Point
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})
	return junctions
}

// Snap forces displaced member endpoints back onto their junction
// coordinates. Membership was decided from pre-displacement geometry, so a
// displaced endpoint is pulled back no matter how far displacement carried
// it. Features absent from the displaced set are left exactly as they are;
// a fixed feature's geometry must survive resolution untouched even when its
// endpoint sits a quantization hair away from the junction point. Interior
// vertices keep their displaced positions, which deliberately bends the
// otherwise rigid translation at the snapped end. Returns the corrected
// features and the number of endpoints moved.
func (p *Preserver) Snap(junctions []Junction, feats []feature.Feature, displaced map[string]bool) ([]feature.Feature, int) {
	byID := make(map[string]int, len(feats))
	for i, f := range feats {
		byID[f.ID] = i
	}

	out := make([]feature.Feature, len(feats))
	copy(out, feats)

	snapped := 0
	for _, j := range junctions {
		for _, m := range j.Members {
			if !displaced[m.FeatureID] {
				continue
			}
			idx, ok := byID[m.FeatureID]
			if !ok {
				continue
			}
			f := out[idx]
			vi := 0
			if !m.IsStart {
				vi = len(f.Line) - 1
			}
			if f.Line[vi] == j.Point {
				continue
			}

			line := make(orb.LineString, len(f.Line))
			copy(line, f.Line)
			line[vi] = j.Point
			f.Line = line
			out[idx] = f
			snapped++
		}
	}
	return out, snapped
}

// Validate checks that every junction still binds at least two members after
// displacement and snapping. A member counts as bound when its endpoint sits
// within the snap tolerance of the junction point.
func (p *Preserver) Validate(junctions []Junction, feats []feature.Feature) []Violation {
	byID := make(map[string]feature.Feature, len(feats))
	for _, f := range feats {
		byID[f.ID] = f
	}

	var violations []Violation
	for _, j := range junctions {
		var drifted []Endpoint
		intact := 0
		for _, m := range j.Members {
			f, ok := byID[m.FeatureID]
			if !ok {
				drifted = append(drifted, m)
				continue
			}
			pt := f.Start()
			if !m.IsStart {
				pt = f.End()
			}
			if math.Hypot(pt[0]-j.Point[0], pt[1]-j.Point[1]) <= p.snapTolerance {
				intact++
			} else {
				drifted = append(drifted, m)
			}
		}
		if intact < 2 {
			violations = append(violations, Violation{Junction: j, Drifted: drifted})
		}
	}
	return violations
}
