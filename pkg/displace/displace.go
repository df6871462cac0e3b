// Package displace computes and applies repulsion displacements for
// conflicting map features.
//
// Each conflict contributes one repulsion vector pushing the lower-priority
// feature away from the fixed one. Vectors for a feature involved in several
// conflicts are accumulated by plain superposition and applied as a rigid
// translation, so the feature's shape, length, and vertex count never change.
//
// # Usage
//
//	calc := displace.NewCalculator(displace.Config{Strength: 1.0})
//	vec := calc.VectorForConflict(conflict, 2.0)
//	moved := calc.Apply(f, vec)
package displace

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/feature"
	"github.com/geoclear/engine/pkg/geom"
)

const (
	// nearZeroDistance guards against degenerate centroid geometry. Below
	// this separation the repulsion direction falls back to +X.
	nearZeroDistance = 0.01

	// distanceDamping softens the inverse-distance magnitude so coincident
	// centroids do not produce unbounded pushes.
	distanceDamping = 0.1

	// Epsilon is the minimum vector magnitude worth applying. Anything
	// smaller is treated as no displacement at all.
	Epsilon = 0.001
)

// Vector is a 2D displacement in map units.
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Magnitude returns the Euclidean length of the vector.
func (v Vector) Magnitude() float64 {
	return math.Hypot(v.DX, v.DY)
}

// Add returns the component-wise sum of two vectors.
func (v Vector) Add(o Vector) Vector {
	return Vector{DX: v.DX + o.DX, DY: v.DY + o.DY}
}

// Scale returns the vector multiplied by s.
func (v Vector) Scale(s float64) Vector {
	return Vector{DX: v.DX * s, DY: v.DY * s}
}

// Significant reports whether the vector is large enough to apply.
func (v Vector) Significant() bool {
	return v.Magnitude() > Epsilon
}

// Config tunes the displacement calculator.
type Config struct {
	// Strength scales every repulsion magnitude. Defaults to 1.0.
	Strength float64

	// MaxDisplacement caps the magnitude of any accumulated vector.
	// Zero means unbounded.
	MaxDisplacement float64
}

func (c *Config) applyDefaults() {
	if c.Strength <= 0 {
		c.Strength = 1.0
	}
}

// Calculator turns conflicts into displacement vectors.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a calculator with defaults applied.
func NewCalculator(cfg Config) *Calculator {
	cfg.applyDefaults()
	return &Calculator{cfg: cfg}
}

// Repulsion computes the raw push on mover away from fixed. Direction is the
// normalized centroid delta; magnitude decays with centroid distance. When
// the centroids nearly coincide the direction falls back to +X so the mover
// still escapes.
func (c *Calculator) Repulsion(mover, fixed feature.Feature) Vector {
	mc := geom.Centroid(mover.Line)
	fc := geom.Centroid(fixed.Line)

	dx := mc[0] - fc[0]
	dy := mc[1] - fc[1]
	dist := math.Hypot(dx, dy)

	if dist < nearZeroDistance {
		dx, dy, dist = 1, 0, 1
	}

	magnitude := c.cfg.Strength / (dist + distanceDamping)
	return Vector{DX: dx / dist * magnitude, DY: dy / dist * magnitude}
}

// VectorForConflict computes the displacement the conflict's mover needs to
// clear the fixed feature. The repulsion direction is kept but the magnitude
// is rescaled to the required separation derived from the overlap area plus
// the configured clearance.
func (c *Calculator) VectorForConflict(conflict detect.Conflict, minClearance float64) Vector {
	mover, fixed := conflict.Resolve()
	raw := c.Repulsion(mover, fixed)

	mag := raw.Magnitude()
	if mag < Epsilon {
		return Vector{}
	}

	required := math.Sqrt(conflict.OverlapArea()) + minClearance
	return raw.Scale(required / mag)
}

// Accumulate sums per-conflict vectors by superposition and applies the
// MaxDisplacement cap, if configured, to the combined result.
func (c *Calculator) Accumulate(vectors []Vector) Vector {
	var total Vector
	for _, v := range vectors {
		total = total.Add(v)
	}
	return c.clamp(total)
}

func (c *Calculator) clamp(v Vector) Vector {
	if c.cfg.MaxDisplacement <= 0 {
		return v
	}
	mag := v.Magnitude()
	if mag <= c.cfg.MaxDisplacement {
		return v
	}
	return v.Scale(c.cfg.MaxDisplacement / mag)
}

// Apply rigidly translates the feature by the vector. The input feature is
// left untouched; vectors below Epsilon return the original geometry.
func (c *Calculator) Apply(f feature.Feature, v Vector) feature.Feature {
	if !v.Significant() {
		return f
	}
	moved := f
	moved.Line = geom.Translate(f.Line, v.DX, v.DY)
	return moved
}

// TotalShift reports the translation between an original line and its moved
// counterpart, for diagnostics and result metadata.
func TotalShift(before, after orb.LineString) Vector {
	if len(before) == 0 || len(after) == 0 {
		return Vector{}
	}
	return Vector{DX: after[0][0] - before[0][0], DY: after[0][1] - before[0][1]}
}
