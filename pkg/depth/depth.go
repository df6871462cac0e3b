// Package depth derives cosmetic 3D rendering metadata from a resolved
// conflict set. Z-order, shadow offsets, and virtual depth are presentation
// hints only; they never feed back into geometry processing.
package depth

import (
	"math"

	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/feature"
)

const (
	// BaseZIndex is the z-order every feature starts from.
	BaseZIndex = 100

	// highwayZBoost lifts top-priority features above the base layer.
	highwayZBoost = 10

	// DefaultShadowScale converts relative elevation into shadow length.
	DefaultShadowScale = 0.5
)

// JunctionClass describes the rendering complexity of a conflict cluster.
type JunctionClass string

const (
	JunctionSimple  JunctionClass = "simple"
	JunctionComplex JunctionClass = "complex"
	JunctionFlyover JunctionClass = "flyover"
)

// Metadata is the per-feature depth payload attached to results.
type Metadata struct {
	ZIndex       int         `json:"z_index"`
	VisualDepth  bool        `json:"visual_depth_flag"`
	ShadowOffset *[2]float64 `json:"shadow_offset,omitempty"`
	VirtualDepth float64     `json:"virtual_depth"`
}

// Assigner computes depth metadata for a batch of features.
type Assigner struct {
	shadowScale float64
}

// NewAssigner returns an assigner; a non-positive scale falls back to the
// default shadow scale.
func NewAssigner(shadowScale float64) *Assigner {
	if shadowScale <= 0 {
		shadowScale = DefaultShadowScale
	}
	return &Assigner{shadowScale: shadowScale}
}

// ZOrders assigns a z-index per feature. Top-priority features start one
// layer up, and every conflict lifts the higher-priority side above its
// counterpart.
func (a *Assigner) ZOrders(feats []feature.Feature, conflicts []detect.Conflict) map[string]int {
	z := make(map[string]int, len(feats))
	for _, f := range feats {
		if f.Priority.Rank() == 1 {
			z[f.ID] = BaseZIndex + highwayZBoost
		} else {
			z[f.ID] = BaseZIndex
		}
	}

	for _, c := range conflicts {
		upper, lower := c.A, c.B
		if upper.Priority.Rank() > lower.Priority.Rank() {
			upper, lower = lower, upper
		}
		if upper.Priority.Rank() == lower.Priority.Rank() {
			continue
		}
		if z[upper.ID] <= z[lower.ID] {
			z[upper.ID] = z[lower.ID] + 1
		}
	}
	return z
}

// ShadowOffset derives the drop-shadow offset for an elevated feature. Light
// comes from the top left, so the shadow falls down and to the right at 45
// degrees, growing with relative elevation.
func (a *Assigner) ShadowOffset(zIndex int) (float64, float64) {
	height := float64(zIndex-BaseZIndex) * a.shadowScale
	angle := math.Pi / 4
	return height * math.Cos(angle), -height * math.Sin(angle)
}

// NeedsDepthCue reports whether a feature should render with depth cues: it
// must be party to a conflict whose other side sits on a different z layer.
func (a *Assigner) NeedsDepthCue(id string, conflicts []detect.Conflict, z map[string]int) bool {
	mine := zOrDefault(z, id)
	for _, c := range conflicts {
		other, ok := c.Other(id)
		if !ok {
			continue
		}
		if zOrDefault(z, other.ID) != mine {
			return true
		}
	}
	return false
}

// VirtualDepth maps a z-index onto a continuous elevation value, with
// top-priority features biased upward for flyover rendering.
func (a *Assigner) VirtualDepth(zIndex int, p feature.Priority) float64 {
	d := float64(zIndex-BaseZIndex) / 10.0
	if p.Rank() == 1 {
		d += 0.5
	}
	return math.Max(0, d)
}

// ClassifyJunction grades a cluster of conflicts by rendering complexity.
// Mixed priority layers in a dense cluster read as a flyover.
func (a *Assigner) ClassifyJunction(conflicts []detect.Conflict) JunctionClass {
	switch {
	case len(conflicts) <= 1:
		return JunctionSimple
	case len(conflicts) <= 3:
		return JunctionComplex
	}

	mixed := false
	sawTop, sawRest := false, false
	for _, c := range conflicts {
		for _, f := range []feature.Feature{c.A, c.B} {
			if f.Priority.Rank() == 1 {
				sawTop = true
			} else {
				sawRest = true
			}
		}
	}
	mixed = sawTop && sawRest
	if mixed {
		return JunctionFlyover
	}
	return JunctionComplex
}

// Assign produces complete depth metadata for every feature in the batch.
func (a *Assigner) Assign(feats []feature.Feature, conflicts []detect.Conflict) map[string]Metadata {
	z := a.ZOrders(feats, conflicts)

	out := make(map[string]Metadata, len(feats))
	for _, f := range feats {
		zi := z[f.ID]
		needsCue := a.NeedsDepthCue(f.ID, conflicts, z)

		m := Metadata{
			ZIndex:       zi,
			VisualDepth:  needsCue,
			VirtualDepth: a.VirtualDepth(zi, f.Priority),
		}
		if needsCue {
			sx, sy := a.ShadowOffset(zi)
			m.ShadowOffset = &[2]float64{sx, sy}
		}
		out[f.ID] = m
	}
	return out
}

func zOrDefault(z map[string]int, id string) int {
	if v, ok := z[id]; ok {
		return v
	}
	return BaseZIndex
}
