package detect

import (
	"github.com/geoclear/engine/pkg/feature"
)

// Conflict is one feature pair's aggregated detection record. It exists only
// if at least one strategy fired.
type Conflict struct {
	// A and B are the conflicting features, in input order (i < j).
	A feature.Feature
	B feature.Feature

	// Findings holds one entry per strategy that fired.
	Findings []Finding

	// Severity is the sum of the findings' contributions. Reporting and
	// ranking only; never a correctness decision.
	Severity float64
}

// Mover returns the feature that must be displaced to resolve this conflict,
// and Fixed the one that stays put. The lower priority rank (higher
// importance) is fixed. Equal ranks tie-break on lexicographic id order: the
// feature with the greater id moves, making the choice independent of input
// order.
func (c Conflict) Mover() feature.Feature {
	mover, _ := c.Resolve()
	return mover
}

// Fixed returns the feature that stays in place for this conflict.
func (c Conflict) Fixed() feature.Feature {
	_, fixed := c.Resolve()
	return fixed
}

// Resolve returns (mover, fixed) for this conflict.
func (c Conflict) Resolve() (mover, fixed feature.Feature) {
	ra, rb := c.A.Priority.Rank(), c.B.Priority.Rank()
	switch {
	case ra < rb:
		return c.B, c.A
	case rb < ra:
		return c.A, c.B
	case c.A.ID > c.B.ID:
		return c.A, c.B
	default:
		return c.B, c.A
	}
}

// Other returns the counterpart of the feature with the given id, and false
// if id is not part of this conflict.
func (c Conflict) Other(id string) (feature.Feature, bool) {
	switch id {
	case c.A.ID:
		return c.B, true
	case c.B.ID:
		return c.A, true
	default:
		return feature.Feature{}, false
	}
}

// OverlapArea returns the buffer-overlap intersection area if that strategy
// fired, else 0. Displacement sizing derives its required distance from this.
func (c Conflict) OverlapArea() float64 {
	for _, f := range c.Findings {
		if bo, ok := f.(BufferOverlap); ok {
			return bo.Area
		}
	}
	return 0
}

// Has reports whether a finding of the given kind fired for this pair.
func (c Conflict) Has(kind Kind) bool {
	for _, f := range c.Findings {
		if f.Kind() == kind {
			return true
		}
	}
	return false
}
