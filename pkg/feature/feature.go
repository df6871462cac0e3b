// Package feature defines the map feature model shared by the processing
// pipeline: linear features with a priority classification and a derived
// display width.
//
// Priorities form a fixed five-tier hierarchy. A lower tier number means
// higher importance: during conflict resolution a P1 feature never moves to
// make room for a P3 feature. The display width is looked up from the
// priority and drives the buffered footprint used by conflict detection.
package feature

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/geoclear/engine/pkg/errors"
)

// Priority classifies a feature's importance on the map.
type Priority string

// The fixed priority enumeration. Tier 1 is critical infrastructure, tier 5
// is decorative. P2_ROAD is a legacy alias kept for callers predating the
// multi-category classification.
const (
	// P1: Critical infrastructure (highest priority)
	PriorityHighway Priority = "P1_HIGHWAY" // Highways, expressways
	PriorityRailway Priority = "P1_RAILWAY" // Railway lines
	PriorityRiver   Priority = "P1_RIVER"   // Rivers, water bodies

	// P2: Major roads
	PriorityMainRoad Priority = "P2_MAIN_ROAD" // Main roads, avenues

	// P3: Local roads
	PriorityLocalRoad Priority = "P3_LOCAL_ROAD" // Local roads
	PriorityStreet    Priority = "P3_STREET"     // Streets, lanes

	// P4: Structures
	PriorityBuilding Priority = "P4_BUILDING" // Building outlines
	PriorityPark     Priority = "P4_PARK"     // Parks, green spaces

	// P5: Decorative elements (lowest priority)
	PriorityLabel       Priority = "P5_LABEL"        // Text labels
	PriorityIcon        Priority = "P5_ICON"         // Map icons
	PriorityOverlapArea Priority = "P5_OVERLAP_AREA" // Overlap areas

	// Deprecated: PriorityRoad is the legacy generic road class.
	PriorityRoad Priority = "P2_ROAD"
)

// widths maps each priority to its display width in points.
var widths = map[Priority]float64{
	PriorityHighway:     5.0,
	PriorityRailway:     4.5,
	PriorityRiver:       4.0,
	PriorityMainRoad:    3.5,
	PriorityLocalRoad:   3.0,
	PriorityStreet:      2.8,
	PriorityBuilding:    2.5,
	PriorityPark:        2.5,
	PriorityLabel:       2.0,
	PriorityIcon:        2.0,
	PriorityOverlapArea: 1.5,
	PriorityRoad:        3.0,
}

// DefaultWidth is the fallback display width for unknown priorities.
// Priorities come from a closed enumeration, so this is defensive only.
const DefaultWidth = 4.0

// Parse validates a priority string and returns the typed value.
func Parse(s string) (Priority, error) {
	p := Priority(s)
	if _, ok := widths[p]; !ok {
		return "", errors.New(errors.ErrCodeInvalidPriority, "unknown priority: %q", s)
	}
	return p, nil
}

// Valid reports whether p is part of the enumeration.
func (p Priority) Valid() bool {
	_, ok := widths[p]
	return ok
}

// Width returns the display width in points for this priority.
func (p Priority) Width() float64 {
	if w, ok := widths[p]; ok {
		return w
	}
	return DefaultWidth
}

// Rank returns the numeric tier (1 for P1_*, 5 for P5_*). A lower rank means
// higher importance. Unknown priorities rank below every known tier.
func (p Priority) Rank() int {
	if !p.Valid() {
		return 999
	}
	// All enumeration values start with "P<digit>_".
	return int(p[1] - '0')
}

// Feature is an immutable linear map feature: an ordered open polyline with
// an identity and a priority. The display width is derived, not stored.
type Feature struct {
	ID       string
	Line     orb.LineString
	Priority Priority
}

// New validates the inputs and builds a Feature. The line must have at least
// two distinct vertices.
func New(id string, line orb.LineString, priority Priority) (Feature, error) {
	if id == "" {
		return Feature{}, errors.New(errors.ErrCodeInvalidInput, "feature id must not be empty")
	}
	if !priority.Valid() {
		return Feature{}, errors.New(errors.ErrCodeInvalidPriority, "feature %s: unknown priority %q", id, string(priority))
	}
	if len(line) < 2 {
		return Feature{}, errors.New(errors.ErrCodeInvalidGeometry, "feature %s: polyline needs at least 2 vertices, got %d", id, len(line))
	}
	distinct := false
	for _, pt := range line[1:] {
		if pt != line[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return Feature{}, errors.New(errors.ErrCodeInvalidGeometry, "feature %s: polyline vertices are not distinct", id)
	}
	return Feature{ID: id, Line: line, Priority: priority}, nil
}

// Width returns the feature's display width in points.
func (f Feature) Width() float64 {
	return f.Priority.Width()
}

// HalfWidth returns half the display width, the buffer distance applied on
// each side of the centerline.
func (f Feature) HalfWidth() float64 {
	return f.Priority.Width() / 2
}

// Start returns the first vertex of the polyline.
func (f Feature) Start() orb.Point {
	return f.Line[0]
}

// End returns the last vertex of the polyline.
func (f Feature) End() orb.Point {
	return f.Line[len(f.Line)-1]
}

// String implements fmt.Stringer for log output.
func (f Feature) String() string {
	return fmt.Sprintf("%s(%s, %d vertices)", f.ID, f.Priority, len(f.Line))
}
