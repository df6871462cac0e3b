package geom

import (
	"github.com/paulmach/orb"
	geos "github.com/twpayne/go-geos"

	"github.com/geoclear/engine/pkg/errors"
)

// Buffer geometry parameters. Flat end caps and mitred joins keep the
// footprint faithful to the rendered stroke: no rounded overshoot past line
// ends, no rounded corners widening bends.
const (
	bufferQuadSegs   = 8
	bufferMitreLimit = 5.0

	// MinBufferWidth is the fallback half-width used when a caller asks for a
	// non-positive buffer. Widths come from the closed priority enumeration,
	// so this path should never trigger for valid input.
	MinBufferWidth = 0.1
)

// Engine wraps a GEOS context for the footprint operations conflict detection
// relies on: buffering, intersection areas, and minimum distances.
//
// The underlying GEOS context serializes all operations through an internal
// mutex, so a single Engine is safe for concurrent use but will not run
// operations in parallel. Workers that want true parallelism should each own
// an Engine; they are cheap to create.
type Engine struct {
	ctx *geos.Context
}

// NewEngine creates an engine with a fresh GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

// Footprint is the buffered 2D area swept by a linear feature.
type Footprint struct {
	geom *geos.Geom
}

// Area returns the footprint's area.
func (f *Footprint) Area() float64 {
	return f.geom.Area()
}

// Destroy releases the underlying GEOS geometry. Footprints are also
// finalized by the garbage collector; Destroy just releases memory earlier in
// pair-scan hot loops.
func (f *Footprint) Destroy() {
	f.geom.Destroy()
}

// Buffer computes the footprint of a polyline buffered by halfWidth on each
// side, with flat end caps and mitred joins. The result is deterministic for
// identical input. A non-positive halfWidth falls back to MinBufferWidth
// instead of failing.
func (e *Engine) Buffer(line orb.LineString, halfWidth float64) (*Footprint, error) {
	if halfWidth <= 0 {
		halfWidth = MinBufferWidth
	}
	g, err := e.lineGeom(line)
	if err != nil {
		return nil, err
	}
	defer g.Destroy()

	buf := g.BufferWithStyle(halfWidth, bufferQuadSegs, geos.BufCapStyleFlat, geos.BufJoinStyleMitre, bufferMitreLimit)
	if buf == nil {
		return nil, errors.New(errors.ErrCodeInternal, "GEOS buffer failed for half-width %g", halfWidth)
	}
	return &Footprint{geom: buf}, nil
}

// Overlap reports whether two footprints intersect and, if so, the area of
// their intersection. A zero-area touch (shared boundary only) is not an
// overlap.
func (e *Engine) Overlap(a, b *Footprint) (bool, float64) {
	if !a.geom.Intersects(b.geom) {
		return false, 0
	}
	inter := a.geom.Intersection(b.geom)
	if inter == nil {
		return false, 0
	}
	defer inter.Destroy()

	area := inter.Area()
	if area <= 0 {
		return false, 0
	}
	return true, area
}

// MinDistance returns the minimum Euclidean distance between two polylines.
// Intersecting polylines have distance 0.
func (e *Engine) MinDistance(a, b orb.LineString) (float64, error) {
	ga, err := e.lineGeom(a)
	if err != nil {
		return 0, err
	}
	defer ga.Destroy()

	gb, err := e.lineGeom(b)
	if err != nil {
		return 0, err
	}
	defer gb.Destroy()

	return ga.Distance(gb), nil
}

// lineGeom converts an orb polyline into a GEOS geometry via WKT.
func (e *Engine) lineGeom(line orb.LineString) (*geos.Geom, error) {
	g, err := e.ctx.NewGeomFromWKT(MarshalLineString(line))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert polyline to GEOS")
	}
	return g, nil
}
