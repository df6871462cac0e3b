// Package geom is the geometry primitives adapter for the GeoClear engine.
//
// It layers two libraries:
//
//   - paulmach/orb supplies the polyline value type ([orb.LineString]), the
//     WKT codec, and the cheap pure-planar operations (centroids, nearest
//     points, bearings, crossings).
//   - twpayne/go-geos supplies the heavyweight footprint operations: buffering
//     with flat caps and mitred joins, footprint intersection areas, and
//     minimum distances. These mirror the GEOS parameters the detection
//     semantics are defined against.
//
// All operations are pure functions over immutable geometry values. The GEOS
// wrapper ([Engine]) owns a GEOS context; see its documentation for the
// concurrency contract.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/geoclear/engine/pkg/errors"
)

// ParseLineString decodes a WKT LINESTRING into an ordered vertex sequence.
// Returns ErrCodeInvalidGeometry if the string is not a LINESTRING or has
// fewer than two vertices.
func ParseLineString(s string) (orb.LineString, error) {
	line, err := wkt.UnmarshalLineString(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGeometry, err, "parse WKT %q", truncate(s, 64))
	}
	if len(line) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "LINESTRING needs at least 2 vertices, got %d", len(line))
	}
	return line, nil
}

// MarshalLineString encodes a polyline as WKT. Coordinates keep the precision
// the encoder produces; the engine never rounds output coordinates.
func MarshalLineString(line orb.LineString) string {
	return wkt.MarshalString(line)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
