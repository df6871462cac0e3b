package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Centroid returns the length-weighted centroid of a polyline.
func Centroid(line orb.LineString) orb.Point {
	c, _ := planar.CentroidArea(line)
	return c
}

// Bearing returns the overall orientation of a polyline in degrees, measured
// from the first to the last vertex with atan2 conventions (east = 0°,
// counterclockwise positive, range (-180°, 180°]).
func Bearing(line orb.LineString) float64 {
	first, last := line[0], line[len(line)-1]
	dx := last[0] - first[0]
	dy := last[1] - first[1]
	return math.Atan2(dy, dx) * 180 / math.Pi
}

// AngleDiff folds the difference between two bearings into [0°, 90°].
// Opposite directions count as parallel: a line running west matches a line
// running east.
func AngleDiff(bearingA, bearingB float64) float64 {
	diff := math.Abs(bearingA - bearingB)
	diff = math.Mod(diff, 180)
	if diff > 90 {
		diff = 180 - diff
	}
	return diff
}

// NearestPoint projects p onto the polyline and returns the closest point on
// it, which may be an interior point of a segment or a vertex.
func NearestPoint(p orb.Point, line orb.LineString) orb.Point {
	_, idx := planar.DistanceFromWithIndex(line, p)
	return projectOntoSegment(p, line[idx], line[idx+1])
}

// DistanceToLine returns the minimum Euclidean distance from p to the
// polyline.
func DistanceToLine(p orb.Point, line orb.LineString) float64 {
	return planar.DistanceFrom(line, p)
}

// NearestBetween returns the point on polyline a closest to polyline b,
// together with the separating distance. For non-crossing polylines the
// minimum is always realized at a vertex of one of the two lines, which is
// what this scan checks.
func NearestBetween(a, b orb.LineString) (orb.Point, float64) {
	best := math.Inf(1)
	var bestPt orb.Point

	for _, v := range b {
		d, idx := planar.DistanceFromWithIndex(a, v)
		if d < best {
			best = d
			bestPt = projectOntoSegment(v, a[idx], a[idx+1])
		}
	}
	for _, v := range a {
		if d := planar.DistanceFrom(b, v); d < best {
			best = d
			bestPt = v
		}
	}
	return bestPt, best
}

// Translate returns a copy of the polyline with every vertex shifted by
// (dx, dy). The input is not modified.
func Translate(line orb.LineString, dx, dy float64) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, pt := range line {
		out[i] = orb.Point{pt[0] + dx, pt[1] + dy}
	}
	return out
}

// Crossings returns the points where two polylines properly cross. Touching
// at a line endpoint does not count, and collinear overlap contributes no
// points. Duplicate intersection points (a crossing exactly at a shared
// interior vertex) are reported once.
func Crossings(a, b orb.LineString) []orb.Point {
	const eps = 1e-9

	var points []orb.Point
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			pt, ok := segmentIntersection(a[i], a[i+1], b[j], b[j+1])
			if !ok {
				continue
			}
			if isEndpoint(pt, a, eps) || isEndpoint(pt, b, eps) {
				continue
			}
			if !containsPoint(points, pt, eps) {
				points = append(points, pt)
			}
		}
	}
	return points
}

// Crosses reports whether two polylines properly cross.
func Crosses(a, b orb.LineString) bool {
	return len(Crossings(a, b)) > 0
}

// projectOntoSegment returns the closest point to p on segment [a, b].
func projectOntoSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// segmentIntersection computes the intersection of segments [p1,p2] and
// [p3,p4]. Parallel and collinear segment pairs yield no intersection.
func segmentIntersection(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1x := p2[0] - p1[0]
	d1y := p2[1] - p1[1]
	d2x := p4[0] - p3[0]
	d2y := p4[1] - p3[1]

	denom := d1x*d2y - d1y*d2x
	if math.Abs(denom) < 1e-12 {
		return orb.Point{}, false
	}

	t := ((p3[0]-p1[0])*d2y - (p3[1]-p1[1])*d2x) / denom
	u := ((p3[0]-p1[0])*d1y - (p3[1]-p1[1])*d1x) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, false
	}
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}, true
}

// isEndpoint reports whether pt coincides with the first or last vertex of
// the polyline within eps.
func isEndpoint(pt orb.Point, line orb.LineString, eps float64) bool {
	return pointsEqual(pt, line[0], eps) || pointsEqual(pt, line[len(line)-1], eps)
}

func pointsEqual(a, b orb.Point, eps float64) bool {
	return math.Abs(a[0]-b[0]) < eps && math.Abs(a[1]-b[1]) < eps
}

func containsPoint(pts []orb.Point, p orb.Point, eps float64) bool {
	for _, q := range pts {
		if pointsEqual(p, q, eps) {
			return true
		}
	}
	return false
}
