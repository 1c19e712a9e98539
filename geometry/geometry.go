// Package geometry provides the 2-D primitives the road network and vehicle
// kinematics are built on: points, polylines, and segment intersection.
package geometry

import "math"

// Eps is the tolerance floor for every geometric comparison in this package
// and its callers (segment intersection, "is this point on the segment",
// near-zero vector length).
const Eps = 1e-8

// Point is a 2-D point or vector, depending on context.
type Point struct {
	X, Y float64
}

func (p Point) Add(o Point) Point      { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point      { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Scale(k float64) Point  { return Point{p.X * k, p.Y * k} }
func (p Point) Dot(o Point) float64    { return p.X*o.X + p.Y*o.Y }
func (p Point) Cross(o Point) float64  { return p.X*o.Y - p.Y*o.X }
func (p Point) Length() float64        { return math.Hypot(p.X, p.Y) }
func (p Point) DistanceTo(o Point) float64 { return p.Sub(o).Length() }

// Unit returns the unit vector in the direction of p, or the zero vector if
// p is (near) zero-length.
func (p Point) Unit() Point {
	l := p.Length()
	if l < Eps {
		return Point{}
	}
	return Point{p.X / l, p.Y / l}
}

// Normal returns the left-hand normal of p (rotate +90°), useful for
// offsetting a polyline to one side.
func (p Point) Normal() Point { return Point{-p.Y, p.X} }

// Angle returns the angle of p from the positive X axis, in (-pi, pi].
func (p Point) Angle() float64 { return math.Atan2(p.Y, p.X) }

// Lerp linearly interpolates between p and o at t in [0,1].
func (p Point) Lerp(o Point, t float64) Point {
	return Point{p.X + (o.X-p.X)*t, p.Y + (o.Y-p.Y)*t}
}

// PolylineDirection is a unit tangent vector at some point along a polyline.
type PolylineDirection = Point

// SegmentLengths returns the length of each segment of the polyline pts
// (len(pts)-1 entries).
func SegmentLengths(pts []Point) []float64 {
	if len(pts) < 2 {
		return nil
	}
	out := make([]float64, len(pts)-1)
	for i := 0; i < len(pts)-1; i++ {
		out[i] = pts[i].DistanceTo(pts[i+1])
	}
	return out
}

// PolylineLength returns the total length of the polyline.
func PolylineLength(pts []Point) float64 {
	total := 0.
	for _, l := range SegmentLengths(pts) {
		total += l
	}
	return total
}

// PointByDistance walks pts (with precomputed cumulative segment lengths,
// see CumulativeLengths) and returns the point at arclength s from the
// start, clamped to [0, total length]. offset shifts the result
// perpendicular to the direction of travel (positive = left).
func PointByDistance(pts []Point, cum []float64, s, offset float64) Point {
	idx, frac := locate(cum, s)
	if idx >= len(pts)-1 {
		idx = len(pts) - 2
		frac = 1
	}
	a, b := pts[idx], pts[idx+1]
	base := a.Lerp(b, frac)
	if offset == 0 {
		return base
	}
	dir := b.Sub(a).Unit()
	return base.Add(dir.Normal().Scale(offset))
}

// DirectionByDistance returns the unit tangent of the polyline at arclength
// s from the start.
func DirectionByDistance(pts []Point, cum []float64, s float64) PolylineDirection {
	idx, _ := locate(cum, s)
	if idx >= len(pts)-1 {
		idx = len(pts) - 2
	}
	return pts[idx+1].Sub(pts[idx]).Unit()
}

// CumulativeLengths returns the prefix sums of SegmentLengths(pts), with a
// leading 0, so cum[i] is the arclength of pts[i] from the start.
func CumulativeLengths(pts []Point) []float64 {
	cum := make([]float64, len(pts))
	acc := 0.
	for i := 1; i < len(pts); i++ {
		acc += pts[i-1].DistanceTo(pts[i])
		cum[i] = acc
	}
	return cum
}

// locate finds the segment index i such that cum[i] <= s <= cum[i+1], and
// the fractional position within that segment.
func locate(cum []float64, s float64) (idx int, frac float64) {
	if s <= 0 {
		return 0, 0
	}
	n := len(cum)
	for i := 0; i < n-1; i++ {
		if s <= cum[i+1] {
			span := cum[i+1] - cum[i]
			if span < Eps {
				return i, 0
			}
			return i, (s - cum[i]) / span
		}
	}
	return n - 2, 1
}

// ProjectToPolyline returns the arclength of the closest point on the
// polyline to pos.
func ProjectToPolyline(pts []Point, cum []float64, pos Point) float64 {
	bestDist := math.Inf(1)
	bestS := 0.
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		seg := b.Sub(a)
		segLen2 := seg.Dot(seg)
		var t float64
		if segLen2 > Eps*Eps {
			t = pos.Sub(a).Dot(seg) / segLen2
		}
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		proj := a.Add(seg.Scale(t))
		d := proj.DistanceTo(pos)
		if d < bestDist {
			bestDist = d
			bestS = cum[i] + t*(cum[i+1]-cum[i])
		}
	}
	return bestS
}

// SegmentIntersection tests whether segment (p1,p2) crosses segment (p3,p4)
// and, if so, returns the intersection point and ok=true. Collinear and
// parallel segments are reported as non-intersecting (the road-network
// geometry never relies on that degenerate case).
func SegmentIntersection(p1, p2, p3, p4 Point) (Point, bool) {
	d1 := p2.Sub(p1)
	d2 := p4.Sub(p3)
	denom := d1.Cross(d2)
	if math.Abs(denom) < Eps {
		return Point{}, false
	}
	diff := p3.Sub(p1)
	t := diff.Cross(d2) / denom
	u := diff.Cross(d1) / denom
	if t < -Eps || t > 1+Eps || u < -Eps || u > 1+Eps {
		return Point{}, false
	}
	return p1.Add(d1.Scale(t)), true
}

// Bisector returns the unit bisector of the two given unit (or near-unit)
// incoming/outgoing direction vectors at a polyline vertex, used to offset a
// road's centerline into its lanes. Falls back to the normal of "in" when
// the two directions are opposite (a near-180° turn).
func Bisector(in, out Point) Point {
	sum := in.Unit().Add(out.Unit())
	if sum.Length() < Eps {
		return in.Unit().Normal()
	}
	return sum.Unit()
}
