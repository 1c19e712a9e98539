package roadnet

import (
	"math"
	"sort"

	"github.com/kotkaro/trafficsim/geometry"
)

// Intersection is a node of the road network: a point joining Roads,
// carrying the RoadLinks (turning movements), the LaneLinks those
// road-links generate, the Crosses between those lane-links, and an
// optional TrafficLight. A virtual intersection (dead end, or a road split
// with no real junction) has no light and no crosses.
type Intersection struct {
	ID      string
	Point   geometry.Point
	Virtual bool
	Width   float64

	Roads     []*Road
	RoadLinks []*RoadLink
	LaneLinks []*LaneLink
	Crosses   []*Cross

	Light *TrafficLight

	outline []geometry.Point
}

// IsImplicitIntersection reports an intersection whose light has at most
// one phase: there is nothing to arbitrate, so external control may treat
// it as if it had no light at all.
func (it *Intersection) IsImplicitIntersection() bool {
	return it.Light == nil || len(it.Light.Phases) <= 1
}

func (it *Intersection) Reset() {
	if it.Light != nil {
		it.Light.Reset()
	}
	it.Crosses = nil
}

// allLaneLinks returns every lane-link generated by this intersection's
// road-links, caching the result.
func (it *Intersection) allLaneLinks() []*LaneLink {
	if len(it.LaneLinks) > 0 {
		return it.LaneLinks
	}
	for _, rl := range it.RoadLinks {
		it.LaneLinks = append(it.LaneLinks, rl.LaneLinks...)
	}
	return it.LaneLinks
}

// GetOutline computes the convex hull of the intersection's approach
// corners: for every road, two points offset by the road's own width and
// the intersection's width from the center point, plus (space permitting)
// a second pair set back by a minimum corner radius. Used by the replay
// viewer to draw the junction footprint.
func (it *Intersection) GetOutline() []geometry.Point {
	if it.outline != nil {
		return it.outline
	}

	var points []geometry.Point
	points = append(points, it.Point)

	for _, road := range it.Roads {
		roadDir := road.EndIntersection.Point.Sub(road.StartIntersection.Point).Unit()
		pDir := roadDir.Normal()
		if road.StartIntersection == it {
			roadDir = roadDir.Scale(-1)
		}

		roadWidth := road.GetWidth()
		deltaWidth := 0.5 * math.Min(it.Width, roadWidth)
		if deltaWidth < 5 {
			deltaWidth = 5
		}

		pointA := it.Point.Sub(roadDir.Scale(it.Width))
		pointB := pointA.Sub(pDir.Scale(roadWidth))
		points = append(points, pointA, pointB)

		if deltaWidth < road.AverageLength() {
			pointA1 := pointA.Sub(roadDir.Scale(deltaWidth))
			pointB1 := pointB.Sub(roadDir.Scale(deltaWidth))
			points = append(points, pointA1, pointB1)
		}
	}

	it.outline = convexHull(points)
	return it.outline
}

// convexHull is a Graham scan: sort by y, then by angle from the lowest
// point, and sweep keeping only left turns.
func convexHull(points []geometry.Point) []geometry.Point {
	if len(points) < 3 {
		return points
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	p0 := points[0]
	rest := points[1:]

	sort.Slice(rest, func(i, j int) bool {
		return rest[i].Sub(p0).Angle() < rest[j].Sub(p0).Angle()
	})

	stack := []geometry.Point{p0}
	for _, pt := range rest {
		for len(stack) > 1 {
			p2 := stack[len(stack)-1]
			p1 := stack[len(stack)-2]
			if pt.Sub(p2).Cross(p2.Sub(p1)) < 0 {
				break
			}
			stack = stack[:len(stack)-1]
		}
		last := stack[len(stack)-1]
		if pt.X != last.X || pt.Y != last.Y {
			stack = append(stack, pt)
		}
	}
	return stack
}

// InitCrosses finds every geometric crossing between this intersection's
// lane-links and derives, for each, the safe following distance on either
// side from the crossing angle and the two lane-links' widths (a wider
// crossing angle lets vehicles pass closer together).
func (it *Intersection) InitCrosses() {
	links := it.allLaneLinks()
	n := len(links)
	for _, link := range links {
		link.Crosses = nil
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			la, lb := links[i], links[j]
			if cross, ok := findCross(la, lb); ok {
				it.Crosses = append(it.Crosses, cross)
			}
		}
	}

	for _, c := range it.Crosses {
		c.LinkA.Crosses = append(c.LinkA.Crosses, c)
		c.LinkB.Crosses = append(c.LinkB.Crosses, c)
	}

	for _, link := range links {
		crosses := link.Crosses
		sort.Slice(crosses, func(i, j int) bool {
			return distanceOnLinkSide(crosses[i], link) < distanceOnLinkSide(crosses[j], link)
		})
		link.Crosses = crosses
	}
}

func distanceOnLinkSide(c *Cross, link *LaneLink) float64 {
	if c.LinkA == link {
		return c.DistA
	}
	return c.DistB
}

// findCross locates the (first) geometric crossing of la and lb's
// polylines and, if found, builds the Cross with its safe distances.
func findCross(la, lb *LaneLink) (*Cross, bool) {
	va, vb := la.points, lb.points
	disa := 0.0
	for ia := 0; ia < len(va)-1; ia++ {
		disb := 0.0
		for ib := 0; ib < len(vb)-1; ib++ {
			a1, a2 := va[ia], va[ia+1]
			b1, b2 := vb[ib], vb[ib+1]

			if p, ok := geometry.SegmentIntersection(a1, a2, b1, b2); ok {
				ang := angleBetween(a2.Sub(a1), b2.Sub(b1))
				w1, w2 := la.Width(), lb.Width()
				sinAng := math.Sin(ang)
				if math.Abs(sinAng) < geometry.Eps {
					sinAng = geometry.Eps
				}
				c1, c2 := w1/sinAng, w2/sinAng
				diag := (c1*c1 + c2*c2 + 2*c1*c2*math.Cos(ang)) / 4
				safeA := math.Sqrt(math.Max(0, diag-w2*w2/4))
				safeB := math.Sqrt(math.Max(0, diag-w1*w1/4))

				return &Cross{
					LinkA:     la,
					LinkB:     lb,
					DistA:     disa + p.DistanceTo(a1),
					DistB:     disb + p.DistanceTo(b1),
					Angle:     ang,
					SafeDistA: safeA,
					SafeDistB: safeB,
				}, true
			}

			disb += vb[ib].DistanceTo(vb[ib+1])
		}
		disa += va[ia].DistanceTo(va[ia+1])
	}
	return nil, false
}

// angleBetween returns the unsigned angle between u and v, folded to
// [0, pi].
func angleBetween(u, v geometry.Point) float64 {
	ang := math.Atan2(u.Cross(v), u.Dot(v))
	if ang < 0 {
		ang = -ang
	}
	return ang
}
