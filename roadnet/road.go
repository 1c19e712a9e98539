package roadnet

import "github.com/kotkaro/trafficsim/geometry"

// Road is a directed street between two intersections, carrying one or more
// parallel Lanes. Points is the road's raw center-line; each lane's own
// polyline is derived from it by initLanesPoints, offset by half lane
// widths and trimmed at non-virtual intersection ends.
type Road struct {
	id int64

	StartIntersection *Intersection
	EndIntersection   *Intersection

	Points []geometry.Point
	Lanes  []*Lane

	planRouteBuffer []VehicleRef
}

func (r *Road) ID() int64 { return r.id }

func (r *Road) GetWidth() float64 {
	w := 0.0
	for _, l := range r.Lanes {
		w += l.Width()
	}
	return w
}

// AverageLength is the mean of the per-lane polyline lengths (lanes differ
// slightly in length at curved intersections).
func (r *Road) AverageLength() float64 {
	if len(r.Lanes) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range r.Lanes {
		sum += l.Length()
	}
	return sum / float64(len(r.Lanes))
}

// nearestPointTo returns whichever of the road's two endpoints is closer
// to p, used to orient the road when judging an intersection's layout.
func (r *Road) nearestPointTo(p geometry.Point) geometry.Point {
	if len(r.Points) == 0 {
		return p
	}
	first, last := r.Points[0], r.Points[len(r.Points)-1]
	if first.DistanceTo(p) <= last.DistanceTo(p) {
		return first
	}
	return last
}

func (r *Road) ConnectedToRoad(other *Road) bool {
	for _, l := range r.Lanes {
		for _, ll := range l.LaneLinks {
			if ll.EndLane != nil && ll.EndLane.ParentRoad == other {
				return true
			}
		}
	}
	return false
}

// GetAverageSpeed aggregates every lane's rolling history, returning -1 if
// no lane's history window has counted a vehicle.
func (r *Road) GetAverageSpeed() float64 {
	totalNum := 0
	speedSum := 0.0
	for _, l := range r.Lanes {
		n := l.HistoryVehicleNum()
		totalNum += n
		speedSum += float64(n) * l.HistoryAverageSpeed()
	}
	if totalNum == 0 {
		return -1
	}
	return speedSum / float64(totalNum)
}

// GetAverageDuration estimates the mean travel time across the road from
// its average length and average speed.
func (r *Road) GetAverageDuration() float64 {
	speed := r.GetAverageSpeed()
	if speed <= 0 {
		return -1
	}
	return r.AverageLength() / speed
}

func (r *Road) PushPlanRoute(v VehicleRef) {
	r.planRouteBuffer = append(r.planRouteBuffer, v)
}

func (r *Road) DrainPlanRoute() []VehicleRef {
	buf := r.planRouteBuffer
	r.planRouteBuffer = nil
	return buf
}

func (r *Road) ClearPlanRoute() { r.planRouteBuffer = nil }

// initLanesPoints builds each lane's offset center-line from the road's raw
// points: trims the two end points by the owning intersection's width
// (skipped for virtual intersections, which have none), then for every
// lane, in ascending lane index, offsets each vertex perpendicular to the
// local tangent by the cumulative half-width of the lanes inside it. At an
// interior vertex the tangent is the bisector of the two adjacent segment
// directions, so the offset polyline stays a constant perpendicular
// distance from the road center-line through a bend.
func (r *Road) initLanesPoints() {
	pts := make([]geometry.Point, len(r.Points))
	copy(pts, r.Points)

	if len(pts) >= 2 {
		if r.StartIntersection != nil && !r.StartIntersection.Virtual {
			width := r.StartIntersection.Width
			p1, p2 := pts[0], pts[1]
			pts[0] = p1.Add(p2.Sub(p1).Unit().Scale(width))
		}
		if r.EndIntersection != nil && !r.EndIntersection.Virtual {
			width := r.EndIntersection.Width
			n := len(pts)
			p1, p2 := pts[n-2], pts[n-1]
			pts[n-1] = p2.Sub(p2.Sub(p1).Unit().Scale(width))
		}
	}

	dsum := 0.0
	for _, lane := range r.Lanes {
		dmin, dmax := dsum, dsum+lane.Width()
		offset := (dmin + dmax) / 2

		lanePts := make([]geometry.Point, len(pts))
		for j := range pts {
			var tangent geometry.Point
			switch {
			case j == 0:
				tangent = pts[1].Sub(pts[0]).Unit()
			case j == len(pts)-1:
				tangent = pts[j].Sub(pts[j-1]).Unit()
			default:
				tangent = geometry.Bisector(pts[j].Sub(pts[j-1]).Unit(), pts[j+1].Sub(pts[j]).Unit())
			}
			v := tangent.Normal().Scale(-1)
			lanePts[j] = pts[j].Add(v.Scale(offset))
		}
		lane.setPointsFrom(lanePts)
		dsum += lane.Width()
	}
}

// buildSegmentationByInterval gives every lane of the road the same number
// of spatial-index segments, sized so each one is close to interval long.
func (r *Road) buildSegmentationByInterval(interval float64) {
	n := 1
	if interval > 0 && len(r.Lanes) > 0 {
		length := r.AverageLength()
		n = int(length/interval + 0.999999)
		if n < 1 {
			n = 1
		}
	}
	for _, lane := range r.Lanes {
		lane.BuildSegmentation(n)
	}
}
