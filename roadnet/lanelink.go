package roadnet

import "github.com/kotkaro/trafficsim/geometry"

// LaneLink is the drivable connecting a Lane on an incoming road to a Lane
// on an outgoing road across an Intersection. Its geometry is a short
// connector polyline (loaded or generated, spec.md §6); its waiting-area
// semantics are entirely delegated to ParentRoadLink's traffic-light
// availability.
type LaneLink struct {
	drivableBase

	StartLane *Lane
	EndLane   *Lane

	ParentRoadLink     *RoadLink
	ParentIntersection *Intersection

	Crosses []*Cross
}

func (l *LaneLink) Kind() DrivableKind { return KindLaneLink }

func (l *LaneLink) AsLane() (*Lane, bool)         { return nil, false }
func (l *LaneLink) AsLaneLink() (*LaneLink, bool) { return l, true }

// IsTurn reports whether traversing this lane-link is a turning movement
// (left or right), used by the reach-steps estimate in cross conflicts.
func (l *LaneLink) IsTurn() bool {
	return l.ParentRoadLink != nil && l.ParentRoadLink.Type.IsTurn()
}

// IsAvailable reports whether the owning road-link's traffic-light phase
// currently permits entry onto this lane-link.
func (l *LaneLink) IsAvailable() bool {
	if l.ParentRoadLink == nil {
		return true
	}
	return l.ParentRoadLink.IsAvailable()
}

func newLaneLink(id int64, width, maxSpeed float64, points []geometry.Point) *LaneLink {
	ll := &LaneLink{}
	ll.id = id
	ll.width = width
	ll.maxSpeed = maxSpeed
	ll.setPoints(points)
	return ll
}
