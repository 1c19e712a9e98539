// Package roadnet is the road-network graph: roads, lanes, lane-links,
// intersections, road-links, crosses and traffic lights (spec components
// C2 and C7). It is built once per simulation from JSON and is read-only
// during stepping except for per-drivable vehicle lists and traffic-light
// state.
//
// roadnet never imports the vehicle package: a vehicle is seen here only
// through the VehicleRef interface, so a Lane's vehicle list avoids a
// dependency cycle and can be built from container.List without one.
package roadnet

import (
	"github.com/sirupsen/logrus"

	"github.com/kotkaro/trafficsim/geometry"
	"github.com/kotkaro/trafficsim/utils/container"
)

var log = logrus.StandardLogger()

// VehicleRef is every operation the road-network needs to perform on a
// vehicle without knowing its concrete type: list ordering, the cross
// conflict policy, and segment indexing.
type VehicleRef interface {
	ID() string
	Priority() int64
	V() float64
	Length() float64
	MinGap() float64
	Distance() float64
	MinBrakeDistance() float64
	EnterLaneLinkTime() (step int64, never bool)
	Blocker() VehicleRef

	// UsualPosAcc, MaxSpeedParam and TurnSpeedParam are the vehicle
	// template parameters the cross-conflict reachSteps estimate needs;
	// named *Param to avoid colliding with V()/MaxSpeed() used elsewhere.
	UsualPosAcc() float64
	MaxSpeedParam() float64
	TurnSpeedParam() float64

	// CanYield and ReachStepsOnLaneLink back cross.CanPass (§4.5).
	CanYield(dist float64) bool
	ReachStepsOnLaneLink(distance float64, isTurn bool) int64
}

// VehicleSideLink holds the [left/right][back/front] neighbor pointers a
// vehicle keeps while scanning for a lane change target; it is the "Extra"
// payload of a VehicleNode.
type VehicleSideLink struct {
	Links [2][2]*VehicleNode
}

const (
	Left  = 0
	Right = 1
	Back  = 0
	Front = 1
)

func (l *VehicleSideLink) Clear() {
	l.Links[0][0], l.Links[0][1] = nil, nil
	l.Links[1][0], l.Links[1][1] = nil, nil
}

// VehicleNode and VehicleList instantiate the generic container for
// VehicleRef; S is always -distance so ascending order is descending
// distance, matching the invariant in spec.md §3.
type VehicleNode = container.ListNode[VehicleRef, VehicleSideLink]
type VehicleList = container.List[VehicleRef, VehicleSideLink]

// NewVehicleNode builds a list node for v at the correct sort key.
func NewVehicleNode(v VehicleRef) *VehicleNode {
	return &VehicleNode{S: -v.Distance(), Value: v}
}

// DrivableKind tags the two concrete Drivable implementations.
type DrivableKind int

const (
	KindLane DrivableKind = iota
	KindLaneLink
)

func (k DrivableKind) String() string {
	if k == KindLane {
		return "lane"
	}
	return "lane-link"
}

// Drivable is the polymorphic supertype of Lane and LaneLink (spec.md's
// "Polymorphism of Drivable" design note): a tagged variant with a shared
// header, dispatched by Kind and downcast via AsLane/AsLaneLink where the
// few lane-only or lane-link-only operations are needed.
type Drivable interface {
	ID() int64
	Kind() DrivableKind
	Length() float64
	Width() float64
	MaxSpeed() float64
	Vehicles() *VehicleList
	PointByDistance(s float64) geometry.Point
	OffsetPointByDistance(s, offset float64) geometry.Point
	DirectionByDistance(s float64) geometry.PolylineDirection
	AsLane() (*Lane, bool)
	AsLaneLink() (*LaneLink, bool)
}

// drivableBase is embedded by Lane and LaneLink to share the polyline and
// vehicle-list machinery.
type drivableBase struct {
	id       int64
	width    float64
	maxSpeed float64

	points []geometry.Point
	cum    []float64 // cumulative arclength, len(points)

	vehicles VehicleList
}

func (d *drivableBase) ID() int64          { return d.id }
func (d *drivableBase) Width() float64     { return d.width }
func (d *drivableBase) MaxSpeed() float64  { return d.maxSpeed }
func (d *drivableBase) Length() float64 {
	if len(d.cum) == 0 {
		return 0
	}
	return d.cum[len(d.cum)-1]
}
func (d *drivableBase) Vehicles() *VehicleList { return &d.vehicles }

func (d *drivableBase) PointByDistance(s float64) geometry.Point {
	return geometry.PointByDistance(d.points, d.cum, s, 0)
}

func (d *drivableBase) OffsetPointByDistance(s, offset float64) geometry.Point {
	return geometry.PointByDistance(d.points, d.cum, s, offset)
}

func (d *drivableBase) DirectionByDistance(s float64) geometry.PolylineDirection {
	return geometry.DirectionByDistance(d.points, d.cum, s)
}

func (d *drivableBase) setPoints(pts []geometry.Point) {
	d.points = pts
	d.cum = geometry.CumulativeLengths(pts)
}
