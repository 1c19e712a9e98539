package roadnet

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/samber/lo"

	"github.com/kotkaro/trafficsim/geometry"
	"github.com/kotkaro/trafficsim/simerr"
)

// segmentTargetLength is the approximate length, in meters, each lane
// segment should cover; it stands in for the "per-segment car capacity"
// bound of spec.md's Lane description (roughly six vehicle-lengths'
// worth of road per segment).
const segmentTargetLength = 30.0

// laneLinkMinGap is the minimum distance of each Bezier control point from
// its own endpoint when synthesizing a lane-link's polyline that isn't
// supplied by the road network file.
const laneLinkMinGap = 5.0

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p pointJSON) toPoint() geometry.Point { return geometry.Point{X: p.X, Y: p.Y} }

type laneJSON struct {
	Width    float64 `json:"width"`
	MaxSpeed float64 `json:"maxSpeed"`
}

type laneLinkJSON struct {
	StartLaneIndex int         `json:"startLaneIndex"`
	EndLaneIndex   int         `json:"endLaneIndex"`
	Points         []pointJSON `json:"points,omitempty"`
}

type roadLinkJSON struct {
	Type      string         `json:"type"`
	StartRoad int64          `json:"startRoad"`
	EndRoad   int64          `json:"endRoad"`
	LaneLinks []laneLinkJSON `json:"laneLinks"`
}

type lightPhaseJSON struct {
	Time               float64 `json:"time"`
	AvailableRoadLinks []int   `json:"availableRoadLinks"`
}

type trafficLightJSON struct {
	LightPhases []lightPhaseJSON `json:"lightphases"`
}

type intersectionJSON struct {
	ID           int64             `json:"id"`
	Point        pointJSON         `json:"point"`
	Virtual      bool              `json:"virtual"`
	Width        float64           `json:"width"`
	Roads        []int64           `json:"roads"`
	RoadLinks    []roadLinkJSON    `json:"roadLinks"`
	TrafficLight trafficLightJSON  `json:"trafficLight"`
}

type roadJSON struct {
	ID                int64       `json:"id"`
	StartIntersection int64       `json:"startIntersection"`
	EndIntersection   int64       `json:"endIntersection"`
	Points            []pointJSON `json:"points"`
	Lanes             []laneJSON  `json:"lanes"`
}

type roadNetJSON struct {
	Intersections []intersectionJSON `json:"intersections"`
	Roads         []roadJSON         `json:"roads"`
}

// RoadNet is the fully-built, cross-linked road network: every Road,
// Lane, Intersection, RoadLink, LaneLink and Cross reachable from one
// simulation run. It is assembled once by Load and is read-only
// thereafter except for per-drivable vehicle lists and traffic-light
// phase state.
type RoadNet struct {
	Intersections []*Intersection
	Roads         []*Road
	Lanes         []*Lane
	LaneLinks     []*LaneLink

	intersectionByID map[int64]*Intersection
	roadByID         map[int64]*Road
}

func (rn *RoadNet) Intersection(id int64) *Intersection { return rn.intersectionByID[id] }
func (rn *RoadNet) Road(id int64) *Road                 { return rn.roadByID[id] }

// Load reads a road-network JSON file (spec.md §6's intersections/roads
// schema) and builds the cross-linked RoadNet: lane polylines, lane-link
// geometry (generated when not supplied), segmentation, traffic lights and
// crosses.
func Load(path string) (*RoadNet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "roadnet: open %s: %v", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "roadnet: read %s: %v", path, err)
	}

	var doc roadNetJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "roadnet: parse %s: %v", path, err)
	}
	return build(&doc)
}

func build(doc *roadNetJSON) (*RoadNet, error) {
	rn := &RoadNet{}

	// First pass: roads and intersections as bare shells, so cross
	// references (road.StartIntersection etc.) can be resolved below
	// regardless of declaration order.
	for _, rj := range doc.Roads {
		road := &Road{id: rj.ID}
		pts := make([]geometry.Point, len(rj.Points))
		for i, p := range rj.Points {
			pts[i] = p.toPoint()
		}
		road.Points = pts
		for i, lj := range rj.Lanes {
			lane := newLane(rj.ID<<8|int64(i), lj.Width, lj.MaxSpeed, i, road)
			road.Lanes = append(road.Lanes, lane)
			rn.Lanes = append(rn.Lanes, lane)
		}
		rn.Roads = append(rn.Roads, road)
	}
	rn.roadByID = lo.SliceToMap(rn.Roads, func(r *Road) (int64, *Road) { return r.id, r })

	rn.intersectionByID = make(map[int64]*Intersection, len(doc.Intersections))
	for _, ij := range doc.Intersections {
		it := &Intersection{
			ID:      fmt.Sprintf("%d", ij.ID),
			Point:   ij.Point.toPoint(),
			Virtual: ij.Virtual,
			Width:   ij.Width,
		}
		rn.Intersections = append(rn.Intersections, it)
		rn.intersectionByID[ij.ID] = it
	}

	for _, rj := range doc.Roads {
		road := rn.roadByID[rj.ID]
		road.StartIntersection = rn.intersectionByID[rj.StartIntersection]
		road.EndIntersection = rn.intersectionByID[rj.EndIntersection]
	}

	for _, ij := range doc.Intersections {
		it := rn.intersectionByID[ij.ID]
		for _, rid := range ij.Roads {
			if r := rn.roadByID[rid]; r != nil {
				it.Roads = append(it.Roads, r)
			}
		}

		for linkIdx, rlj := range ij.RoadLinks {
			startRoad := rn.roadByID[rlj.StartRoad]
			endRoad := rn.roadByID[rlj.EndRoad]
			rl := &RoadLink{
				StartRoad:         startRoad,
				EndRoad:           endRoad,
				Type:              ParseRoadLinkType(rlj.Type),
				parent:            it,
				availabilityIndex: linkIdx,
			}

			for _, llj := range rlj.LaneLinks {
				startLane := startRoad.Lanes[llj.StartLaneIndex]
				endLane := endRoad.Lanes[llj.EndLaneIndex]

				var pts []geometry.Point
				if len(llj.Points) > 0 {
					pts = make([]geometry.Point, len(llj.Points))
					for i, p := range llj.Points {
						pts[i] = p.toPoint()
					}
				} else {
					pts = synthesizeLaneLinkGeometry(startLane, endLane)
				}

				ll := newLaneLink(int64(len(rn.LaneLinks)), (startLane.Width()+endLane.Width())/2, min(startLane.MaxSpeed(), endLane.MaxSpeed()), pts)
				ll.StartLane = startLane
				ll.EndLane = endLane
				ll.ParentRoadLink = rl
				ll.ParentIntersection = it

				rl.LaneLinks = append(rl.LaneLinks, ll)
				startLane.LaneLinks = append(startLane.LaneLinks, ll)
				rn.LaneLinks = append(rn.LaneLinks, ll)
			}

			it.RoadLinks = append(it.RoadLinks, rl)
		}

		if len(ij.TrafficLight.LightPhases) > 0 {
			phases := make([]LightPhase, len(ij.TrafficLight.LightPhases))
			for i, pj := range ij.TrafficLight.LightPhases {
				avail := make([]bool, len(it.RoadLinks))
				for _, idx := range pj.AvailableRoadLinks {
					if idx >= 0 && idx < len(avail) {
						avail[idx] = true
					}
				}
				phases[i] = LightPhase{Duration: pj.Time, Available: avail}
			}
			it.Light = NewTrafficLight(it, phases)
		}
	}

	for _, road := range rn.Roads {
		road.initLanesPoints()
		road.buildSegmentationByInterval(segmentTargetLength)
	}
	for _, it := range rn.Intersections {
		if !it.Virtual {
			it.InitCrosses()
			it.GetOutline()
			warnIfOneSided(it)
		}
	}

	return rn, nil
}

// warnIfOneSided flags an intersection whose roads all approach from
// within the same half-plane: a real junction normally has roads on at
// least two sides, so this usually means a roadnet authoring mistake
// rather than an intentional dead-end-like shape.
func warnIfOneSided(it *Intersection) {
	if len(it.Roads) < 2 {
		return
	}
	var angles []float64
	for _, r := range it.Roads {
		near := r.nearestPointTo(it.Point)
		dx, dy := near.X-it.Point.X, near.Y-it.Point.Y
		if dx == 0 && dy == 0 {
			continue
		}
		angles = append(angles, math.Atan2(dy, dx))
	}
	if len(angles) < 2 {
		return
	}
	sort.Float64s(angles)
	maxGap := 2*math.Pi - (angles[len(angles)-1] - angles[0])
	for i := 1; i < len(angles); i++ {
		if gap := angles[i] - angles[i-1]; gap > maxGap {
			maxGap = gap
		}
	}
	if 2*math.Pi-maxGap < math.Pi {
		log.Warnf("roadnet: intersection %s has all roads within one half-plane (possible authoring mistake)", it.ID)
	}
}

// synthesizeLaneLinkGeometry builds a lane-link polyline from a cubic
// curve through the start and end lane endpoints, with control points
// placed along each lane's own tangent at half the endpoint distance
// (clamped apart by laneLinkMinGap so nearly-adjacent lanes don't produce
// a degenerate, self-overlapping curve).
func synthesizeLaneLinkGeometry(start, end *Lane) []geometry.Point {
	p0 := start.PointByDistance(start.Length())
	p3 := end.PointByDistance(0)

	dist := p0.DistanceTo(p3)
	half := dist / 2
	if half < laneLinkMinGap {
		half = laneLinkMinGap
	}

	t0 := start.DirectionByDistance(start.Length())
	t1 := end.DirectionByDistance(0)

	p1 := p0.Add(t0.Scale(half))
	p2 := p3.Sub(t1.Scale(half))

	const samples = 16
	pts := make([]geometry.Point, 0, samples+1)
	for i := 0; i <= samples; i++ {
		t := float64(i) / float64(samples)
		pts = append(pts, cubicBezier(p0, p1, p2, p3, t))
	}
	return pts
}

func cubicBezier(p0, p1, p2, p3 geometry.Point, t float64) geometry.Point {
	u := 1 - t
	a := p0.Scale(u * u * u)
	b := p1.Scale(3 * u * u * t)
	c := p2.Scale(3 * u * t * t)
	d := p3.Scale(t * t * t)
	return a.Add(b).Add(c).Add(d)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
