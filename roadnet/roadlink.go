package roadnet

// RoadLinkType is the turning movement a RoadLink represents. Priority
// ordering (straight beats left beats right) is used directly by the cross
// conflict policy (§4.5).
type RoadLinkType int

const (
	RoadLinkRight RoadLinkType = iota + 1
	RoadLinkLeft
	RoadLinkStraight
)

func ParseRoadLinkType(s string) RoadLinkType {
	switch s {
	case "go_straight":
		return RoadLinkStraight
	case "turn_left":
		return RoadLinkLeft
	case "turn_right":
		return RoadLinkRight
	default:
		log.Panicf("roadnet: unknown road link type %q", s)
		return 0
	}
}

// Priority returns the numeric priority used to break ties in canPass:
// higher wins, straight > left > right.
func (t RoadLinkType) Priority() int { return int(t) }

func (t RoadLinkType) IsTurn() bool { return t == RoadLinkLeft || t == RoadLinkRight }

// RoadLink groups the LaneLinks that perform one turning movement from one
// road to another through an Intersection, and carries the index into the
// owning Intersection's traffic-light phase availability vector.
type RoadLink struct {
	StartRoad *Road
	EndRoad   *Road
	Type      RoadLinkType

	LaneLinks []*LaneLink

	parent            *Intersection
	availabilityIndex int
}

// IsAvailable reports whether this road-link may currently be used,
// according to the owning intersection's traffic light (always true for a
// virtual intersection, which has no light).
func (rl *RoadLink) IsAvailable() bool {
	if rl.parent == nil || rl.parent.Light == nil {
		return true
	}
	return rl.parent.Light.currentAvailability(rl.availabilityIndex)
}
