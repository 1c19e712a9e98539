package vehicle

// PartnerType tags the relationship between a vehicle and its lane-change
// partner while a change is in progress (spec.md §4.4): a vehicle mid
// change has a real/shadow pair sharing the same longitudinal state.
type PartnerType int

const (
	PartnerNone PartnerType = iota
	PartnerReal
	PartnerShadow
)

// LaneChangeInfo is the lateral-position half of a vehicle's state: the
// partner pointer set up by insertShadow, the lateral offset used to blend
// get_point between the current and target lane, and the segment index
// cache used by the lane-change side-gap search.
type LaneChangeInfo struct {
	PartnerType  PartnerType
	Partner      *Vehicle
	Offset       float64
	SegmentIndex int
}
