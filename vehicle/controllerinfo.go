package vehicle

import (
	"math"

	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/utils/randengine"
)

// NeverEnteredLaneLink is the enterLaneLinkTime sentinel for a vehicle
// that has never been placed onto a lane-link (spec.md §4.5's cross-conflict
// tie-break treats it as later than any real step).
const NeverEnteredLaneLink = math.MaxInt64

// ControllerInfo is a vehicle's longitudinal state: where it is, what it's
// on, its leader and gap, and its Router.
type ControllerInfo struct {
	Dis          float64
	Drivable     roadnet.Drivable
	PrevDrivable roadnet.Drivable

	ApproachingIntersectionDistance float64

	Gap    float64
	Leader *Vehicle

	EnterLaneLinkTime int64

	Blocker *Vehicle

	End     bool
	Running bool

	Router *Router
}

func newControllerInfo(v *Vehicle, route []*roadnet.Road, rnd *randengine.Engine) *ControllerInfo {
	ci := &ControllerInfo{EnterLaneLinkTime: NeverEnteredLaneLink}
	ci.Router = newRouter(v, route, rnd)
	return ci
}
