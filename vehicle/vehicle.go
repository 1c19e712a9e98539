package vehicle

import (
	"math"

	"github.com/kotkaro/trafficsim/clock"
	"github.com/kotkaro/trafficsim/geometry"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/utils/randengine"
)

// Vehicle is one simulated car: a kinematic cursor along a Drivable, a
// Template of physical parameters, a Router, and the lane-change machinery.
// It implements roadnet.VehicleRef so the road network can hold it in a
// drivable's vehicle list without importing this package.
type Vehicle struct {
	id       string
	priority int64
	template Template
	speed    float64

	controllerInfo *ControllerInfo
	laneChangeInfo *LaneChangeInfo
	laneChange     *LaneChange
	buffer         Buffer

	node *roadnet.VehicleNode

	routeValid bool
	enterTime  float64
	flowID     string

	clk *clock.Clock
	rnd *randengine.Engine
}

// New builds a vehicle freshly emitted by a flow. uniquePriority must
// return a priority not currently held by any live vehicle (the owning
// pool's responsibility, since only it can see every vehicle at once).
func New(id string, tmpl Template, route []*roadnet.Road, clk *clock.Clock, rnd *randengine.Engine, flowID string, uniquePriority func() int64) *Vehicle {
	v := &Vehicle{
		id:         id,
		template:   tmpl,
		speed:      0,
		laneChangeInfo: &LaneChangeInfo{},
		clk:        clk,
		rnd:        rnd,
		flowID:     flowID,
	}
	v.controllerInfo = newControllerInfo(v, route, rnd)
	v.controllerInfo.ApproachingIntersectionDistance = tmpl.MaxSpeed*tmpl.MaxSpeed/tmpl.UsualNegAcc/2 + tmpl.MaxSpeed*clk.Dt*2
	v.laneChange = newLaneChange(v, nil)
	v.priority = uniquePriority()
	v.enterTime = clk.T
	return v
}

// cloneAsShadow builds the shadow half of a lane-change pair: same
// longitudinal state, its own Router and LaneChange, linked back to real
// via LaneChangeInfo.
func (v *Vehicle) cloneAsShadow(id string) *Vehicle {
	shadow := &Vehicle{
		id:             id,
		priority:       v.priority,
		template:       v.template,
		speed:          v.speed,
		laneChangeInfo: &LaneChangeInfo{},
		clk:            v.clk,
		rnd:            v.rnd,
		flowID:         v.flowID,
		enterTime:      v.enterTime,
	}
	ci := *v.controllerInfo
	shadow.controllerInfo = &ci
	shadow.controllerInfo.Router = newRouter(shadow, v.controllerInfo.Router.route, v.rnd)
	shadow.controllerInfo.Router.curRoadIdx = v.controllerInfo.Router.curRoadIdx
	shadow.laneChange = newLaneChange(shadow, v.laneChange)
	return shadow
}

// --- roadnet.VehicleRef ---

func (v *Vehicle) ID() string       { return v.id }
func (v *Vehicle) Priority() int64  { return v.priority }
func (v *Vehicle) V() float64       { return v.speed }
func (v *Vehicle) Length() float64  { return v.template.Length }
func (v *Vehicle) MinGap() float64  { return v.template.MinGap }
func (v *Vehicle) Distance() float64 { return v.controllerInfo.Dis }

func (v *Vehicle) MinBrakeDistance() float64 {
	return 0.5 * v.speed * v.speed / v.template.MaxNegAcc
}

func (v *Vehicle) EnterLaneLinkTime() (int64, bool) {
	t := v.controllerInfo.EnterLaneLinkTime
	return t, t == NeverEnteredLaneLink
}

func (v *Vehicle) Blocker() roadnet.VehicleRef {
	if v.controllerInfo.Blocker == nil {
		return nil
	}
	return v.controllerInfo.Blocker
}

func (v *Vehicle) UsualPosAcc() float64  { return v.template.UsualPosAcc }
func (v *Vehicle) MaxSpeedParam() float64 { return v.template.MaxSpeed }
func (v *Vehicle) TurnSpeedParam() float64 { return v.template.TurnSpeed }

// CanYield reports whether a vehicle approaching a conflict at signed
// distance dist can come to a stop before reaching it (or has already
// fully cleared it).
func (v *Vehicle) CanYield(dist float64) bool {
	return (dist > 0 && v.MinBrakeDistance() < dist-v.template.YieldDistance) ||
		(dist < 0 && dist+v.template.Length < 0)
}

// ReachStepsOnLaneLink estimates, in steps, how long this vehicle would
// take to cover distance while accelerating at its usual rate toward the
// speed appropriate for a turning or straight movement.
func (v *Vehicle) ReachStepsOnLaneLink(distance float64, isTurn bool) int64 {
	target := v.template.MaxSpeed
	if isTurn {
		target = v.template.TurnSpeed
	}
	return v.getReachSteps(distance, target, v.template.UsualPosAcc)
}

func (v *Vehicle) interval() float64 { return v.clk.Dt }

// getReachSteps implements the reach-steps formula shared by car-following
// and cross-conflict estimation: if already past target speed it's a
// constant-speed estimate; otherwise it splits into the acceleration phase
// and the constant-speed remainder.
func (v *Vehicle) getReachSteps(distance, targetSpeed, acc float64) int64 {
	if distance <= 0 {
		return 0
	}
	if v.speed > targetSpeed {
		return int64(math.Ceil(distance / v.speed))
	}

	distUntilTarget := v.getDistanceUntilSpeed(targetSpeed, acc)
	interval := v.interval()
	if distUntilTarget > distance {
		return int64(math.Ceil((math.Sqrt(v.speed*v.speed+2*acc*distance) - v.speed) / acc / interval))
	}
	return int64(math.Ceil((targetSpeed-v.speed)/acc/interval)) +
		int64(math.Ceil((distance-distUntilTarget)/targetSpeed/interval))
}

// getDistanceUntilSpeed is the discretized distance covered while
// accelerating at acc from the current speed up to speed, stepping at the
// simulation interval (preserved exactly as derived from the reference
// model, including its two-stage discretization).
func (v *Vehicle) getDistanceUntilSpeed(speed, acc float64) float64 {
	if speed <= v.speed {
		return 0
	}
	interval := v.interval()
	stage1Steps := math.Floor((speed - v.speed) / acc / interval)
	stage1Speed := v.speed + stage1Steps*acc/interval
	stage1Dis := (v.speed + stage1Speed) * (stage1Steps * interval) / 2

	if stage1Speed < speed {
		return stage1Dis + (stage1Speed+speed)*interval/2
	}
	return 0
}

// --- car following ---

// GetNoCollisionSpeed computes the fastest speed the follower (speed vF,
// braking capacity dF) may take this step without a risk of colliding with
// a leader (speed vL, braking capacity dL) currently gap away, maintaining
// at least targetGap once both have reacted. Returns -100, a deliberately
// unreachable sentinel, if no real solution exists (the discriminant is
// negative).
func GetNoCollisionSpeed(vL, dL, vF, dF, gap, interval, targetGap float64) float64 {
	c := vF*interval/2 + targetGap - 0.5*vL*vL/dL - gap
	a := 0.5 / dF
	b := 0.5 * interval
	if b*b < 4*a*c {
		return -100
	}
	v1 := 0.5 / a * (math.Sqrt(b*b-4*a*c) - b)
	v2 := 2*vL - dL*interval + 2*(gap-targetGap)/interval
	return math.Min(v1, v2)
}

// GetCarFollowSpeed is the IDM-like speed cap from the leader gap: no
// worse than the no-collision bound at both the leader's hardest brake and
// its usual one, and no worse than the headway-time spacing rule.
func (v *Vehicle) GetCarFollowSpeed(interval float64) float64 {
	leader := v.controllerInfo.Leader
	if leader == nil {
		if v.buffer.HasCustomSpeed() {
			return v.buffer.customSpeed
		}
		return v.template.MaxSpeed
	}

	speed := GetNoCollisionSpeed(leader.speed, leader.template.MaxNegAcc, v.speed, v.template.MaxNegAcc, v.controllerInfo.Gap, interval, 0)

	if v.buffer.HasCustomSpeed() {
		return math.Min(v.buffer.customSpeed, speed)
	}

	assumeDecel := 0.0
	if v.speed > leader.speed {
		assumeDecel = v.speed - leader.speed
	}

	speed = math.Min(speed, GetNoCollisionSpeed(leader.speed, leader.template.UsualNegAcc, v.speed, v.template.UsualNegAcc, v.controllerInfo.Gap, interval, v.template.MinGap))
	speed = math.Min(speed, (v.controllerInfo.Gap+(leader.speed+assumeDecel/2)*interval-v.speed*interval/2)/(v.template.HeadwayTime+interval/2))
	return speed
}

// GetStopBeforeSpeed returns the speed that brings the vehicle to a stop
// exactly at distance ahead, using the usual acceleration profile if there
// is room, otherwise decelerating harder over the remaining distance.
func (v *Vehicle) GetStopBeforeSpeed(distance, interval float64) float64 {
	if v.getBrakeDistanceAfterAccel(v.template.UsualPosAcc, v.template.UsualNegAcc, interval) < distance {
		return v.speed + v.template.UsualPosAcc*interval
	}
	takeInterval := 2 * distance / (v.speed + geometry.Eps) / interval
	if takeInterval >= 1 {
		return v.speed - v.speed/takeInterval
	}
	return v.speed - v.speed/takeInterval
}

func (v *Vehicle) getBrakeDistanceAfterAccel(acc, dec, interval float64) float64 {
	next := v.speed + acc*interval
	return (v.speed+next)*interval/2 + next*next/dec/2
}

// IsIntersectionRelated reports whether the vehicle is on a lane-link, or
// close enough to the end of its lane that the upcoming lane-link's
// traffic-light state and cross conflicts already constrain its speed.
func (v *Vehicle) IsIntersectionRelated() bool {
	d := v.controllerInfo.Drivable
	if _, ok := d.AsLaneLink(); ok {
		return true
	}
	lane, ok := d.AsLane()
	if !ok {
		return false
	}
	next := v.controllerInfo.Router.NextDrivable(0)
	if next == nil {
		return false
	}
	if _, ok := next.AsLaneLink(); ok {
		return lane.Length()-v.controllerInfo.Dis <= v.controllerInfo.ApproachingIntersectionDistance
	}
	return false
}

// GetNextSpeed computes the step's speed cap from every constraint: the
// drivable's speed limit, positive acceleration, car-following, the
// intersection/cross-conflict bound, the lane-change yield speed, and
// finally the hard deceleration floor.
func (v *Vehicle) GetNextSpeed(interval float64) float64 {
	speed := v.template.MaxSpeed
	speed = math.Min(speed, v.speed+v.template.MaxPosAcc*interval)
	speed = math.Min(speed, v.controllerInfo.Drivable.MaxSpeed())
	speed = math.Min(speed, v.GetCarFollowSpeed(interval))

	if v.IsIntersectionRelated() {
		speed = math.Min(speed, v.getIntersectionRelatedSpeed(interval))
	}

	if v.laneChange != nil {
		speed = math.Min(speed, v.laneChange.yieldSpeed(interval))
		if !v.controllerInfo.Router.OnValidLane() {
			vn := GetNoCollisionSpeed(0, 1, v.speed, v.template.MaxNegAcc, v.controllerInfo.Drivable.Length()-v.controllerInfo.Dis, interval, v.template.MinGap)
			speed = math.Min(speed, vn)
		}
	}

	speed = math.Max(speed, v.speed-v.template.MaxNegAcc*interval)
	return speed
}

// getIntersectionRelatedSpeed caps speed for a red or blocked upcoming
// lane-link, a turning-movement speed limit, and any cross this vehicle's
// lane-link participates in that it must yield at.
func (v *Vehicle) getIntersectionRelatedSpeed(interval float64) float64 {
	speed := v.template.MaxSpeed

	var laneLink *roadnet.LaneLink
	next := v.controllerInfo.Router.NextDrivable(0)
	if next != nil {
		if ll, ok := next.AsLaneLink(); ok {
			laneLink = ll
			if !ll.IsAvailable() || !ll.EndLane.CanEnter(v) {
				remaining := v.controllerInfo.Drivable.Length() - v.controllerInfo.Dis
				if v.MinBrakeDistance() > remaining {
					return speed
				}
				return math.Min(speed, v.GetStopBeforeSpeed(remaining, interval))
			}
			if ll.IsTurn() {
				speed = math.Min(speed, v.template.TurnSpeed)
			}
		}
	}

	if laneLink == nil {
		if ll, ok := v.controllerInfo.Drivable.AsLaneLink(); ok {
			laneLink = ll
		}
	}
	if laneLink == nil {
		return speed
	}

	var distanceToLinkStart float64
	if lane, ok := v.controllerInfo.Drivable.AsLane(); ok {
		distanceToLinkStart = -(lane.Length() - v.controllerInfo.Dis)
	} else {
		distanceToLinkStart = v.controllerInfo.Dis
	}

	for _, cross := range laneLink.Crosses {
		distOnLink := crossSafeDistanceByLane(cross, laneLink)
		if distOnLink < distanceToLinkStart {
			continue
		}
		if cross.CanPass(v, laneLink, distanceToLinkStart) {
			continue
		}
		speed = math.Min(speed, v.GetStopBeforeSpeed(distOnLink-distanceToLinkStart-v.template.YieldDistance, interval))
		v.buffer.SetBlocker(crossFoeVehicle(cross, laneLink))
		break
	}
	return speed
}

func crossSafeDistanceByLane(c *roadnet.Cross, link *roadnet.LaneLink) float64 {
	if c.LinkA == link {
		return c.DistA - c.SafeDistA
	}
	return c.DistB - c.SafeDistB
}

func crossFoeVehicle(c *roadnet.Cross, self *roadnet.LaneLink) *Vehicle {
	other := c.LinkA
	if other == self {
		other = c.LinkB
	}
	node := other.Vehicles().Last()
	if node == nil {
		return nil
	}
	if v, ok := node.Value.(*Vehicle); ok {
		return v
	}
	return nil
}

// UpdateLeaderAndGap recomputes the vehicle's leader and the longitudinal
// gap to it, searching forward across drivable boundaries (up to the
// vehicle's approaching-intersection horizon) if nothing is found on the
// current drivable.
func (v *Vehicle) UpdateLeaderAndGap(leader *Vehicle) {
	if leader != nil && leader.controllerInfo.Drivable == v.controllerInfo.Drivable {
		v.controllerInfo.Leader = leader
		v.controllerInfo.Gap = leader.Distance() - leader.Length() - v.controllerInfo.Dis
		return
	}

	v.controllerInfo.Leader = nil
	dis := v.controllerInfo.Drivable.Length() - v.controllerInfo.Dis
	horizon := v.template.MaxSpeed*v.template.MaxSpeed/v.template.UsualNegAcc/2 + v.template.MaxSpeed*v.interval()*2

	for i := 0; ; i++ {
		drivable := v.controllerInfo.Router.NextDrivable(i)
		if drivable == nil {
			return
		}

		if ll, ok := drivable.AsLaneLink(); ok {
			var best *Vehicle
			bestGap := 0.0
			for _, sibling := range ll.StartLane.LaneLinks {
				node := sibling.Vehicles().Last()
				if node == nil {
					continue
				}
				candidate, ok := node.Value.(*Vehicle)
				if !ok {
					continue
				}
				candidateGap := dis + candidate.Distance() - candidate.Length()
				if best == nil || candidateGap < bestGap {
					best, bestGap = candidate, candidateGap
				}
			}
			if best != nil {
				v.controllerInfo.Leader = best
				v.controllerInfo.Gap = bestGap
				return
			}
		} else {
			node := drivable.Vehicles().Last()
			if node != nil {
				if candidate, ok := node.Value.(*Vehicle); ok {
					v.controllerInfo.Leader = candidate
					v.controllerInfo.Gap = dis + candidate.Distance() - candidate.Length()
					return
				}
			}
		}

		dis += drivable.Length()
		if dis > horizon {
			return
		}
	}
}

// GetPoint returns the vehicle's world-space position: its position along
// the current drivable when it has no lateral offset, or a blend toward
// the adjacent lane while mid lane-change.
func (v *Vehicle) GetPoint() geometry.Point {
	lane, isLane := v.controllerInfo.Drivable.AsLane()
	if math.Abs(v.laneChangeInfo.Offset) < geometry.Eps || !isLane {
		return v.controllerInfo.Drivable.PointByDistance(v.controllerInfo.Dis)
	}

	origin := lane.PointByDistance(v.controllerInfo.Dis)
	lanes := lane.ParentRoad.Lanes

	var next geometry.Point
	var pct float64
	if v.laneChangeInfo.Offset > 0 {
		adj := lanes[lane.LaneIndex+1]
		next = adj.PointByDistance(v.controllerInfo.Dis)
		pct = 2 * v.laneChangeInfo.Offset / (lane.Width() + adj.Width())
	} else {
		adj := lanes[lane.LaneIndex-1]
		next = adj.PointByDistance(v.controllerInfo.Dis)
		pct = -2 * v.laneChangeInfo.Offset / (lane.Width() + adj.Width())
	}
	return geometry.Point{
		X: next.X*pct + origin.X*(1-pct),
		Y: next.Y*pct + origin.Y*(1-pct),
	}
}

// SetDeltaDistance projects a forward displacement across drivable
// boundaries, staging the resulting drivable and remaining distance into
// the write buffer rather than mutating state directly (stage 9 is
// parallel across vehicles).
func (v *Vehicle) SetDeltaDistance(dis float64) {
	if v.buffer.isDisSet && dis >= v.buffer.deltaDis {
		return
	}
	v.buffer.UnsetEnd()
	v.buffer.UnsetDrivable()
	v.buffer.deltaDis = dis

	dis += v.controllerInfo.Dis
	drivable := v.controllerInfo.Drivable

	for i := 0; dis > drivable.Length(); i++ {
		dis -= drivable.Length()
		next := v.controllerInfo.Router.NextDrivable(i)
		if next == nil {
			v.buffer.SetEnd(true)
			break
		}
		drivable = next
		v.buffer.SetDrivable(drivable)
	}
	v.buffer.SetDis(dis)
}

// Update flushes the write buffer into live state; called from stage 10
// (updateLocation, by the worker owning the vehicle's drivable) once every
// vehicle's stage 9 action has been staged.
func (v *Vehicle) Update(step int64) {
	b := &v.buffer
	if b.isEndSet {
		v.controllerInfo.End = b.end
		b.isEndSet = false
	}
	if b.isDisSet {
		v.controllerInfo.Dis = b.dis
		b.isDisSet = false
	}
	if b.isSpeedSet {
		v.speed = b.speed
		b.isSpeedSet = false
	}
	b.isCustomSpeedSet = false

	if b.isDrivableSet {
		v.controllerInfo.PrevDrivable = v.controllerInfo.Drivable
		v.controllerInfo.Drivable = b.drivable
		b.isDrivableSet = false
		v.controllerInfo.Router.Update()
		if _, ok := b.drivable.AsLaneLink(); ok {
			v.controllerInfo.EnterLaneLinkTime = step
		} else {
			v.controllerInfo.EnterLaneLinkTime = NeverEnteredLaneLink
		}
	}
	if b.isBlockerSet {
		v.controllerInfo.Blocker = b.blocker
		b.isBlockerSet = false
	} else {
		v.controllerInfo.Blocker = nil
	}
}

// ComputeAction is stage 9 of the pipeline (getAction) for one vehicle: it
// picks the next speed from every constraint and stages both the speed and
// the resulting forward displacement into the write buffer, braking hard
// to a stop rather than reversing if every constraint pulls speed negative.
func (v *Vehicle) ComputeAction(interval float64) {
	v.Reconcile(v.GetNextSpeed(interval), interval)
}

// BufferedSpeed returns the speed ComputeAction staged this step, used by
// the pipeline to reconcile a real/shadow pair onto one shared value
// before either is committed (spec.md §4.1 stage 9).
func (v *Vehicle) BufferedSpeed() float64 { return v.buffer.speed }

// Reconcile forces this step's speed to the given value (typically the
// min of a real/shadow pair) and re-derives the displacement it implies,
// overwriting whatever ComputeAction staged independently.
func (v *Vehicle) Reconcile(speed, interval float64) {
	var deltaDis float64
	if speed < 0 {
		deltaDis = 0.5 * v.speed * v.speed / v.template.MaxNegAcc
		speed = 0
	} else {
		deltaDis = (v.speed + speed) * interval / 2
	}
	v.buffer.SetSpeed(speed)
	v.SetDeltaDistance(deltaDis)
}

// PendingEnd reports whether this step's buffer marks the vehicle as
// having reached the end of its route.
func (v *Vehicle) PendingEnd() bool { return v.buffer.isEndSet && v.buffer.end }

// PendingDrivable reports the drivable this vehicle is about to move onto
// this step, if any.
func (v *Vehicle) PendingDrivable() (roadnet.Drivable, bool) {
	return v.buffer.ChangedDrivable()
}

// BufferedDistance returns the distance this step staged onto the
// vehicle's (possibly new) drivable, before Update flushes it.
func (v *Vehicle) BufferedDistance() float64 { return v.buffer.dis }

func (v *Vehicle) IsRunning() bool { return v.controllerInfo.Running }
func (v *Vehicle) SetRunning(r bool) { v.controllerInfo.Running = r }
func (v *Vehicle) IsEnd() bool     { return v.controllerInfo.End }
func (v *Vehicle) SetFirstDrivable() {
	v.controllerInfo.Drivable = v.controllerInfo.Router.FirstDrivable()
}
func (v *Vehicle) CurDrivable() roadnet.Drivable { return v.controllerInfo.Drivable }
func (v *Vehicle) SegmentIndex() int             { return v.laneChangeInfo.SegmentIndex }
func (v *Vehicle) SetSegmentIndex(i int)         { v.laneChangeInfo.SegmentIndex = i }
func (v *Vehicle) Offset() float64               { return v.laneChangeInfo.Offset }
func (v *Vehicle) Node() *roadnet.VehicleNode    { return v.node }
func (v *Vehicle) SetNode(n *roadnet.VehicleNode) { v.node = n }
func (v *Vehicle) FlowID() string                { return v.flowID }
func (v *Vehicle) EnterTime() float64            { return v.enterTime }
func (v *Vehicle) Router() *Router               { return v.controllerInfo.Router }
func (v *Vehicle) LaneChange() *LaneChange       { return v.laneChange }
func (v *Vehicle) ControllerInfo() *ControllerInfo { return v.controllerInfo }
func (v *Vehicle) Template() Template             { return v.template }
// SetCustomSpeed overrides GetNextSpeed's computed cap for exactly the next
// call to ComputeAction (the control API's set-vehicle-speed operation);
// Update clears it again once that step's buffer is flushed.
func (v *Vehicle) SetCustomSpeed(speed float64) { v.buffer.SetCustomSpeed(speed) }

// SetRoute replaces the vehicle's remaining route (the control API's
// set-vehicle-route operation); the caller is responsible for having
// stitched a feasible sequence of roads starting at the vehicle's current
// road.
func (v *Vehicle) SetRoute(route []*roadnet.Road) { v.controllerInfo.Router.SetRoute(route) }

func (v *Vehicle) SetPriority(p int64)            { v.priority = p }
func (v *Vehicle) SetID(id string)                { v.id = id }
func (v *Vehicle) IsReal() bool                   { return v.laneChangeInfo.PartnerType != PartnerShadow }
func (v *Vehicle) Partner() *Vehicle              { return v.laneChangeInfo.Partner }

func (v *Vehicle) setShadow(shadow *Vehicle) {
	v.laneChangeInfo.PartnerType = PartnerReal
	v.laneChangeInfo.Partner = shadow
}

func (v *Vehicle) setParent(real *Vehicle) {
	v.laneChangeInfo.PartnerType = PartnerShadow
	v.laneChangeInfo.Partner = real
}

// Clone makes a deep value copy of v for archiving (spec.md §9's
// cyclic-reference strategy): every cross-vehicle field (leader, blocker,
// lane-change partner/target-leader/target-follower, a pending signal's
// source) is copied as-is, still pointing at the *original* vehicles.
// RewireReferences must be called on every clone afterward, once the whole
// pool has been cloned, to retarget those fields at their counterparts in
// the new pool.
func (v *Vehicle) Clone() *Vehicle {
	clone := &Vehicle{
		id:         v.id,
		priority:   v.priority,
		template:   v.template,
		speed:      v.speed,
		clk:        v.clk,
		rnd:        v.rnd,
		routeValid: v.routeValid,
		enterTime:  v.enterTime,
		flowID:     v.flowID,
		buffer:     v.buffer,
	}

	ci := *v.controllerInfo
	r := *v.controllerInfo.Router
	r.vehicle = clone
	r.planned = append([]roadnet.Drivable(nil), r.planned...)
	ci.Router = &r
	clone.controllerInfo = &ci

	lci := *v.laneChangeInfo
	clone.laneChangeInfo = &lci

	lc := *v.laneChange
	lc.vehicle = clone
	if lc.signalSend != nil {
		cp := *lc.signalSend
		cp.Source = clone
		lc.signalSend = &cp
	}
	clone.laneChange = &lc

	return clone
}

// RewireReferences retargets every cross-vehicle field left pointing at the
// pre-clone pool by Clone, using resolve to map an original vehicle's
// priority to its counterpart in the new pool. Safe to call only after
// every vehicle in the pool has already been cloned.
func (v *Vehicle) RewireReferences(resolve func(priority int64) *Vehicle) {
	v.controllerInfo.Leader = resolveVehicle(v.controllerInfo.Leader, resolve)
	v.controllerInfo.Blocker = resolveVehicle(v.controllerInfo.Blocker, resolve)
	v.laneChangeInfo.Partner = resolveVehicle(v.laneChangeInfo.Partner, resolve)
	v.laneChange.targetLeader = resolveVehicle(v.laneChange.targetLeader, resolve)
	v.laneChange.targetFollower = resolveVehicle(v.laneChange.targetFollower, resolve)
	if v.laneChange.signalRecv != nil {
		if sender := resolveVehicle(v.laneChange.signalRecv.Source, resolve); sender != nil {
			v.laneChange.signalRecv = sender.laneChange.signalSend
		} else {
			v.laneChange.signalRecv = nil
		}
	}
}

func resolveVehicle(old *Vehicle, resolve func(int64) *Vehicle) *Vehicle {
	if old == nil {
		return nil
	}
	return resolve(old.priority)
}
