package vehicle

import (
	"math"

	"github.com/kotkaro/trafficsim/roadnet"
)

// coolingTime is the minimum interval between a vehicle finishing one lane
// change and proposing another.
const coolingTime = 3.0

// LaneChange is a vehicle's lane-change controller: it proposes a target
// lane (signalSend), watches for a higher-priority competitor's signal
// (signalRecv), and once the gap it measured to the target lane's leader
// and follower is safe, commits by spawning a shadow vehicle (spec.md
// §4.4). Renamed "simple" in the reference model because it's the only
// strategy implemented there; this module has no other, so the plain name
// is kept.
type LaneChange struct {
	vehicle *Vehicle

	lastDir int

	signalSend *Signal
	signalRecv *Signal

	targetLeader   *Vehicle
	targetFollower *Vehicle
	leaderGap      float64
	followerGap    float64

	waitingTime    float64
	changing       bool
	finished       bool
	lastChangeTime float64
}

func newLaneChange(v *Vehicle, other *LaneChange) *LaneChange {
	lc := &LaneChange{vehicle: v}
	if other != nil {
		lc.lastDir = other.lastDir
		lc.signalRecv = other.signalRecv
		if other.signalSend != nil {
			cp := *other.signalSend
			cp.Source = v
			lc.signalSend = &cp
		}
		lc.targetLeader = other.targetLeader
		lc.targetFollower = other.targetFollower
		lc.leaderGap = other.leaderGap
		lc.followerGap = other.followerGap
		lc.waitingTime = other.waitingTime
		lc.changing = other.changing
		lc.finished = other.finished
		lc.lastChangeTime = other.lastChangeTime
	}
	return lc
}

// updateLeaderAndFollower measures the gap to the target lane's leader and
// follower at the vehicle's current distance, used to decide whether the
// change is safe to commit.
func (lc *LaneChange) updateLeaderAndFollower() {
	v := lc.vehicle
	target := lc.signalSend.Target
	lc.targetLeader = nil
	lc.targetFollower = nil
	lc.leaderGap = math.MaxFloat64
	lc.followerGap = math.MaxFloat64

	leaderRef := target.VehicleAfterDistance(v.Distance(), v.SegmentIndex())
	if leader, ok := leaderRef.(*Vehicle); ok && leader != nil {
		lc.targetLeader = leader
		lc.leaderGap = leader.Distance() - v.Distance() - leader.Length()
	} else {
		rest := target.Length() - v.Distance()
		lc.leaderGap = rest
		bestGap := math.MaxFloat64
		for _, ll := range target.LaneLinks {
			node := ll.Vehicles().Last()
			if node == nil {
				continue
			}
			candidate, ok := node.Value.(*Vehicle)
			if !ok {
				continue
			}
			gap := candidate.Distance() + rest
			if gap < bestGap {
				bestGap = gap
				if gap < candidate.Length() {
					lc.targetLeader = candidate
					lc.leaderGap = rest - (candidate.Length() - gap)
				}
			}
		}
	}

	followerRef := target.VehicleBeforeDistance(v.Distance(), v.SegmentIndex())
	if follower, ok := followerRef.(*Vehicle); ok && follower != nil {
		lc.targetFollower = follower
		lc.followerGap = v.Distance() - follower.Distance() - v.Length()
	}
}

func (lc *LaneChange) target() *roadnet.Lane {
	if lc.signalSend != nil {
		return lc.signalSend.Target
	}
	lane, _ := lc.vehicle.controllerInfo.Drivable.AsLane()
	return lane
}

func (lc *LaneChange) gapBefore() float64 { return lc.followerGap }
func (lc *LaneChange) gapAfter() float64  { return lc.leaderGap }

func (lc *LaneChange) safeGapBefore() float64 {
	if lc.targetFollower != nil {
		return lc.targetFollower.MinBrakeDistance()
	}
	return 0
}

func (lc *LaneChange) safeGapAfter() float64 {
	return lc.vehicle.MinBrakeDistance()
}

func (lc *LaneChange) planChange() bool {
	return (lc.signalSend != nil && lc.signalSend.Target != nil &&
		lc.signalSend.Target != firstLaneOf(lc.vehicle)) || lc.changing
}

func firstLaneOf(v *Vehicle) *roadnet.Lane {
	lane, _ := v.controllerInfo.Drivable.AsLane()
	return lane
}

func (lc *LaneChange) canChange() bool {
	return lc.signalSend != nil && lc.signalRecv == nil
}

func (lc *LaneChange) isGapValid() bool {
	return lc.gapAfter() >= lc.safeGapAfter() && lc.gapBefore() >= lc.safeGapBefore()
}

// insertShadow is the commit step of a lane change: it clones the real
// vehicle into a shadow placed in the target lane at the position the gap
// check validated, and links the two so both integrate independently from
// this step on while the write-buffer discipline keeps their distance in
// sync (spec.md §4.4 phase 3).
func (lc *LaneChange) insertShadow(newShadowID string) *Vehicle {
	v := lc.vehicle
	target := lc.signalSend.Target

	lc.changing = true
	lc.waitingTime = 0

	shadow := v.cloneAsShadow(newShadowID)
	shadow.setParent(v)
	v.setShadow(shadow)

	shadow.controllerInfo.Blocker = nil
	shadow.controllerInfo.Drivable = target
	shadow.controllerInfo.Router.Update()

	node := roadnet.NewVehicleNode(shadow)
	if lc.targetFollower != nil && lc.targetFollower.node != nil {
		lc.targetFollower.node.InsertBefore(node)
	} else {
		target.Vehicles().PushBack(node)
	}
	shadow.node = node

	shadow.UpdateLeaderAndGap(lc.targetLeader)
	if lc.targetFollower != nil {
		lc.targetFollower.UpdateLeaderAndGap(shadow)
	}
	return shadow
}

// finishChanging is called on the real vehicle's controller once its
// offset reaches the target lane's half-width: the shadow assumes the
// real's identifier and becomes the surviving object going forward (the
// real instance is discarded by the caller), per spec.md §4.4
// "Progression".
func (lc *LaneChange) finishChanging() {
	lc.changing = false
	lc.finished = true
	lc.lastChangeTime = lc.vehicle.clk.T

	shadow := lc.vehicle.laneChangeInfo.Partner
	shadow.SetID(lc.vehicle.id)
	shadow.laneChangeInfo.PartnerType = PartnerNone
	shadow.laneChangeInfo.Offset = 0
	shadow.laneChangeInfo.Partner = nil
	lc.vehicle.laneChangeInfo.Partner = nil
	lc.clearSignal()
}

// abortChanging is called on the real vehicle's controller when its
// drivable changed (it left the lane for a lane-link) before the offset
// reached the cap: the shadow is marked to end so the pipeline removes it
// from its lane, and both sides drop their partner link.
func (lc *LaneChange) abortChanging() {
	lc.changing = false
	shadow := lc.vehicle.laneChangeInfo.Partner
	shadow.laneChange.changing = false
	shadow.laneChangeInfo.PartnerType = PartnerNone
	shadow.laneChangeInfo.Offset = 0
	shadow.laneChangeInfo.Partner = nil
	shadow.controllerInfo.End = true
	lc.vehicle.laneChangeInfo.PartnerType = PartnerNone
	lc.vehicle.laneChangeInfo.Offset = 0
	lc.vehicle.laneChangeInfo.Partner = nil
	lc.clearSignal()
}

// Progress advances the lateral offset for a vehicle currently changing
// lanes by max(0.2*speed, 1)*interval per call, finishing the change once
// its magnitude reaches
// the target lane's half-width, or aborting it if the real vehicle's
// drivable changed first (it left the lane into a lane-link before the
// offset caught up). Called once per step, from the real vehicle's side,
// for every vehicle with changing == true.
func (lc *LaneChange) Progress(interval float64) {
	if !lc.changing {
		return
	}
	v := lc.vehicle

	lane, onLane := v.controllerInfo.Drivable.AsLane()
	if !onLane {
		lc.abortChanging()
		return
	}

	dir := lc.direction()
	step := interval
	if 0.2*v.speed > 1 {
		step = 0.2 * v.speed * interval
	} else {
		step = interval
	}
	maxOffset := lane.Width() / 2

	switch dir {
	case DirRight:
		v.laneChangeInfo.Offset += step
	case DirLeft:
		v.laneChangeInfo.Offset -= step
	}
	if shadow := v.laneChangeInfo.Partner; shadow != nil {
		shadow.laneChangeInfo.Offset = v.laneChangeInfo.Offset
	}

	if math.Abs(v.laneChangeInfo.Offset) >= maxOffset {
		lc.finishChanging()
	}
}

// ConsumeFinished reports whether Progress just completed a change this
// step, clearing the flag so the pipeline promotes the shadow and
// discards the real instance exactly once.
func (lc *LaneChange) ConsumeFinished() bool {
	finished := lc.finished
	lc.finished = false
	return finished
}

// yieldSpeed caps this step's speed if a higher-priority vehicle's signal
// was received: either 100 (effectively uncapped) if this vehicle is that
// signal's own target leader, or a no-collision bound against the signal
// source otherwise.
func (lc *LaneChange) yieldSpeed(interval float64) float64 {
	if lc.planChange() {
		lc.waitingTime += interval
	}
	if lc.signalRecv == nil {
		return 100
	}
	if lc.vehicle == lc.signalRecv.Source.laneChange.targetLeader {
		return 100
	}
	source := lc.signalRecv.Source
	gap := source.laneChange.gapBefore() - source.laneChange.safeGapBefore()
	v := GetNoCollisionSpeed(source.speed, source.template.MaxNegAcc, lc.vehicle.speed, lc.vehicle.template.MaxNegAcc, gap, interval, 0)
	if v < 0 {
		return 100
	}
	return v
}

// makeSignal proposes a lane change when the current lane is too
// congested relative to a neighbor and there's enough road left ahead to
// bother (spec.md §4.4 phase 1).
func (lc *LaneChange) makeSignal(interval float64) {
	if lc.changing {
		return
	}
	if lc.vehicle.clk.T-lc.lastChangeTime < coolingTime {
		return
	}

	v := lc.vehicle
	lane, ok := v.controllerInfo.Drivable.AsLane()
	if !ok {
		return
	}

	signal := &Signal{Source: v}
	lc.signalSend = signal

	if lane.Length()-v.Distance() < 30 {
		return
	}

	curEst := v.controllerInfo.Gap
	expectedGap := 2*v.Length() + 4*interval*v.template.MaxSpeed
	if curEst > expectedGap || curEst < 1.5*v.Length() {
		return
	}

	router := v.controllerInfo.Router
	outerEst := 0.0

	if outer := lane.GetOuterLane(); outer != nil {
		if router.OnLastRoad() || router.NextDrivableFrom(outer) != nil {
			outerEst = lc.estimateGap(outer)
			if outerEst > curEst+v.Length() {
				signal.Target = outer
				signal.Direction = DirRight
			}
		}
	}

	if inner := lane.GetInnerLane(); inner != nil {
		if router.OnLastRoad() || router.NextDrivableFrom(inner) != nil {
			innerEst := lc.estimateGap(inner)
			if innerEst > curEst+v.Length() && innerEst > outerEst {
				signal.Target = inner
				signal.Direction = DirLeft
			}
		}
	}

	signal.Urgency = 1
}

func (lc *LaneChange) estimateGap(lane *roadnet.Lane) float64 {
	v := lc.vehicle
	leaderRef := lane.VehicleAfterDistance(v.Distance(), v.SegmentIndex())
	leader, ok := leaderRef.(*Vehicle)
	if !ok || leader == nil {
		return lane.Length() - v.Distance()
	}
	return leader.Distance() - v.Distance() - leader.Length()
}

func (lc *LaneChange) sendSignal() {
	if lc.targetLeader != nil {
		lc.targetLeader.laneChange.receiveSignal(lc.vehicle)
	}
	if lc.targetFollower != nil {
		lc.targetFollower.laneChange.receiveSignal(lc.vehicle)
	}
}

// receiveSignal lets a higher-priority sender override whichever signal
// this vehicle currently holds, so at most one change proceeds per
// contested gap.
func (lc *LaneChange) receiveSignal(sender *Vehicle) {
	if lc.changing {
		return
	}
	var curPriority int64 = -1
	if lc.signalRecv != nil {
		curPriority = lc.signalRecv.Source.priority
	}
	newPriority := sender.priority

	recvOK := lc.signalRecv == nil || curPriority < newPriority
	sendOK := lc.signalSend == nil || lc.vehicle.priority < newPriority
	if recvOK && sendOK {
		lc.signalRecv = sender.laneChange.signalSend
	}
}

func (lc *LaneChange) direction() int {
	if _, ok := lc.vehicle.controllerInfo.Drivable.AsLane(); !ok {
		return DirUnchanged
	}
	if lc.signalSend == nil || lc.signalSend.Target == nil {
		return DirUnchanged
	}
	lane, _ := lc.vehicle.controllerInfo.Drivable.AsLane()
	if lc.signalSend.Target == lane.GetOuterLane() {
		return DirRight
	}
	if lc.signalSend.Target == lane.GetInnerLane() {
		return DirLeft
	}
	return DirUnchanged
}

func (lc *LaneChange) clearSignal() {
	lc.targetLeader = nil
	lc.targetFollower = nil
	if lc.signalSend != nil {
		lc.lastDir = lc.signalSend.Direction
	} else {
		lc.lastDir = DirUnchanged
	}
	if lc.changing {
		return
	}
	lc.signalSend = nil
	lc.signalRecv = nil
}

func (lc *LaneChange) hasFinished() bool { return lc.finished }

// Changing reports whether this controller currently has an in-flight
// lane change (a live shadow, still converging).
func (lc *LaneChange) Changing() bool { return lc.changing }

// LastDir is the direction (DirLeft/DirUnchanged/DirRight) of the most
// recently completed or abandoned lane change, for replay/debugging output.
func (lc *LaneChange) LastDir() int { return lc.lastDir }

// MakeSignal exposes makeSignal (phase 1) to the pipeline's planLaneChange
// stage.
func (lc *LaneChange) MakeSignal(interval float64) { lc.makeSignal(interval) }

// ClearSignal exposes clearSignal, run once per vehicle per step whether
// or not a change was scheduled this step.
func (lc *LaneChange) ClearSignal() { lc.clearSignal() }

// YieldSpeed exposes yieldSpeed to GetNextSpeed's caller; kept here rather
// than inlined since GetNextSpeed already calls it directly as a method on
// the same package.
func (lc *LaneChange) YieldSpeed(interval float64) float64 { return lc.yieldSpeed(interval) }

// Schedule is the commit step of a lane change (spec.md §4.4 phase 2-3),
// called once per vehicle during the pipeline's scheduleLaneChange stage
// after every vehicle's signalSend/signalRecv has been exchanged via
// SendSignal. It measures the target lane's leader/follower gap, checks
// that a change is actually proposed, not already running, uncontested by
// a higher-priority signal, and safe, and if so spawns and returns the
// shadow vehicle (nil otherwise).
func (lc *LaneChange) Schedule(newShadowID string) *Vehicle {
	if lc.changing {
		return nil
	}
	if lc.signalSend == nil || lc.signalSend.Target == nil {
		return nil
	}
	lc.updateLeaderAndFollower()
	if !lc.planChange() || !lc.canChange() || !lc.isGapValid() {
		return nil
	}
	return lc.insertShadow(newShadowID)
}

// SendSignal locates the target lane's leader/follower
// (updateLeaderAndFollower) and then runs sendSignal, once per vehicle
// right after MakeSignal; it does nothing when no target lane was proposed.
func (lc *LaneChange) SendSignal() {
	if lc.signalSend == nil || lc.signalSend.Target == nil {
		return
	}
	lc.updateLeaderAndFollower()
	lc.sendSignal()
}
