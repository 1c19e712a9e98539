package engine

import (
	"fmt"
	"math"

	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/vehicle"
)

// Step runs the fourteen pipeline stages once, advancing the clock by one
// Dt (spec.md §4.1). It is not safe to call Step concurrently with itself,
// Reset, or any control-API mutation.
func (e *Engine) Step() {
	e.clearCrossNotify()

	e.advanceFlows()             // 1
	e.runStage(e.planRouteStage) // 2
	e.handleWaiting()            // 3

	e.curVehicles = e.pool.all()
	e.curPartitioned = vehiclePartition(e.curVehicles, e.workers)

	laneChange := e.cfg.LaneChange
	if laneChange {
		e.runStage(e.initSegmentsStage) // 4
		for i := range e.curPartitioned {
			e.planLaneChangeStage(i) // 5
		}
	}

	e.runStage(e.updateLeaderAndGapStage) // 6

	if laneChange {
		e.scheduleLaneChange() // 7
	}

	e.runStage(e.notifyCrossStage) // 8
	e.runStage(e.getActionStage)   // 9
	e.runStage(e.updateLocationStage) // 10
	e.commitMoves()

	if laneChange {
		e.progressLaneChanges() // 11
	}

	e.runStage(e.updateLeaderAndGapStage) // 12
	e.updateLaneHistory()

	if !e.cfg.RLTrafficLight {
		e.advanceTrafficLights() // 13
	}

	if e.replay != nil { // 14
		if err := e.replay.LogStep(e.clock.Step, e.clock.T, e.curVehicles); err != nil {
			log.Warnf("engine: replay log step %d: %v", e.clock.Step, err)
		}
	}

	e.clock.Advance()
}

// clearCrossNotify resets every cross's notify slots before stage 1, so a
// vehicle that despawned or changed lanes last step doesn't linger as a
// phantom foe.
func (e *Engine) clearCrossNotify() {
	for _, it := range e.net.Intersections {
		for _, c := range it.Crosses {
			c.ClearNotify()
		}
	}
}

// advanceFlows is stage 1: single-threaded, since it mints new vehicles
// (and their priorities) into the shared pool.
func (e *Engine) advanceFlows() {
	dt := e.clock.Dt
	uniquePriority := uniquePriority(e.pool, e.rnd)
	for _, f := range e.flows {
		for _, v := range f.NextStep(dt, e.clock, e.rnd, uniquePriority) {
			e.pool.add(v)
		}
	}
}

// planRouteStage is stage 2: drains each road's plan-route buffer (flows'
// freshly minted vehicles) and places each vehicle onto its first lane's
// waiting buffer.
func (e *Engine) planRouteStage(idx int) {
	for _, road := range e.part.roads[idx] {
		for _, vr := range road.DrainPlanRoute() {
			v, ok := vr.(*vehicle.Vehicle)
			if !ok {
				continue
			}
			v.SetFirstDrivable()
			lane, ok := v.CurDrivable().AsLane()
			if !ok || lane == nil {
				continue
			}
			lane.PushWaiting(v)
		}
	}
}

// handleWaiting is stage 3: admits vehicles from each lane's FIFO waiting
// buffer onto the live vehicle list, one at a time, stopping at the first
// vehicle the lane isn't clear for (so later arrivals in the same buffer
// don't jump ahead of an earlier one still waiting).
func (e *Engine) handleWaiting() {
	for _, lane := range e.net.Lanes {
		for {
			buf := lane.WaitingBuffer()
			if len(buf) == 0 {
				break
			}
			v, ok := buf[0].(*vehicle.Vehicle)
			if !ok || !lane.Available(v) {
				break
			}
			lane.PopWaiting()
			v.SetRunning(true)
			node := roadnet.NewVehicleNode(v)
			lane.Vehicles().PushBack(node)
			v.SetNode(node)
		}
	}
}

// initSegmentsStage is stage 4 (lane-change only): rebuilds each lane's
// segment-indexed vehicle cache, which the lane-change side-gap search
// relies on.
func (e *Engine) initSegmentsStage(idx int) {
	for _, road := range e.part.roads[idx] {
		for _, lane := range road.Lanes {
			lane.InitSegments()
		}
	}
}

// planLaneChangeStage is stage 5 (lane-change only): each running real
// vehicle not already mid-change computes its signal and exchanges it with
// its would-be neighbors. Pairing is between a vehicle and its own
// leader/follower on adjacent lanes, which may belong to any partition
// slot; SendSignal writes into those neighbors' LaneChange, so Step runs
// this stage over every slot in turn on the calling goroutine rather than
// through the worker pool.
func (e *Engine) planLaneChangeStage(idx int) {
	interval := e.clock.Dt
	for _, v := range e.curPartitioned[idx] {
		if !v.IsRunning() || !v.IsReal() || v.LaneChange().Changing() {
			continue
		}
		v.LaneChange().MakeSignal(interval)
		v.LaneChange().SendSignal()
	}
}

// scheduleLaneChange is stage 7 (lane-change only, single-threaded): for
// every vehicle that exchanged a valid signal at stage 5, attempts to
// actually insert the shadow vehicle that begins the change. Serial
// because insertShadow mutates the target lane's vehicle list and the
// engine's pool, both shared across workers.
func (e *Engine) scheduleLaneChange() {
	for _, v := range e.curVehicles {
		if !v.IsRunning() || !v.IsReal() || v.LaneChange().Changing() {
			continue
		}
		shadowID := fmt.Sprintf("%s#lc%d", v.ID(), e.clock.Step)
		shadow := v.LaneChange().Schedule(shadowID)
		if shadow == nil {
			v.LaneChange().ClearSignal()
			continue
		}
		e.pool.add(shadow)
		if lane, ok := shadow.CurDrivable().AsLane(); ok {
			node := roadnet.NewVehicleNode(shadow)
			lane.Vehicles().Merge([]*roadnet.VehicleNode{node})
			shadow.SetNode(node)
		}
		v.LaneChange().ClearSignal()
	}
	// the pool gained shadow vehicles; refresh the partition snapshot used
	// by every later stage this step.
	e.curVehicles = e.pool.all()
	e.curPartitioned = vehiclePartition(e.curVehicles, e.workers)
}

// updateLeaderAndGapStage is stages 6 and 12: recomputes each drivable's
// vehicles' leader and following gap from the local list order, falling
// through to Vehicle.UpdateLeaderAndGap's own cross-drivable search when
// there is no same-drivable leader.
func (e *Engine) updateLeaderAndGapStage(idx int) {
	for _, d := range e.part.drivables[idx] {
		for node := d.Vehicles().First(); node != nil; node = node.Next() {
			v, ok := node.Value.(*vehicle.Vehicle)
			if !ok {
				continue
			}
			var leader *vehicle.Vehicle
			if prev := node.Prev(); prev != nil {
				leader, _ = prev.Value.(*vehicle.Vehicle)
			}
			v.UpdateLeaderAndGap(leader)
		}
	}
}

// notifyCrossStage is stage 8: for every lane-link of every non-virtual
// intersection in this worker's partition, notifies each of its crosses
// with the nearest vehicle still approaching or not yet clear of it.
func (e *Engine) notifyCrossStage(idx int) {
	for _, it := range e.part.intersections[idx] {
		for _, ll := range it.LaneLinks {
			notifyCrossForLaneLink(ll)
		}
	}
}

type crossCandidate struct {
	v                   *vehicle.Vehicle
	distanceToLinkStart float64
}

// notifyCrossForLaneLink gathers every vehicle that could plausibly be the
// nearest foe at one of ll's crosses -- those already on ll, plus the one
// closest to entering it from ll.StartLane -- and assigns each cross the
// single nearest candidate that hasn't fully cleared it yet.
func notifyCrossForLaneLink(ll *roadnet.LaneLink) {
	if len(ll.Crosses) == 0 {
		return
	}
	var candidates []crossCandidate
	for node := ll.Vehicles().First(); node != nil; node = node.Next() {
		if v, ok := node.Value.(*vehicle.Vehicle); ok {
			candidates = append(candidates, crossCandidate{v, v.Distance()})
		}
	}
	if head := ll.StartLane.Vehicles().First(); head != nil {
		if v, ok := head.Value.(*vehicle.Vehicle); ok {
			candidates = append(candidates, crossCandidate{v, -(ll.StartLane.Length() - v.Distance())})
		}
	}
	if len(candidates) == 0 {
		return
	}

	for _, cross := range ll.Crosses {
		crossDist := cross.DistA
		if cross.LinkB == ll {
			crossDist = cross.DistB
		}

		var best *crossCandidate
		bestAbs := math.Inf(1)
		for i := range candidates {
			c := &candidates[i]
			notifyDistance := crossDist - c.distanceToLinkStart
			if notifyDistance+c.v.Length() < 0 {
				continue // fully past, no longer a foe at this cross
			}
			if abs := math.Abs(notifyDistance); abs < bestAbs {
				bestAbs = abs
				best = c
			}
		}
		if best != nil {
			cross.Notify(ll, best.v, crossDist-best.distanceToLinkStart)
		}
	}
}

// getActionStage is stage 9: every running vehicle computes its next
// speed and stages its displacement. A lane-change pair (real and shadow
// share one priority, hence one worker partition slot) then reconciles to
// the slower of the two, so neither ever drifts out of lockstep with its
// partner mid-change.
func (e *Engine) getActionStage(idx int) {
	interval := e.clock.Dt
	vehicles := e.curPartitioned[idx]
	for _, v := range vehicles {
		if !v.IsRunning() {
			continue
		}
		v.ComputeAction(interval)
	}
	for _, v := range vehicles {
		if !v.IsRunning() || !v.IsReal() || !v.LaneChange().Changing() {
			continue
		}
		partner := v.Partner()
		if partner == nil || !partner.IsRunning() {
			continue
		}
		speed := math.Min(v.BufferedSpeed(), partner.BufferedSpeed())
		v.Reconcile(speed, interval)
		partner.Reconcile(speed, interval)
	}
}

// updateLocationStage is stage 10: flushes every vehicle's staged action
// (Vehicle.Update), removing it from its drivable's list when it either
// finished its route or crossed onto a new drivable, and re-sorting
// whatever stayed put but changed order. Cross-drivable moves are handed
// off to the engine's per-worker push buffer for a serial merge once every
// worker is done, since the destination drivable may belong to a different
// worker than the source.
func (e *Engine) updateLocationStage(idx int) {
	step := e.clock.Step
	for _, d := range e.part.drivables[idx] {
		var reinsert []*roadnet.VehicleNode
		for node := d.Vehicles().First(); node != nil; {
			next := node.Next()
			v, ok := node.Value.(*vehicle.Vehicle)
			if !ok {
				node = next
				continue
			}

			before := v.CurDrivable()
			v.Update(step)

			switch {
			case v.IsEnd():
				d.Vehicles().Remove(node)
				e.workerDespawn[idx] = append(e.workerDespawn[idx], despawnItem{drivable: d, node: node, v: v})
			case v.CurDrivable() != before:
				d.Vehicles().Remove(node)
				node.S = -v.Distance()
				e.workerPush[idx] = append(e.workerPush[idx], pushItem{target: v.CurDrivable(), node: node})
			default:
				node.S = -v.Distance()
			}
			node = next
		}
		reinsert = d.Vehicles().PopUnsorted()
		if len(reinsert) > 0 {
			d.Vehicles().Merge(reinsert)
		}
	}
}

// commitMoves is the serial half of stage 10: inserts every vehicle that
// crossed a drivable boundary into its new drivable's list (grouped so
// Merge only runs once per destination), and removes every despawned
// vehicle from the pool.
func (e *Engine) commitMoves() {
	byTarget := make(map[roadnet.Drivable][]*roadnet.VehicleNode)
	for i := range e.workerPush {
		for _, item := range e.workerPush[i] {
			byTarget[item.target] = append(byTarget[item.target], item.node)
		}
		e.workerPush[i] = e.workerPush[i][:0]
	}
	for target, nodes := range byTarget {
		target.Vehicles().Merge(nodes)
		for _, n := range nodes {
			if v, ok := n.Value.(*vehicle.Vehicle); ok {
				v.SetNode(n)
			}
		}
	}

	for i := range e.workerDespawn {
		for _, item := range e.workerDespawn[i] {
			e.finishedVehicleCnt++
			e.cumulativeTravelTime += e.clock.T - item.v.EnterTime()
			e.pool.removeByID(item.v.ID(), item.v.Priority())
		}
		e.workerDespawn[i] = e.workerDespawn[i][:0]
	}
}

// progressLaneChanges is stage 11's lane-change half (single-threaded,
// after the location commit): advances each real vehicle's in-progress
// lateral offset, finishing or aborting the change and rekeying the pool
// when one does.
func (e *Engine) progressLaneChanges() {
	for _, v := range e.curVehicles {
		if !v.IsReal() || !v.LaneChange().Changing() {
			continue
		}
		shadow := v.Partner()
		shadowOldID := shadow.ID()
		realOldID := v.ID()

		v.LaneChange().Progress(e.clock.Dt)

		switch {
		case v.LaneChange().ConsumeFinished():
			// shadow has already taken over v's identifier; v itself is
			// discarded in favor of the shadow, which physically sits on
			// the target lane. Both still share one priority, so only the
			// stale id aliases are dropped, never the priority slot.
			e.pool.removeAlias(shadowOldID)
			e.pool.rekey(realOldID, v.Priority(), shadow)
			if node := v.Node(); node != nil && node.Parent() != nil {
				node.Parent().Remove(node)
			}
		case !v.LaneChange().Changing():
			// aborted: the shadow is marked to end and removed here from
			// its lane and the pool's id index (it is not counted as a
			// finished vehicle); the real vehicle continues unchanged.
			if shadow.IsEnd() {
				if node := shadow.Node(); node != nil && node.Parent() != nil {
					node.Parent().Remove(node)
				}
				// the real vehicle keeps the shared priority; only the
				// shadow's own id alias is released.
				e.pool.removeAlias(shadow.ID())
			}
		}
	}
	e.curVehicles = e.pool.all()
}

// updateLaneHistory folds this step's occupancy/speed sample into every
// lane's rolling history.
func (e *Engine) updateLaneHistory() {
	for _, lane := range e.net.Lanes {
		lane.UpdateHistory()
	}
}

func (e *Engine) advanceTrafficLights() {
	dt := e.clock.Dt
	for _, it := range e.net.Intersections {
		if it.Light != nil {
			it.Light.Advance(dt)
		}
	}
}
