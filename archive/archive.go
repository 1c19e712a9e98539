// Package archive implements checkpoint and restore of a running engine:
// every live vehicle and its cross-references, every drivable's vehicle
// ordering and waiting queue, every lane's throughput history, every
// traffic light's phase, and every flow's emission clock (spec.md §4.6/§9,
// the "Archive round trip" law: capturing a snapshot and immediately
// restoring it onto the same engine must leave every observable quantity
// unchanged).
package archive

import (
	"github.com/samber/lo"

	"github.com/kotkaro/trafficsim/engine"
	"github.com/kotkaro/trafficsim/flow"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/vehicle"
)

// drivableState is one lane or lane-link's vehicle ordering, captured as an
// ordered list of vehicle priorities rather than ids: a lane-change finish
// rekeys a vehicle's id but its priority is stable for the pair's whole
// lifetime (engine/pool.go).
type drivableState struct {
	id         int64
	priorities []int64
}

// laneState extends drivableState with the waiting buffer and throughput
// history a lane carries but a lane-link does not.
type laneState struct {
	drivableState
	waiting             []int64
	history             []roadnet.HistoryRecord
	historyVehicleNum   int
	historyAverageSpeed float64
}

type lightState struct {
	intersectionID    string
	currentPhaseIndex int
	remainingDuration float64
}

type flowState struct {
	id          string
	nowTime     float64
	currentTime float64
	cnt         int
}

// Snapshot is a captured engine state, restorable only onto an engine built
// from the same road network and flow configuration Capture ran against
// (the drivable and flow ids it records are only meaningful there).
type Snapshot struct {
	step                 int64
	t                     float64
	finishedVehicleCnt    int64
	cumulativeTravelTime  float64

	vehicles []*vehicle.Vehicle // already cloned and rewired; flat, unordered

	lanes     []laneState
	laneLinks []drivableState
	lights    []lightState
	flows     []flowState
}

// Capture deep-copies every live vehicle and the engine's transient state
// into a Snapshot that shares no mutable state with the running engine.
func Capture(e *engine.Engine) *Snapshot {
	live := e.Vehicles()

	clones := make(map[int64]*vehicle.Vehicle, len(live))
	cloneList := make([]*vehicle.Vehicle, 0, len(live))
	for _, v := range live {
		c := v.Clone()
		clones[c.Priority()] = c
		cloneList = append(cloneList, c)
	}
	resolve := func(priority int64) *vehicle.Vehicle { return clones[priority] }
	for _, c := range cloneList {
		c.RewireReferences(resolve)
	}

	net := e.RoadNet()
	s := &Snapshot{
		step:                 e.Clock().Step,
		t:                    e.Clock().T,
		finishedVehicleCnt:   e.FinishedVehicleCount(),
		cumulativeTravelTime: e.CumulativeTravelTime(),
		vehicles:             cloneList,
	}

	for _, l := range net.Lanes {
		s.lanes = append(s.lanes, captureLane(l))
	}
	for _, ll := range net.LaneLinks {
		s.laneLinks = append(s.laneLinks, captureDrivable(ll))
	}
	for _, it := range net.Intersections {
		if it.Virtual || it.Light == nil {
			continue
		}
		s.lights = append(s.lights, lightState{
			intersectionID:    it.ID,
			currentPhaseIndex: it.Light.CurrentPhaseIndex(),
			remainingDuration: it.Light.RemainingDuration(),
		})
	}
	for _, f := range e.Flows() {
		now, cur, cnt := f.SnapshotState()
		s.flows = append(s.flows, flowState{id: f.ID, nowTime: now, currentTime: cur, cnt: cnt})
	}

	return s
}

func captureDrivable(d roadnet.Drivable) drivableState {
	st := drivableState{id: d.ID()}
	for n := d.Vehicles().First(); n != nil; n = n.Next() {
		if v, ok := n.Value.(*vehicle.Vehicle); ok {
			st.priorities = append(st.priorities, v.Priority())
		}
	}
	return st
}

func captureLane(l *roadnet.Lane) laneState {
	return laneState{
		drivableState:       captureDrivable(l),
		waiting:             waitingPriorities(l),
		history:             append([]roadnet.HistoryRecord(nil), l.History()...),
		historyVehicleNum:   l.HistoryVehicleNum(),
		historyAverageSpeed: l.HistoryAverageSpeed(),
	}
}

func waitingPriorities(l *roadnet.Lane) []int64 {
	return lo.FilterMap(l.WaitingBuffer(), func(ref roadnet.VehicleRef, _ int) (int64, bool) {
		v, ok := ref.(*vehicle.Vehicle)
		if !ok {
			return 0, false
		}
		return v.Priority(), true
	})
}

// Restore rewrites e's vehicle pool, every drivable's vehicle ordering and
// waiting buffer, every lane's history, every traffic light's phase, and
// every flow's emission clock to match s.
func Restore(e *engine.Engine, s *Snapshot) {
	e.Clock().Step = s.step
	e.Clock().T = s.t
	e.SetFinishedStats(s.finishedVehicleCnt, s.cumulativeTravelTime)

	byPriority := lo.SliceToMap(s.vehicles, func(v *vehicle.Vehicle) (int64, *vehicle.Vehicle) {
		return v.Priority(), v
	})

	net := e.RoadNet()

	laneByID := make(map[int64]*roadnet.Lane, len(net.Lanes))
	for _, l := range net.Lanes {
		laneByID[l.ID()] = l
	}
	for _, ls := range s.lanes {
		lane := laneByID[ls.id]
		if lane == nil {
			continue
		}
		restoreDrivable(lane, ls.drivableState, byPriority)

		waiting := make([]roadnet.VehicleRef, 0, len(ls.waiting))
		for _, p := range ls.waiting {
			if v := byPriority[p]; v != nil {
				waiting = append(waiting, v)
			}
		}
		lane.SetWaitingBuffer(waiting)
		lane.SetHistory(append([]roadnet.HistoryRecord(nil), ls.history...), ls.historyVehicleNum, ls.historyAverageSpeed)
	}

	linkByID := make(map[int64]*roadnet.LaneLink, len(net.LaneLinks))
	for _, ll := range net.LaneLinks {
		linkByID[ll.ID()] = ll
	}
	for _, ds := range s.laneLinks {
		ll := linkByID[ds.id]
		if ll == nil {
			continue
		}
		restoreDrivable(ll, ds, byPriority)
	}

	intersectionByStrID := make(map[string]*roadnet.Intersection, len(net.Intersections))
	for _, it := range net.Intersections {
		intersectionByStrID[it.ID] = it
	}
	for _, lts := range s.lights {
		it := intersectionByStrID[lts.intersectionID]
		if it == nil || it.Light == nil {
			continue
		}
		it.Light.RestorePhase(lts.currentPhaseIndex, lts.remainingDuration)
	}

	flowByID := make(map[string]*flow.Flow, len(e.Flows()))
	for _, f := range e.Flows() {
		flowByID[f.ID] = f
	}
	for _, fs := range s.flows {
		if f := flowByID[fs.id]; f != nil {
			f.RestoreState(fs.nowTime, fs.currentTime, fs.cnt)
		}
	}

	e.ReplacePool(s.vehicles)
}

// restoreDrivable rebuilds d's vehicle list in the order ds.priorities
// records, replacing each vehicle's node (a node belongs to exactly one
// list, so a fresh one is required).
func restoreDrivable(d roadnet.Drivable, ds drivableState, byPriority map[int64]*vehicle.Vehicle) {
	clearList(d.Vehicles())

	nodes := make([]*roadnet.VehicleNode, 0, len(ds.priorities))
	for _, p := range ds.priorities {
		v := byPriority[p]
		if v == nil {
			continue
		}
		node := roadnet.NewVehicleNode(v)
		v.SetNode(node)
		nodes = append(nodes, node)
	}
	d.Vehicles().Merge(nodes)
}

func clearList(l *roadnet.VehicleList) {
	for n := l.First(); n != nil; {
		next := n.Next()
		l.Remove(n)
		n = next
	}
}
