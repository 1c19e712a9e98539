package engine

import (
	"github.com/samber/lo"

	"github.com/kotkaro/trafficsim/utils/randengine"
	"github.com/kotkaro/trafficsim/vehicle"
)

// vehiclePool is the engine's bookkeeping of every live vehicle, indexed
// both by its external id and by its priority (spec.md's cyclic-reference
// strategy, C9/§9 Open Question 1). Vehicles hold direct pointers to their
// leader, blocker and lane-change partner; those pointers are not resolved
// through this map. Archive capture and restore re-link them by priority
// instead (vehicle.RewireReferences).
type vehiclePool struct {
	byID       map[string]*vehicle.Vehicle
	byPriority map[int64]*vehicle.Vehicle
}

func newVehiclePool() *vehiclePool {
	return &vehiclePool{
		byID:       make(map[string]*vehicle.Vehicle),
		byPriority: make(map[int64]*vehicle.Vehicle),
	}
}

func (p *vehiclePool) add(v *vehicle.Vehicle) {
	p.byID[v.ID()] = v
	p.byPriority[v.Priority()] = v
}

func (p *vehiclePool) removeByID(id string, priority int64) {
	delete(p.byID, id)
	delete(p.byPriority, priority)
}

// removeAlias drops only the byID mapping, leaving the priority marked in
// use: for discarding a lane-change shadow (or the superseded real vehicle)
// whose priority is still legitimately held by the survivor of the pair.
func (p *vehiclePool) removeAlias(id string) {
	delete(p.byID, id)
}

func (p *vehiclePool) byIDOrNil(id string) *vehicle.Vehicle { return p.byID[id] }

func (p *vehiclePool) count() int { return len(p.byID) }

// rekey moves a vehicle stored under oldID/oldPriority to its current
// id/priority; used after a lane-change shadow takes over the real
// vehicle's identifier (spec.md §4.4 "Progression").
func (p *vehiclePool) rekey(oldID string, oldPriority int64, v *vehicle.Vehicle) {
	delete(p.byID, oldID)
	delete(p.byPriority, oldPriority)
	p.add(v)
}

func (p *vehiclePool) all() []*vehicle.Vehicle {
	return lo.Values(p.byID)
}

// uniquePriority rolls a 63-bit priority not currently held by any live
// vehicle (a despawned vehicle's priority can be drawn again later): the
// cross-conflict policy (roadnet.Cross.CanPass) uses priority as a
// last-resort tie-break, so two simultaneously-live vehicles sharing one
// would make that tie-break nondeterministic.
func uniquePriority(pool *vehiclePool, rnd *randengine.Engine) func() int64 {
	return func() int64 {
		for {
			p := int64(rnd.Uint64Safe() >> 1)
			if _, taken := pool.byPriority[p]; !taken {
				return p
			}
		}
	}
}
