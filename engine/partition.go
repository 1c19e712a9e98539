package engine

import (
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/vehicle"
)

// partition is the static round-robin split of the road network across the
// worker pool, built once at load time (spec.md §4.1: "statically
// round-robin partitioned across the W workers at network-load time").
// Every worker owns the i-th, (i+W)-th, (i+2W)-th, ... element of each
// slice, so two workers never touch the same drivable or intersection
// within a barrier-synchronized stage.
type partition struct {
	roads         [][]*roadnet.Road
	intersections [][]*roadnet.Intersection
	drivables     [][]roadnet.Drivable
}

func buildPartition(net *roadnet.RoadNet, workers int) *partition {
	p := &partition{
		roads:         make([][]*roadnet.Road, workers),
		intersections: make([][]*roadnet.Intersection, workers),
		drivables:     make([][]roadnet.Drivable, workers),
	}
	for i, r := range net.Roads {
		w := i % workers
		p.roads[w] = append(p.roads[w], r)
	}
	for i, it := range net.Intersections {
		w := i % workers
		p.intersections[w] = append(p.intersections[w], it)
	}
	i := 0
	for _, lane := range net.Lanes {
		w := i % workers
		p.drivables[w] = append(p.drivables[w], lane)
		i++
	}
	for _, ll := range net.LaneLinks {
		w := i % workers
		p.drivables[w] = append(p.drivables[w], ll)
		i++
	}
	return p
}

// vehiclePartition splits a snapshot of the currently-live vehicle set
// across the worker pool by priority modulo the worker count: the set
// changes every step (spawns, despawns, shadow promotions), so unlike
// roads and intersections it can't be assigned once at load time, but
// keying on priority rather than slice position keeps the split stable
// run over run for a fixed seed.
func vehiclePartition(vehicles []*vehicle.Vehicle, workers int) [][]*vehicle.Vehicle {
	out := make([][]*vehicle.Vehicle, workers)
	for _, v := range vehicles {
		w := int(v.Priority() % int64(workers))
		if w < 0 {
			w += workers
		}
		out[w] = append(out[w], v)
	}
	return out
}
