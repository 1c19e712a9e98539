// Package api exposes the control surface spec.md §6 names: stepping and
// resetting the engine, reading vehicle/lane observations, and injecting
// control actions (a custom speed, a rerouted vehicle, a traffic-light
// phase). Control wraps an *engine.Engine; an optional Server layers a
// websocket live-stream on top for a single observing client, using
// http.HandleFunc and websocket.Upgrader directly.
package api

import (
	"github.com/kotkaro/trafficsim/engine"
	"github.com/kotkaro/trafficsim/replay"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/simerr"
	"github.com/kotkaro/trafficsim/vehicle"
)

// Control is the in-process entry point a research workload drives: step,
// observe, act, repeat.
type Control struct {
	engine *engine.Engine
	seed   int64
}

// New wraps an already-constructed engine. seed is remembered as the
// default for Reset(reseed=true) when the caller doesn't supply one.
func New(e *engine.Engine, seed int64) *Control {
	return &Control{engine: e, seed: seed}
}

func (c *Control) Engine() *engine.Engine { return c.engine }

// Step advances the simulation by exactly one interval.
func (c *Control) Step() { c.engine.Step() }

// Reset rewinds to step 0. When reseed is true the random engine driving
// flow emission and routing ties is replaced with one seeded from seed
// (or c.seed when seed is 0).
func (c *Control) Reset(reseed bool, seed int64) {
	if reseed && seed == 0 {
		seed = c.seed
	}
	c.engine.ResetWithSeed(reseed, seed)
}

// VehicleCount is the number of vehicles currently on the network.
func (c *Control) VehicleCount() int { return c.engine.VehicleCount() }

// LaneCount is the number of lanes in the loaded road network.
func (c *Control) LaneCount() int { return len(c.engine.RoadNet().Lanes) }

// VehicleSpeeds maps every pooled vehicle's id (waiting or running) to its
// current speed.
func (c *Control) VehicleSpeeds() map[string]float64 {
	out := make(map[string]float64, c.engine.VehicleCount())
	for _, v := range c.engine.Vehicles() {
		out[v.ID()] = v.V()
	}
	return out
}

// VehicleDistances maps every pooled vehicle's id (waiting or running) to
// its distance along its current drivable.
func (c *Control) VehicleDistances() map[string]float64 {
	out := make(map[string]float64, c.engine.VehicleCount())
	for _, v := range c.engine.Vehicles() {
		out[v.ID()] = v.Distance()
	}
	return out
}

// LaneWaitingCounts maps every lane id to the number of vehicles queued in
// its waiting buffer (stopped, not yet admitted onto the lane proper).
func (c *Control) LaneWaitingCounts() map[int64]int {
	lanes := c.engine.RoadNet().Lanes
	out := make(map[int64]int, len(lanes))
	for _, l := range lanes {
		out[l.ID()] = len(l.WaitingBuffer())
	}
	return out
}

// VehicleInfo is the per-vehicle observation dict spec.md §6 asks for.
type VehicleInfo struct {
	ID           string
	FlowID       string
	Distance     float64
	Speed        float64
	DrivableID   int64
	DrivableKind int
	Running      bool
}

// VehicleInfos returns one VehicleInfo per vehicle currently in the pool.
func (c *Control) VehicleInfos() map[string]VehicleInfo {
	vs := c.engine.Vehicles()
	out := make(map[string]VehicleInfo, len(vs))
	for _, v := range vs {
		d := v.CurDrivable()
		info := VehicleInfo{
			ID:       v.ID(),
			FlowID:   v.FlowID(),
			Distance: v.Distance(),
			Speed:    v.V(),
			Running:  v.IsRunning(),
		}
		if d != nil {
			info.DrivableID = d.ID()
			info.DrivableKind = int(d.Kind())
		}
		out[v.ID()] = info
	}
	return out
}

// RoadAverageSpeeds maps every road id to its rolling average speed
// (-1 while no vehicle is counted in the road's history), the per-road accounting
// `original_source/roadnet/road.py#get_average_speed` tracks.
func (c *Control) RoadAverageSpeeds() map[int64]float64 {
	roads := c.engine.RoadNet().Roads
	out := make(map[int64]float64, len(roads))
	for _, r := range roads {
		out[r.ID()] = r.GetAverageSpeed()
	}
	return out
}

// RoadAverageDurations is RoadAverageSpeeds' travel-time counterpart.
func (c *Control) RoadAverageDurations() map[int64]float64 {
	roads := c.engine.RoadNet().Roads
	out := make(map[int64]float64, len(roads))
	for _, r := range roads {
		out[r.ID()] = r.GetAverageDuration()
	}
	return out
}

// SetVehicleSpeed overrides id's next-step speed cap. Returns
// ErrRuntimePrecondition if id isn't currently in the pool.
func (c *Control) SetVehicleSpeed(id string, speed float64) error {
	v, ok := c.engine.Vehicle(id)
	if !ok {
		return simerr.Wrap(simerr.ErrRuntimePrecondition, "set vehicle speed: unknown vehicle %q", id)
	}
	v.SetCustomSpeed(speed)
	return nil
}

// SetVehicleRoute stitches anchors into one feasible route and installs it
// on id: adjacent anchors are joined directly, non-adjacent ones via a
// Dijkstra search over the whole network. Returns ErrRouteInfeasible if any
// pair can't be joined or the stitched route ends up with one road or
// fewer (spec.md §7).
func (c *Control) SetVehicleRoute(id string, anchors []int64) error {
	v, ok := c.engine.Vehicle(id)
	if !ok {
		return simerr.Wrap(simerr.ErrRuntimePrecondition, "set vehicle route: unknown vehicle %q", id)
	}

	net := c.engine.RoadNet()
	roads := make([]*roadnet.Road, 0, len(anchors))
	for _, anchorID := range anchors {
		r := net.Road(anchorID)
		if r == nil {
			return simerr.Wrap(simerr.ErrConfigInvalid, "set vehicle route: unknown road id %d", anchorID)
		}
		roads = append(roads, r)
	}

	route, err := stitchRoute(net.Roads, roads)
	if err != nil {
		return err
	}

	v.SetRoute(route)
	return nil
}

// stitchRoute concatenates anchors into a single road sequence: adjacent
// anchors are joined directly; non-adjacent ones fall back to
// vehicle.ShortestPath over allRoads. Fails with ErrRouteInfeasible if any
// segment can't be resolved or the final route has length <= 1.
func stitchRoute(allRoads []*roadnet.Road, anchors []*roadnet.Road) ([]*roadnet.Road, error) {
	if len(anchors) == 0 {
		return nil, simerr.Wrap(simerr.ErrRouteInfeasible, "set vehicle route: empty route")
	}

	route := []*roadnet.Road{anchors[0]}
	for i := 1; i < len(anchors); i++ {
		prev, next := anchors[i-1], anchors[i]
		if prev.ConnectedToRoad(next) {
			route = append(route, next)
			continue
		}

		path := vehicle.ShortestPath(allRoads, prev, next)
		if len(path) < 2 {
			return nil, simerr.Wrap(simerr.ErrRouteInfeasible, "set vehicle route: no path from road %d to road %d", prev.ID(), next.ID())
		}
		route = append(route, path[1:]...)
	}

	if len(route) <= 1 {
		return nil, simerr.Wrap(simerr.ErrRouteInfeasible, "set vehicle route: stitched route has length %d", len(route))
	}
	return route, nil
}

// SetTrafficLightPhase sets intersectionID's light to phase index, only
// when the engine was loaded with rlTrafficLight enabled. Returns
// ErrRuntimePrecondition otherwise (spec.md §7).
func (c *Control) SetTrafficLightPhase(intersectionID int64, phase int) error {
	if !c.engine.RLTrafficLightEnabled() {
		return simerr.Wrap(simerr.ErrRuntimePrecondition, "set traffic light phase: rlTrafficLight not enabled")
	}
	it := c.engine.RoadNet().Intersection(intersectionID)
	if it == nil || it.Light == nil {
		return simerr.Wrap(simerr.ErrRuntimePrecondition, "set traffic light phase: intersection %d has no light", intersectionID)
	}
	it.Light.SetPhase(phase)
	return nil
}

// SetReplayLogging attaches (enabled=true) or detaches (enabled=false) a
// replay.Writer wrapping w. The caller owns w's lifetime and is
// responsible for closing it once logging is disabled.
func (c *Control) SetReplayLogging(enabled bool, w *replay.Writer) {
	if !enabled {
		c.engine.SetReplayLogger(nil)
		return
	}
	c.engine.SetReplayLogger(w)
}
