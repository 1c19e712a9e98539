// Package engine runs the step loop: a fixed worker pool partitioned once
// over the road network at load time, synchronized by a pair of cyclic
// barriers across the fourteen stages of one simulation step (spec.md
// §4.1/§9).
package engine

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kotkaro/trafficsim/clock"
	"github.com/kotkaro/trafficsim/flow"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/utils/config"
	"github.com/kotkaro/trafficsim/utils/randengine"
	"github.com/kotkaro/trafficsim/vehicle"
)

var log = logrus.StandardLogger()

// ReplayLogger receives one call per step when the engine is configured to
// save a replay; implemented by the replay package, kept as an interface
// here so engine doesn't need to import it.
type ReplayLogger interface {
	LogStep(step int64, t float64, vehicles []*vehicle.Vehicle) error
}

// pushItem is a vehicle that crossed a drivable boundary this step,
// queued by the owning worker for the serial merge into its new drivable
// once every worker has finished stage 10.
type pushItem struct {
	target roadnet.Drivable
	node   *roadnet.VehicleNode
}

// despawnItem is a vehicle that reached the end of its route, queued for
// removal from the engine's pool (its drivable's list has already dropped
// it).
type despawnItem struct {
	drivable roadnet.Drivable
	node     *roadnet.VehicleNode
	v        *vehicle.Vehicle
}

// Engine is one runnable simulation: a loaded road network, its flows, and
// the worker pool that steps them. The zero value is not usable; build one
// with New.
type Engine struct {
	cfg   *config.Config
	net   *roadnet.RoadNet
	flows []*flow.Flow
	clock *clock.Clock
	rnd   *randengine.Engine
	pool  *vehiclePool
	part  *partition

	workers int

	startBarrier *cyclicBarrier
	endBarrier   *cyclicBarrier

	mu      sync.RWMutex
	stageFn func(workerIdx int)

	closeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
	workerWG  sync.WaitGroup

	workerPush    [][]pushItem
	workerDespawn [][]despawnItem

	curVehicles    []*vehicle.Vehicle
	curPartitioned [][]*vehicle.Vehicle

	finishedVehicleCnt   int64
	cumulativeTravelTime float64

	replay ReplayLogger
}

// New loads the road network and flow file named by cfg and starts the
// worker pool. Call Close when done with the engine.
func New(cfg *config.Config) (*Engine, error) {
	net, err := roadnet.Load(cfg.RoadnetPath())
	if err != nil {
		return nil, err
	}

	flows, err := flow.Load(cfg.FlowPath(), net, func(msg string) { log.Warn(msg) })
	if err != nil {
		return nil, err
	}

	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}

	e := &Engine{
		cfg:     cfg,
		net:     net,
		flows:   flows,
		clock:   clock.New(cfg.Interval),
		rnd:     randengine.New(uint64(cfg.Seed)),
		pool:    newVehiclePool(),
		part:    buildPartition(net, workers),
		workers: workers,

		startBarrier: newCyclicBarrier(workers + 1),
		endBarrier:   newCyclicBarrier(workers + 1),

		workerPush:    make([][]pushItem, workers),
		workerDespawn: make([][]despawnItem, workers),
	}
	e.startWorkers()
	return e, nil
}

// SetReplayLogger attaches (or detaches, with nil) the replay sink used by
// stage 14. Safe to call between steps only.
func (e *Engine) SetReplayLogger(r ReplayLogger) { e.replay = r }

// Reset rewinds the engine to step 0 with every vehicle removed: the clock,
// every flow's emission schedule, every lane/intersection's transient
// state, and the vehicle pool.
func (e *Engine) Reset() {
	e.clock.Reset()
	e.pool = newVehiclePool()
	e.finishedVehicleCnt = 0
	e.cumulativeTravelTime = 0

	for _, r := range e.net.Roads {
		r.ClearPlanRoute()
	}
	for _, l := range e.net.Lanes {
		l.Reset()
	}
	for _, ll := range e.net.LaneLinks {
		*ll.Vehicles() = roadnet.VehicleList{}
	}
	for _, it := range e.net.Intersections {
		it.Reset()
	}
	for _, it := range e.net.Intersections {
		if !it.Virtual {
			it.InitCrosses()
		}
	}
	for _, f := range e.flows {
		f.Reset()
	}
}

func (e *Engine) Clock() *clock.Clock           { return e.clock }
func (e *Engine) RoadNet() *roadnet.RoadNet     { return e.net }
func (e *Engine) VehicleCount() int             { return e.pool.count() }
func (e *Engine) FinishedVehicleCount() int64   { return e.finishedVehicleCnt }
func (e *Engine) CumulativeTravelTime() float64 { return e.cumulativeTravelTime }

// RLTrafficLightEnabled reports whether phases only advance through the
// control API's set-traffic-light-phase operation rather than the lights'
// own timers (spec.md §6).
func (e *Engine) RLTrafficLightEnabled() bool { return e.cfg.RLTrafficLight }

// ResetWithSeed is Reset, optionally replacing the random engine driving
// flow emission and routing ties with a freshly seeded one (the control
// API's reset operation, spec.md §6).
func (e *Engine) ResetWithSeed(reseed bool, seed int64) {
	if reseed {
		e.rnd = randengine.New(uint64(seed))
	}
	e.Reset()
}

// AverageTravelTime is spec.md §8's running statistic: cumulative finished
// travel time plus the in-flight time of every currently live vehicle,
// divided by the total vehicle count seen so far; 0 while no vehicle has
// ever been live.
func (e *Engine) AverageTravelTime() float64 {
	live := e.pool.all()
	denom := e.finishedVehicleCnt + int64(len(live))
	if denom == 0 {
		return 0
	}
	total := e.cumulativeTravelTime
	for _, v := range live {
		total += e.clock.T - v.EnterTime()
	}
	return total / float64(denom)
}

// Vehicle looks a live vehicle up by its external id.
func (e *Engine) Vehicle(id string) (*vehicle.Vehicle, bool) {
	v := e.pool.byIDOrNil(id)
	return v, v != nil
}

// Vehicles returns every currently live vehicle (including lane-change
// shadows); the caller must not mutate the returned slice's vehicles.
func (e *Engine) Vehicles() []*vehicle.Vehicle { return e.pool.all() }

// Flows returns every flow this engine loaded, in load order.
func (e *Engine) Flows() []*flow.Flow { return e.flows }

// ReplacePool discards the current vehicle pool and rebuilds it from
// vehicles wholesale; used only by archive restore, after it has cloned
// and rewired a prior snapshot's vehicles.
func (e *Engine) ReplacePool(vehicles []*vehicle.Vehicle) {
	p := newVehiclePool()
	for _, v := range vehicles {
		p.add(v)
	}
	e.pool = p
}

// SetFinishedStats overwrites the finished-vehicle counters archive restore
// rewinds to a snapshot's values.
func (e *Engine) SetFinishedStats(finishedCnt int64, cumulativeTravelTime float64) {
	e.finishedVehicleCnt = finishedCnt
	e.cumulativeTravelTime = cumulativeTravelTime
}
