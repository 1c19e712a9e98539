// Package flow generates vehicles onto the road network at a steady rate
// over a configured time window (spec.md's Flow component, C8).
package flow

import (
	"fmt"

	"github.com/kotkaro/trafficsim/clock"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/utils/randengine"
	"github.com/kotkaro/trafficsim/vehicle"
)

// Flow periodically emits vehicles built from one Template onto the first
// road of Route, between StartTime and EndTime (EndTime < 0 means no end).
type Flow struct {
	ID       string
	Template vehicle.Template
	Route    []*roadnet.Road
	Interval float64
	StartTime float64
	EndTime   float64

	currentTime float64
	nowTime     float64
	valid       bool
	cnt         int
}

// New builds a flow; it starts invalid (see SetValid) until the owning
// loader confirms its route is resolvable end to end.
func New(id string, tmpl vehicle.Template, route []*roadnet.Road, interval, startTime, endTime float64) *Flow {
	return &Flow{
		ID:        id,
		Template:  tmpl,
		Route:     route,
		Interval:  interval,
		StartTime: startTime,
		EndTime:   endTime,
		nowTime:   interval,
	}
}

func (f *Flow) IsValid() bool { return f.valid }

// SetValid marks a flow usable or not; a flow whose route failed to
// resolve is disabled (with a warning through warn when a valid flow turns
// invalid) rather than aborting the whole load.
func (f *Flow) SetValid(valid bool, warn func(string)) {
	if f.valid && !valid && warn != nil {
		warn(fmt.Sprintf("flow %q has an invalid route; it will emit no vehicles", f.ID))
	}
	f.valid = valid
}

func (f *Flow) Reset() {
	f.nowTime = f.Interval
	f.currentTime = 0
	f.cnt = 0
}

// SnapshotState and RestoreState expose the flow's emission clock for
// archiving: nowTime (interval accumulator), currentTime (elapsed time
// since the engine started) and cnt (vehicles emitted so far, the id
// suffix counter).
func (f *Flow) SnapshotState() (nowTime, currentTime float64, cnt int) {
	return f.nowTime, f.currentTime, f.cnt
}

func (f *Flow) RestoreState(nowTime, currentTime float64, cnt int) {
	f.nowTime = nowTime
	f.currentTime = currentTime
	f.cnt = cnt
}

// NextStep advances the flow's clock by dt and returns every vehicle
// emitted this step, already pushed onto Route[0]'s plan-route buffer.
// uniquePriority must hand back a priority no live vehicle currently holds.
func (f *Flow) NextStep(dt float64, clk *clock.Clock, rnd *randengine.Engine, uniquePriority func() int64) []*vehicle.Vehicle {
	if !f.valid {
		return nil
	}
	if f.EndTime >= 0 && f.currentTime > f.EndTime {
		return nil
	}

	var emitted []*vehicle.Vehicle
	if f.currentTime >= f.StartTime {
		for f.nowTime >= f.Interval {
			id := fmt.Sprintf("%s_%d", f.ID, f.cnt)
			f.cnt++
			v := vehicle.New(id, f.Template, f.Route, clk, rnd, f.ID, uniquePriority)
			v.SetRunning(false)
			emitted = append(emitted, v)
			if len(f.Route) > 0 {
				f.Route[0].PushPlanRoute(v)
			}
			f.nowTime -= f.Interval
		}
		f.nowTime += dt
	}
	f.currentTime += dt
	return emitted
}
