package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotkaro/trafficsim/utils/config"
	"github.com/kotkaro/trafficsim/vehicle"
)

func loadScenarioEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	cfg, err := config.Load(dir + "/config.yaml")
	require.NoError(t, err)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// TestSingleVehicleStraightRoadKinematics is spec.md §8 scenario 1: one
// vehicle, one 200m lane, no intersections, vmax=10, maxPosAcc=2, Δt=1.
// Reconcile's displacement is the trapezoidal (prevSpeed+speed)/2*interval,
// so the ramp from rest contributes exactly 1+3+5+7+9 = 25m over 5 steps.
func TestSingleVehicleStraightRoadKinematics(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario1")

	e.Step()
	require.Equal(t, 1, e.VehicleCount(), "the single flow entry should spawn its one vehicle on step 1")
	v := e.Vehicles()[0]

	for i := 0; i < 4; i++ {
		e.Step()
	}
	assert.InDelta(t, 10.0, v.V(), 1e-6, "speed should have ramped to vmax after 5 steps")
	assert.InDelta(t, 25.0, v.Distance(), 1e-6, "distance after the ramp should be the trapezoidal sum 1+3+5+7+9")

	for i := 0; i < 16; i++ {
		e.Step()
	}
	// 25m ramp + 10m/step * 16 more steps = 185m, still short of the 200m
	// lane (both intersections here are virtual, so nothing is trimmed).
	assert.InDelta(t, 185.0, v.Distance(), 1e-6)
	assert.Equal(t, 1, e.VehicleCount(), "vehicle should not have finished yet")

	for i := 0; i < 10 && e.VehicleCount() > 0; i++ {
		e.Step()
	}
	assert.Equal(t, 0, e.VehicleCount(), "vehicle should have reached the end of the 200m lane by now")
	assert.Equal(t, int64(1), e.FinishedVehicleCount())
}

// TestCarFollowingConvergesToSafeGap is spec.md §8 scenario 2: a slower
// leader followed by a faster vehicle must settle into a gap that respects
// the follower's headway-time safety margin instead of colliding.
func TestCarFollowingConvergesToSafeGap(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario2")

	// Stay well short of the leader's ~101-step transit of the 500m road
	// (8.5m ramp + 5m/s cruise), so both vehicles are still present.
	for i := 0; i < 90; i++ {
		e.Step()
	}
	require.Equal(t, 2, e.VehicleCount(), "both flow entries should have spawned and still be on the road")

	var leader, follower *vehicle.Vehicle
	for _, v := range e.Vehicles() {
		if v.FlowID() == "flow_0" {
			leader = v
		} else {
			follower = v
		}
	}
	require.NotNil(t, leader)
	require.NotNil(t, follower)
	require.Greater(t, leader.Distance(), follower.Distance(), "leader must still be ahead of the follower")

	gap := leader.Distance() - leader.Length() - follower.Distance()
	minSafeGap := follower.V()*follower.Template().HeadwayTime + follower.MinGap()
	assert.GreaterOrEqual(t, gap, minSafeGap-1e-6, "converged gap must respect the follower's headway-time safety margin")
}

// TestRedLightStopsBeforeIntersection is spec.md §8 scenario 3: an
// approaching vehicle facing a permanently-unavailable road-link must come
// to rest with its front within [laneEnd-yieldDistance-1m, laneEnd].
func TestRedLightStopsBeforeIntersection(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario3")

	for i := 0; i < 60; i++ {
		e.Step()
	}
	require.Equal(t, 1, e.VehicleCount(), "the vehicle should still be waiting at the red light, not past it")

	v := e.Vehicles()[0]
	assert.InDelta(t, 0.0, v.V(), 0.5, "vehicle should have come to rest at the red light")

	lane := e.RoadNet().Road(201).Lanes[0]
	laneEnd := lane.Length()
	const yieldDistance = 5.0
	assert.GreaterOrEqual(t, v.Distance(), laneEnd-yieldDistance-1.0)
	assert.LessOrEqual(t, v.Distance(), laneEnd)
}

// TestCrossConflictStraightOutranksLeftTurn is spec.md §8 scenario 4: two
// vehicles reach a 90-degree lane-link crossing at the same distance and
// speed; the lower-priority (turn_left) movement must yield to the
// higher-priority (go_straight) one.
func TestCrossConflictStraightOutranksLeftTurn(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario4")

	minStraightSpeed, minTurnSpeed := 1e9, 1e9
	for i := 0; i < 60; i++ {
		e.Step()
		for _, v := range e.Vehicles() {
			switch v.FlowID() {
			case "flow_0":
				minStraightSpeed = minF(minStraightSpeed, v.V())
			case "flow_1":
				minTurnSpeed = minF(minTurnSpeed, v.V())
			}
		}
	}

	assert.Less(t, minTurnSpeed, minStraightSpeed, "the left-turn movement should have braked harder than the straight movement while yielding")
}

// TestLaneChangeFollowerOvertakesSlowLeader is spec.md §8 scenario 5: a
// faster follower behind a slow leader, with a free adjacent lane, ends up
// on the outer lane (lane index 1) within 400 steps.
func TestLaneChangeFollowerOvertakesSlowLeader(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario_lanechange")

	var follower *vehicle.Vehicle
	changedLane := false
	for i := 0; i < 400 && !changedLane; i++ {
		e.Step()
		for _, v := range e.Vehicles() {
			if v.FlowID() != "flow_1" {
				continue
			}
			follower = v
			if lane, ok := v.CurDrivable().AsLane(); ok && lane.LaneIndex == 1 {
				changedLane = true
			}
		}
	}

	require.NotNil(t, follower, "the faster vehicle should still be on the road")
	assert.True(t, changedLane, "the follower should have moved onto the free outer lane within the run")
}

// TestLaneChangeExclusivityInvariant is spec.md §8's "Lane-change
// exclusivity" law: no vehicle has changing==true with partnerType==none,
// and a shadow/real pair always references each other.
func TestLaneChangeExclusivityInvariant(t *testing.T) {
	e := loadScenarioEngine(t, "testdata/scenario_lanechange")

	for i := 0; i < 200; i++ {
		e.Step()
		for _, v := range e.Vehicles() {
			if v.LaneChange() != nil && v.LaneChange().Changing() {
				assert.NotNil(t, v.Partner(), "a vehicle mid lane-change must have a partner (PartnerType != none)")
			}
			if partner := v.Partner(); partner != nil {
				assert.Same(t, v, partner.Partner(), "a lane-change pair must reference each other symmetrically")
			}
		}
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
