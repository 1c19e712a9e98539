package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotkaro/trafficsim/engine"
	"github.com/kotkaro/trafficsim/roadnet"
	"github.com/kotkaro/trafficsim/simerr"
	"github.com/kotkaro/trafficsim/utils/config"
)

func newTestControl(t *testing.T) *Control {
	t.Helper()
	cfg, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)
	e, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return New(e, cfg.Seed)
}

func stepUntilVehicle(t *testing.T, c *Control, max int) {
	t.Helper()
	for i := 0; i < max; i++ {
		c.Step()
		if c.VehicleCount() > 0 {
			return
		}
	}
	t.Fatalf("no vehicle spawned within %d steps", max)
}

func TestStepAdvancesEngine(t *testing.T) {
	c := newTestControl(t)
	assert.Equal(t, int64(0), c.Engine().Clock().Step)
	c.Step()
	assert.Equal(t, int64(1), c.Engine().Clock().Step)
}

func TestResetWithoutReseed(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)
	c.Reset(false, 0)
	assert.Equal(t, int64(0), c.Engine().Clock().Step)
	assert.Equal(t, 0, c.VehicleCount())
}

func TestResetReseedIsIdempotent(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)
	c.Reset(true, 7)
	stepUntilVehicle(t, c, 10)
	countA := c.VehicleCount()

	c.Reset(true, 7)
	stepUntilVehicle(t, c, 10)
	countB := c.VehicleCount()

	assert.Equal(t, countA, countB)
}

func TestLaneCountMatchesRoadNet(t *testing.T) {
	c := newTestControl(t)
	assert.Equal(t, len(c.Engine().RoadNet().Lanes), c.LaneCount())
}

func TestVehicleObservations(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)

	speeds := c.VehicleSpeeds()
	distances := c.VehicleDistances()
	infos := c.VehicleInfos()

	assert.Len(t, speeds, c.VehicleCount())
	assert.Len(t, distances, c.VehicleCount())
	assert.Len(t, infos, c.VehicleCount())

	for _, v := range c.Engine().Vehicles() {
		info, ok := infos[v.ID()]
		require.True(t, ok)
		assert.Equal(t, v.Distance(), info.Distance)
		assert.Equal(t, v.V(), info.Speed)
		assert.True(t, info.Running)
	}
}

func TestLaneWaitingCountsCoversEveryLane(t *testing.T) {
	c := newTestControl(t)
	counts := c.LaneWaitingCounts()
	assert.Len(t, counts, c.LaneCount())
	for _, n := range counts {
		assert.GreaterOrEqual(t, n, 0)
	}
}

func TestSetVehicleSpeedUnknownVehicle(t *testing.T) {
	c := newTestControl(t)
	err := c.SetVehicleSpeed("no-such-vehicle", 5)
	assert.ErrorIs(t, err, simerr.ErrRuntimePrecondition)
}

func TestSetVehicleSpeedKnownVehicle(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)
	v := c.Engine().Vehicles()[0]

	require.NoError(t, c.SetVehicleSpeed(v.ID(), 3))
	assert.NotPanics(t, func() { c.Step() })
}

func TestSetVehicleRouteUnknownRoad(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)
	v := c.Engine().Vehicles()[0]

	err := c.SetVehicleRoute(v.ID(), []int64{999})
	assert.Error(t, err)
}

func TestSetVehicleRouteAdjacentAnchors(t *testing.T) {
	c := newTestControl(t)
	stepUntilVehicle(t, c, 10)
	v := c.Engine().Vehicles()[0]

	require.NoError(t, c.SetVehicleRoute(v.ID(), []int64{101, 102}))
	assert.Equal(t, []int64{101, 102}, roadIDs(v.Router().Route()))
}

func TestSetTrafficLightPhaseAppliedUnderRLMode(t *testing.T) {
	c := newTestControl(t)
	require.NoError(t, c.SetTrafficLightPhase(2, 1))

	it := c.Engine().RoadNet().Intersection(2)
	require.NotNil(t, it.Light)
	assert.Equal(t, 1, it.Light.CurrentPhaseIndex())
}

func TestSetTrafficLightPhaseRejectedWithoutRLMode(t *testing.T) {
	cfg, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)
	cfg.RLTrafficLight = false
	e, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	c := New(e, cfg.Seed)

	err = c.SetTrafficLightPhase(2, 1)
	assert.Error(t, err)
}

func roadIDs(roads []*roadnet.Road) []int64 {
	ids := make([]int64, len(roads))
	for i, r := range roads {
		ids[i] = r.ID()
	}
	return ids
}
