package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotkaro/trafficsim/utils/config"
)

func loadTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestStepAdvancesClockAndSpawnsVehicle(t *testing.T) {
	e := loadTestEngine(t)

	assert.Equal(t, int64(0), e.Clock().Step)

	var sawVehicle bool
	for i := 0; i < 5; i++ {
		e.Step()
		if e.VehicleCount() > 0 {
			sawVehicle = true
		}
	}

	assert.Equal(t, int64(5), e.Clock().Step)
	assert.True(t, sawVehicle, "flow should have emitted at least one vehicle within 5 steps")
}

func TestResetIsIdempotentAndClearsState(t *testing.T) {
	e := loadTestEngine(t)

	for i := 0; i < 5; i++ {
		e.Step()
	}
	require.Greater(t, e.Clock().Step, int64(0))

	e.Reset()
	assert.Equal(t, int64(0), e.Clock().Step)
	assert.Equal(t, 0.0, e.Clock().T)
	assert.Equal(t, 0, e.VehicleCount())
	assert.Equal(t, int64(0), e.FinishedVehicleCount())
	assert.Equal(t, 0.0, e.CumulativeTravelTime())

	// Resetting an already-reset engine must be a no-op, not a panic or a
	// state change (spec.md §8's "Reset idempotence" law).
	e.Reset()
	assert.Equal(t, int64(0), e.Clock().Step)
	assert.Equal(t, 0, e.VehicleCount())
}

func TestAverageTravelTimeZeroBeforeAnyVehicle(t *testing.T) {
	e := loadTestEngine(t)
	assert.Equal(t, 0.0, e.AverageTravelTime())
}

func TestSeededDeterminism(t *testing.T) {
	run := func() (int64, int) {
		e := loadTestEngine(t)
		for i := 0; i < 20; i++ {
			e.Step()
		}
		return e.Clock().Step, e.VehicleCount()
	}

	step1, count1 := run()
	step2, count2 := run()
	assert.Equal(t, step1, step2)
	assert.Equal(t, count1, count2)
}
