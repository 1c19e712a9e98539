package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotkaro/trafficsim/engine"
	"github.com/kotkaro/trafficsim/utils/config"
)

func loadLaneChangeEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg, err := config.Load("testdata/lanechange/config.yaml")
	require.NoError(t, err)
	e, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// runUntilMidChange steps e until some vehicle's lane-change has started
// but not finished, returning false if the run exhausts maxSteps first.
func runUntilMidChange(e *engine.Engine, maxSteps int) bool {
	for i := 0; i < maxSteps; i++ {
		e.Step()
		for _, v := range e.Vehicles() {
			if v.LaneChange() != nil && v.LaneChange().Changing() {
				return true
			}
		}
	}
	return false
}

// TestArchiveRestoreMidLaneChangeMatchesUninterruptedRun is spec.md §8
// scenario 6: archive at the end of the first step that leaves a lateral
// translation in progress, advance 20 steps, restore, re-advance 20 steps;
// per-vehicle positions must equal the original uninterrupted run's at
// every step.
func TestArchiveRestoreMidLaneChangeMatchesUninterruptedRun(t *testing.T) {
	baseline := loadLaneChangeEngine(t)
	require.True(t, runUntilMidChange(baseline, 400), "fixture should reach a mid lane-change state within 400 steps")
	snap := Capture(baseline)

	var baselineTrace [][]vehicleFingerprint
	for i := 0; i < 20; i++ {
		baseline.Step()
		baselineTrace = append(baselineTrace, fingerprintAll(baseline))
	}

	restored := loadLaneChangeEngine(t)
	Restore(restored, snap)

	for i := 0; i < 20; i++ {
		restored.Step()
		got := fingerprintAll(restored)
		assert.ElementsMatch(t, baselineTrace[i], got, "step %d after restore should match the uninterrupted run", i)
	}
}

func fingerprintAll(e *engine.Engine) []vehicleFingerprint {
	var out []vehicleFingerprint
	for _, v := range e.Vehicles() {
		out = append(out, fingerprint(v))
	}
	return out
}
