package replay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotkaro/trafficsim/roadnet"
)

func loadTestNet(t *testing.T) *roadnet.RoadNet {
	t.Helper()
	net, err := roadnet.Load("testdata/roadnet.json")
	require.NoError(t, err)
	return net
}

func TestLogStepNoVehicles(t *testing.T) {
	net := loadTestNet(t)
	var buf bytes.Buffer
	w := New(net, &buf)

	require.NoError(t, w.LogStep(0, 0, nil))

	// No running vehicles: the vehicle section is empty, then the
	// separator, then one entry per non-virtual road with its lanes'
	// states, each terminated by a comma, then the newline.
	assert.Equal(t, ";101 g,102 i,\n", buf.String())
}

func TestLogStepReflectsTrafficLightPhase(t *testing.T) {
	net := loadTestNet(t)
	it := net.Intersection(2)
	require.NotNil(t, it)
	require.NotNil(t, it.Light)

	var buf bytes.Buffer
	w := New(net, &buf)

	require.NoError(t, w.LogStep(0, 0, nil))
	assert.Contains(t, buf.String(), "101 g,")

	it.Light.SetPhase(1)
	buf.Reset()
	require.NoError(t, w.LogStep(1, 1, nil))
	assert.Contains(t, buf.String(), "101 r,")
}
