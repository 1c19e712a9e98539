package vehicle

import "github.com/kotkaro/trafficsim/roadnet"

// Direction values for a Signal's proposed lane change.
const (
	DirLeft      = -1
	DirUnchanged = 0
	DirRight     = 1
)

// Signal is a lane-change proposal broadcast by a vehicle (signalSend) and
// optionally received by a competing vehicle that out-ranks it
// (signalRecv), per spec.md §4.4's 3-phase handshake.
type Signal struct {
	Source    *Vehicle
	Target    *roadnet.Lane
	Direction int
	Urgency   int
}
