// Package vehicle implements the per-vehicle kinematic and control model:
// car-following, intersection yielding, routing and the three-phase
// lane-change handshake. Vehicle is the roadnet package's VehicleRef made
// concrete.
package vehicle

import "github.com/kotkaro/trafficsim/roadnet"

// Template is the immutable set of physical and behavioral parameters a
// Flow stamps onto every vehicle it emits (spec.md's Flow vehicle
// template). Defaults mirror a typical passenger car.
type Template struct {
	Length  float64
	Width   float64
	MaxSpeed float64

	MaxPosAcc   float64
	MaxNegAcc   float64
	UsualPosAcc float64
	UsualNegAcc float64

	MinGap      float64
	HeadwayTime float64
	TurnSpeed   float64
	YieldDistance float64

	Route []*roadnet.Road
}

// DefaultTemplate matches the reference passenger-car parameters.
func DefaultTemplate() Template {
	return Template{
		Length:        5,
		Width:         2,
		MaxSpeed:      16.66667,
		MaxPosAcc:     4.5,
		MaxNegAcc:     4.5,
		UsualPosAcc:   2.5,
		UsualNegAcc:   2.5,
		MinGap:        2,
		HeadwayTime:   1,
		TurnSpeed:     8.3333,
		YieldDistance: 5,
	}
}
