// Package simerr defines the error kinds the engine and its loaders surface,
// per the four categories the control API and config loader distinguish.
package simerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds, tested with errors.Is. Wrap a kind with fmt.Errorf("...:
// %w", ErrConfigInvalid) to attach context while keeping it matchable.
var (
	// ErrConfigInvalid covers a missing/malformed config or road-network/
	// flow field: unknown road id in a route, lane index out of range,
	// wrong field type. Fatal to loading.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrGeometryInvalid covers a road with fewer than two centerline
	// points, or any other geometry the loader cannot build a polyline
	// from. Fatal to loading.
	ErrGeometryInvalid = errors.New("geometry invalid")

	// ErrRuntimePrecondition covers a control-API call whose precondition
	// does not hold: SetTrafficLightPhase without rlTrafficLight enabled,
	// SetVehicleSpeed for an unknown vehicle id. Never fatal to the
	// engine; always returned to the caller.
	ErrRuntimePrecondition = errors.New("runtime precondition violated")

	// ErrRouteInfeasible covers a Dijkstra search with no path, or a
	// resolved route of length <= 1, for a route requested via the control
	// API; it is returned to the caller. A flow whose route does not
	// resolve is instead marked invalid when the flow file is loaded and
	// emits no vehicles (a warning, not fatal).
	ErrRouteInfeasible = errors.New("route infeasible")
)

// Wrap attaches context to a sentinel kind while keeping errors.Is(err, kind)
// true.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
