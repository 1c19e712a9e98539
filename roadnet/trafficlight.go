package roadnet

// LightPhase is one entry of a TrafficLight's cycle: a duration and, per
// road-link (indexed by RoadLink.availabilityIndex), whether that road-link
// may be used while this phase is active.
type LightPhase struct {
	Duration  float64
	Available []bool
}

// TrafficLight is a cyclic phase schedule owned by one non-virtual
// Intersection. When the owning engine's config has RLTrafficLight set,
// nothing but SetPhase advances currentPhaseIndex/remainingDuration;
// otherwise Advance is called once per step from the pipeline (stage 13).
type TrafficLight struct {
	Intersection *Intersection
	Phases       []LightPhase

	currentPhaseIndex int
	remainingDuration float64
}

func NewTrafficLight(intersection *Intersection, phases []LightPhase) *TrafficLight {
	tl := &TrafficLight{Intersection: intersection, Phases: phases}
	tl.Reset()
	return tl
}

func (tl *TrafficLight) Reset() {
	tl.currentPhaseIndex = 0
	if len(tl.Phases) > 0 {
		tl.remainingDuration = tl.Phases[0].Duration
	}
}

func (tl *TrafficLight) currentAvailability(index int) bool {
	if len(tl.Phases) == 0 {
		return true
	}
	avail := tl.Phases[tl.currentPhaseIndex].Available
	if index < 0 || index >= len(avail) {
		return false
	}
	return avail[index]
}

// Advance moves the phase clock forward by dt, cycling through phases (a
// phase of duration <= 0 is skipped rather than spinning forever).
func (tl *TrafficLight) Advance(dt float64) {
	if len(tl.Phases) == 0 {
		return
	}
	tl.remainingDuration -= dt
	for tl.remainingDuration <= 0 {
		tl.currentPhaseIndex = (tl.currentPhaseIndex + 1) % len(tl.Phases)
		tl.remainingDuration += tl.Phases[tl.currentPhaseIndex].Duration
		if tl.Phases[tl.currentPhaseIndex].Duration <= 0 && len(tl.Phases) == 1 {
			break
		}
	}
}

// SetPhase is the external-control entry point (control API
// SetTrafficLightPhase); it is a caller error to invoke it unless the
// engine was configured with RLTrafficLight.
func (tl *TrafficLight) SetPhase(index int) {
	if index < 0 || index >= len(tl.Phases) {
		log.Panicf("roadnet: SetPhase: index %d out of range (%d phases)", index, len(tl.Phases))
	}
	tl.currentPhaseIndex = index
	tl.remainingDuration = tl.Phases[index].Duration
}

func (tl *TrafficLight) CurrentPhaseIndex() int     { return tl.currentPhaseIndex }
func (tl *TrafficLight) RemainingDuration() float64 { return tl.remainingDuration }

// RestorePhase sets the phase index and remaining duration exactly,
// bypassing SetPhase's reset-to-full-duration behavior; used only by
// archive restore.
func (tl *TrafficLight) RestorePhase(index int, remaining float64) {
	tl.currentPhaseIndex = index
	tl.remainingDuration = remaining
}
