package vehicle

import "github.com/kotkaro/trafficsim/roadnet"

// Buffer accumulates every next-tick assignment a vehicle's speed/position
// update computes during the parallel stages of the pipeline (stage 5-9),
// so concurrent workers never mutate a vehicle's live state; Update (stage
// 10, updateLocation) flushes it.
type Buffer struct {
	isDisSet      bool
	isSpeedSet    bool
	isDrivableSet bool
	isEndSet      bool
	isEnterLaneLinkTimeSet bool
	isBlockerSet  bool
	isCustomSpeedSet bool

	dis      float64
	deltaDis float64
	speed    float64
	customSpeed float64
	drivable roadnet.Drivable
	end      bool
	blocker  *Vehicle
	enterLaneLinkTime int64
}

func (b *Buffer) SetEnd(end bool)              { b.end, b.isEndSet = end, true }
func (b *Buffer) SetDrivable(d roadnet.Drivable) { b.drivable, b.isDrivableSet = d, true }
func (b *Buffer) SetDis(dis float64)           { b.dis, b.isDisSet = dis, true }
func (b *Buffer) SetSpeed(v float64)           { b.speed, b.isSpeedSet = v, true }
func (b *Buffer) SetCustomSpeed(v float64)     { b.customSpeed, b.isCustomSpeedSet = v, true }
func (b *Buffer) SetBlocker(v *Vehicle)        { b.blocker, b.isBlockerSet = v, true }
func (b *Buffer) SetEnterLaneLinkTime(step int64) {
	b.enterLaneLinkTime, b.isEnterLaneLinkTimeSet = step, true
}

func (b *Buffer) UnsetEnd()      { b.isEndSet = false }
func (b *Buffer) UnsetDrivable() { b.isDrivableSet = false }

func (b *Buffer) HasCustomSpeed() bool      { return b.isCustomSpeedSet }
func (b *Buffer) ChangedDrivable() (roadnet.Drivable, bool) {
	if !b.isDrivableSet {
		return nil, false
	}
	return b.drivable, true
}
