// Package clock tracks simulation time: the fixed step interval, the
// current step count, and the accumulated simulated time.
package clock

import "fmt"

// Clock advances by a fixed Dt every step. It has no sub-loop concept;
// the engine pipeline steps once per Dt.
type Clock struct {
	Dt   float64 // seconds per step
	Step int64   // current step count, starting at 0
	T    float64 // accumulated simulated time, seconds
}

func New(dt float64) *Clock {
	return &Clock{Dt: dt}
}

// Reset rewinds the clock to step 0, t=0.
func (c *Clock) Reset() {
	c.Step = 0
	c.T = 0
}

// Advance moves the clock forward by one Dt.
func (c *Clock) Advance() {
	c.Step++
	c.T += c.Dt
}

func (c *Clock) String() string {
	t := c.T
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
