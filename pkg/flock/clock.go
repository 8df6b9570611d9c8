package flock

import "time"

// stepSlack absorbs the nanosecond truncation of rate-derived durations:
// two frames of 1/60s must add up to one step of 1/30s.
const stepSlack = time.Microsecond

// NoInterpolation is the alpha reported when interpolation is disabled.
// Blending with it yields the current state unchanged.
const NoInterpolation = 1.0

// ClockState tells whether unconsumed time is waiting in the accumulator.
type ClockState int

const (
	Idle ClockState = iota
	Accumulating
)

func (s ClockState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// PhysicsClock is a fixed-timestep accumulator. Frames feed it wall time
// of any length; it releases whole steps and reports how far into the
// next step the remainder reaches.
type PhysicsClock struct {
	step        time.Duration
	accumulator time.Duration
	interpolate bool
	alpha       float64
}

// NewPhysicsClock creates an idle clock releasing ticks of length step.
func NewPhysicsClock(step time.Duration, interpolate bool) *PhysicsClock {
	c := &PhysicsClock{interpolate: interpolate}
	c.SetStep(step)
	c.updateAlpha()
	return c
}

// Step returns the tick duration.
func (c *PhysicsClock) Step() time.Duration { return c.step }

// SetStep changes the tick duration. Time already accumulated is kept.
func (c *PhysicsClock) SetStep(step time.Duration) {
	if step <= 0 {
		step = time.Nanosecond
	}
	c.step = step
}

// SetInterpolation switches alpha between the blend factor and
// NoInterpolation.
func (c *PhysicsClock) SetInterpolation(on bool) {
	c.interpolate = on
	c.updateAlpha()
}

// Accumulated returns the time not yet consumed by a tick. It dips below
// zero, by at most the slack, after a tick fired slightly early.
func (c *PhysicsClock) Accumulated() time.Duration { return c.accumulator }

// State reports whether the clock holds unconsumed time.
func (c *PhysicsClock) State() ClockState {
	if c.accumulator > 0 {
		return Accumulating
	}
	return Idle
}

// Alpha is the interpolation factor in [0, 1] computed at the end of the
// last Advance.
func (c *PhysicsClock) Alpha() float64 { return c.alpha }

// Advance adds elapsed to the accumulator and calls tick once for every
// whole step available, consuming it. Each call to tick must run a full
// simulation step: there is no cheaper catch-up path. It returns the
// number of ticks run.
func (c *PhysicsClock) Advance(elapsed time.Duration, tick func()) int {
	if elapsed > 0 {
		c.accumulator += elapsed
	}

	slack := min(stepSlack, c.step/2)
	ticks := 0
	for c.accumulator+slack >= c.step {
		tick()
		c.accumulator -= c.step
		ticks++
	}

	c.updateAlpha()
	return ticks
}

// Reset drops any accumulated time.
func (c *PhysicsClock) Reset() {
	c.accumulator = 0
	c.updateAlpha()
}

func (c *PhysicsClock) updateAlpha() {
	if !c.interpolate {
		c.alpha = NoInterpolation
		return
	}
	alpha := float64(c.accumulator) / float64(c.step)
	c.alpha = min(max(alpha, 0), 1)
}
