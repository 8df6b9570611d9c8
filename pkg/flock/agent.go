// Package flock is the boids physics core: agent storage, steering
// forces, the fixed-step clock, the adaptive grid sizer and the
// two-phase scheduler, driven frame by frame by Engine.
package flock

import (
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

// Agent is one boid. Prev* hold the state at the start of the last tick
// and are the interpolation source for renderers.
type Agent struct {
	Position     geometry.Vector2D
	Velocity     geometry.Vector2D
	PrevPosition geometry.Vector2D
	PrevVelocity geometry.Vector2D
	MaxSpeed     float64
	MaxForce     float64
}

// StorePrevious copies the current state into the previous fields.
func (a *Agent) StorePrevious() {
	a.PrevPosition = a.Position
	a.PrevVelocity = a.Velocity
}

// Integrate applies force to the velocity, caps the speed, moves the agent
// and wraps it around the world. When the position wraps, the previous
// position is moved by the same shift so that interpolating between the
// two never sweeps across the whole map.
func (a *Agent) Integrate(force geometry.Vector2D, world geometry.Torus) {
	a.Velocity = a.Velocity.Add(force).Limit(a.MaxSpeed)
	pos, shift := world.Wrap(a.Position.Add(a.Velocity))
	a.Position = pos
	a.PrevPosition = a.PrevPosition.Add(shift)
}

// Interpolated blends previous and current state by alpha.
// After a wrap the blended position may sit slightly past the world edge.
func (a *Agent) Interpolated(alpha float64) (geometry.Vector2D, geometry.Vector2D) {
	return a.PrevPosition.Lerp(a.Position, alpha), a.PrevVelocity.Lerp(a.Velocity, alpha)
}
