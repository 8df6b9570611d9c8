package flock

import (
	"math"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

// initialSpeed is the magnitude of a freshly spawned agent's velocity.
const initialSpeed = 2.0

// Store is the flat collection of agents. Index i always designates the
// same agent until the next Reset.
type Store struct {
	agents []Agent
}

// Reset replaces every agent with n new ones placed uniformly in the world
// and heading in a random direction.
func (s *Store) Reset(n int, p Params, rng *rand.Rand) {
	h := p.WorldSize / 2
	agents := make([]Agent, n)
	for i := range agents {
		pos := geometry.Vector2D{
			X: rng.Float64()*p.WorldSize - h,
			Y: rng.Float64()*p.WorldSize - h,
		}
		vel := geometry.NewVectorPolar(initialSpeed, rng.Float64()*2*math.Pi).Limit(p.MaxSpeed)
		agents[i] = Agent{
			Position:     pos,
			Velocity:     vel,
			PrevPosition: pos,
			PrevVelocity: vel,
			MaxSpeed:     p.MaxSpeed,
			MaxForce:     p.MaxForce,
		}
	}
	s.agents = agents
}

// Len returns the population size.
func (s *Store) Len() int { return len(s.agents) }

// Agents exposes the backing slice. Callers outside the engine must treat
// it as read-only.
func (s *Store) Agents() []Agent { return s.agents }

// StorePrevious snapshots every agent's state into its previous fields.
func (s *Store) StorePrevious() {
	for i := range s.agents {
		s.agents[i].StorePrevious()
	}
}

// SetLimits propagates new speed and force limits to every agent.
func (s *Store) SetLimits(maxSpeed, maxForce float64) {
	for i := range s.agents {
		s.agents[i].MaxSpeed = maxSpeed
		s.agents[i].MaxForce = maxForce
		s.agents[i].Velocity = s.agents[i].Velocity.Limit(maxSpeed)
	}
}

// Rewrap brings every agent back inside world, after the world shrank.
func (s *Store) Rewrap(world geometry.Torus) {
	for i := range s.agents {
		a := &s.agents[i]
		pos, shift := world.Wrap(a.Position)
		a.Position = pos
		a.PrevPosition = a.PrevPosition.Add(shift)
	}
}

// Snapshot is the frozen copy of positions and velocities every agent
// reads during the force phase of a tick. Copying costs O(n) per tick;
// the buffers are reused so it does not allocate in steady state.
type Snapshot struct {
	Positions  []geometry.Vector2D
	Velocities []geometry.Vector2D
}

// Capture overwrites the snapshot with the state of agents.
func (s *Snapshot) Capture(agents []Agent) {
	n := len(agents)
	if cap(s.Positions) < n {
		s.Positions = make([]geometry.Vector2D, n)
		s.Velocities = make([]geometry.Vector2D, n)
	}
	s.Positions = s.Positions[:n]
	s.Velocities = s.Velocities[:n]
	for i := range agents {
		s.Positions[i] = agents[i].Position
		s.Velocities[i] = agents[i].Velocity
	}
}

// Len returns the number of captured agents.
func (s *Snapshot) Len() int { return len(s.Positions) }
