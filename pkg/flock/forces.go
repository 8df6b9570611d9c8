package flock

import (
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/spatial"
)

// Rule is the perception radius and weight of one steering behavior.
type Rule struct {
	Radius        float64
	RadiusSquared float64
	Weight        float64
}

// NewRule precomputes the squared radius.
func NewRule(radius, weight float64) Rule {
	return Rule{Radius: radius, RadiusSquared: radius * radius, Weight: weight}
}

// Rules groups the three Reynolds rules with the world they apply in.
type Rules struct {
	Separation Rule
	Alignment  Rule
	Cohesion   Rule
	World      geometry.Torus
}

// Steering is the result of Evaluate: each clamped contribution and their
// weighted sum. Total is not clamped.
type Steering struct {
	Separation geometry.Vector2D
	Alignment  geometry.Vector2D
	Cohesion   geometry.Vector2D
	Total      geometry.Vector2D
}

// Evaluate computes the steering of agent i from its neighbors.
//
// It only reads snap and neighbors, so it may run concurrently for any
// number of agents sharing the same snapshot. Each neighbor entry carries
// its squared wrap-aware distance; a neighbor counts for a rule when that
// distance is strictly below the rule's squared radius.
func Evaluate(i int, snap *Snapshot, neighbors []spatial.NeighborEntry, rules Rules, maxSpeed, maxForce float64) Steering {
	self := snap.Positions[i]
	velocity := snap.Velocities[i]

	var (
		away, heading, center   geometry.Vector2D
		nSep, nAlign, nCohesion int
	)

	for _, n := range neighbors {
		d2 := n.DistanceSquared

		if d2 < rules.Separation.RadiusSquared && d2 > 0 {
			delta := rules.World.Delta(self, snap.Positions[n.Index])
			away = away.Add(delta.Mul(1 / d2))
			nSep++
		}
		if d2 < rules.Alignment.RadiusSquared {
			heading = heading.Add(snap.Velocities[n.Index])
			nAlign++
		}
		if d2 < rules.Cohesion.RadiusSquared {
			center = center.Add(rules.World.NearestImage(self, snap.Positions[n.Index]))
			nCohesion++
		}
	}

	var s Steering
	if nSep > 0 {
		s.Separation = steer(away.Mul(1/float64(nSep)), velocity, maxSpeed, maxForce)
	}
	if nAlign > 0 {
		s.Alignment = steer(heading.Mul(1/float64(nAlign)), velocity, maxSpeed, maxForce)
	}
	if nCohesion > 0 {
		target := center.Mul(1 / float64(nCohesion))
		s.Cohesion = steer(target.Sub(self), velocity, maxSpeed, maxForce)
	}

	s.Total = s.Separation.Mul(rules.Separation.Weight).
		Add(s.Alignment.Mul(rules.Alignment.Weight)).
		Add(s.Cohesion.Mul(rules.Cohesion.Weight))
	return s
}

// steer turns a desired direction into a Reynolds steering force:
// the direction at full speed minus the current velocity, capped at maxForce.
func steer(direction, velocity geometry.Vector2D, maxSpeed, maxForce float64) geometry.Vector2D {
	if direction.IsZero() {
		return geometry.Zero
	}
	desired := direction.WithLen(maxSpeed)
	return desired.Sub(velocity).Limit(maxForce)
}
