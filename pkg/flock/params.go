package flock

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

// minCellSize keeps the grid from degenerating when every radius is zero.
const minCellSize = 1.0

// Params is everything the engine reads from the outside world.
// It is re-read at the start of every frame and every tick.
type Params struct {
	Population int

	SeparationWeight float64
	AlignmentWeight  float64
	CohesionWeight   float64

	SeparationRadius float64
	AlignmentRadius  float64
	CohesionRadius   float64

	MaxSpeed float64
	MaxForce float64

	// CellSizeFactor scales the largest radius to get the minimum cell size.
	CellSizeFactor float64
	WorldSize      float64

	// PhysicsRate is the number of fixed ticks per simulated second.
	PhysicsRate float64

	Parallel           bool
	SpatialGrid        bool
	AdaptiveCellSizing bool
	Interpolation      bool
	Paused             bool

	// AdaptiveInterval is how much frame time passes between two
	// adaptive cell size evaluations.
	AdaptiveInterval time.Duration
}

// DefaultParams returns a 500 agent flock in a 5000 units world at 60 Hz.
func DefaultParams() Params {
	return Params{
		Population:         500,
		SeparationWeight:   1.5,
		AlignmentWeight:    1.0,
		CohesionWeight:     1.0,
		SeparationRadius:   25,
		AlignmentRadius:    50,
		CohesionRadius:     50,
		MaxSpeed:           4,
		MaxForce:           0.1,
		CellSizeFactor:     1,
		WorldSize:          5000,
		PhysicsRate:        60,
		Parallel:           true,
		SpatialGrid:        true,
		AdaptiveCellSizing: true,
		Interpolation:      true,
		AdaptiveInterval:   time.Second,
	}
}

// normalized replaces values that would break the engine with safe ones.
func (p Params) normalized() Params {
	if p.Population < 0 {
		p.Population = 0
	}
	if !(p.WorldSize > 0) {
		p.WorldSize = 1
	}
	if !(p.PhysicsRate > 0) {
		p.PhysicsRate = 1
	}
	if !(p.CellSizeFactor > 0) {
		p.CellSizeFactor = 1
	}
	p.SeparationRadius = math.Max(p.SeparationRadius, 0)
	p.AlignmentRadius = math.Max(p.AlignmentRadius, 0)
	p.CohesionRadius = math.Max(p.CohesionRadius, 0)
	p.MaxSpeed = math.Max(p.MaxSpeed, 0)
	p.MaxForce = math.Max(p.MaxForce, 0)
	if p.AdaptiveInterval <= 0 {
		p.AdaptiveInterval = time.Second
	}
	return p
}

// MaxRadius is the largest perception radius over the three rules.
func (p Params) MaxRadius() float64 {
	return math.Max(p.SeparationRadius, math.Max(p.AlignmentRadius, p.CohesionRadius))
}

// CellSizeFloor is the smallest cell size that keeps every rule radius
// inside the 3x3 neighborhood.
func (p Params) CellSizeFloor() float64 {
	return math.Max(p.MaxRadius()*p.CellSizeFactor, minCellSize)
}

// Step is the fixed tick duration derived from PhysicsRate.
func (p Params) Step() time.Duration {
	return time.Duration(float64(time.Second) / p.PhysicsRate)
}

// World is the torus the flock lives on.
func (p Params) World() geometry.Torus {
	return geometry.Torus{Size: p.WorldSize}
}

// Rules packs the per-rule radii and weights for the force evaluator.
func (p Params) Rules() Rules {
	return Rules{
		Separation: NewRule(p.SeparationRadius, p.SeparationWeight),
		Alignment:  NewRule(p.AlignmentRadius, p.AlignmentWeight),
		Cohesion:   NewRule(p.CohesionRadius, p.CohesionWeight),
		World:      p.World(),
	}
}

// ParamSource supplies the current parameters. Implementations must be
// safe to call from the goroutine driving the engine.
type ParamSource interface {
	Params() Params
}

// StaticParams is a ParamSource that never changes.
type StaticParams Params

// Params implements ParamSource.
func (s StaticParams) Params() Params { return Params(s) }

// LiveParams is a ParamSource that can be updated from any goroutine
// while an engine reads it.
type LiveParams struct {
	current atomic.Pointer[Params]
}

// NewLiveParams creates a LiveParams holding p.
func NewLiveParams(p Params) *LiveParams {
	l := &LiveParams{}
	l.Store(p)
	return l
}

// Params implements ParamSource.
func (l *LiveParams) Params() Params {
	if p := l.current.Load(); p != nil {
		return *p
	}
	return DefaultParams()
}

// Store replaces the current parameters.
func (l *LiveParams) Store(p Params) {
	l.current.Store(&p)
}

// Update applies fn to a copy of the current parameters and publishes
// the result, retrying when another writer got there first.
func (l *LiveParams) Update(fn func(*Params)) {
	for {
		old := l.current.Load()
		next := DefaultParams()
		if old != nil {
			next = *old
		}
		fn(&next)
		if l.current.CompareAndSwap(old, &next) {
			return
		}
	}
}
