package flock

import (
	"math"
	"math/rand/v2"
	"time"

	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/spatial"
)

// cellDriftTolerance is how far the required cell size may move before
// the grid is recreated.
const cellDriftTolerance = 5.0

// Stats is a point-in-time view of the engine for debug displays.
type Stats struct {
	Ticks         uint64
	FrameTicks    int
	Agents        int
	Workers       int
	ChunkSize     int
	Step          time.Duration
	Alpha         float64
	Clock         ClockState
	GridEnabled   bool
	CellSize      float64
	GridSize      int
	Grid          spatial.Statistics
	MeanNeighbors float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for population and grid events.
func WithLogger(logger golog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSeed makes population randomization reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
}

// WithWorkers bounds the goroutines used by each parallel phase.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		e.sched = NewScheduler(workers)
	}
}

// Engine owns a flock and advances it frame by frame.
// It is not safe for concurrent use: one goroutine drives it.
type Engine struct {
	source ParamSource
	params Params
	logger golog.Logger
	rng    *rand.Rand

	store *Store
	snap  Snapshot
	clock *PhysicsClock
	sizer *AdaptiveSizer
	sched *Scheduler

	grid         *spatial.Grid
	requiredCell float64

	ticks      uint64
	frameTicks int
}

// NewEngine creates an engine reading its parameters from source and
// spawns the initial population.
func NewEngine(source ParamSource, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: golog.DiscardLogger,
		store:  &Store{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.sched == nil {
		e.sched = NewScheduler(0)
	}

	p := source.Params().normalized()
	e.params = p
	e.clock = NewPhysicsClock(p.Step(), p.Interpolation)
	e.sizer = NewAdaptiveSizer(p.AdaptiveInterval)
	e.store.Reset(p.Population, p, e.rng)
	e.ensureGrid()
	e.logger.Infof("flock engine ready: %d agents, world %.0f, %.0f Hz, %d workers",
		p.Population, p.WorldSize, p.PhysicsRate, e.sched.Workers())
	return e
}

// Frame feeds elapsed wall time to the physics clock and runs every tick
// that became due, then updates the interpolation alpha and, on its
// interval, the grid cell size. It returns the number of ticks run.
// While paused nothing accumulates.
func (e *Engine) Frame(elapsed time.Duration) int {
	e.refresh()
	if e.params.Paused {
		e.frameTicks = 0
		return 0
	}

	e.frameTicks = e.clock.Advance(elapsed, e.tick)

	if e.params.AdaptiveCellSizing && e.params.SpatialGrid && e.sizer.Due(elapsed) {
		e.adaptCellSize()
	}
	return e.frameTicks
}

// Step runs exactly one tick, bypassing the clock.
func (e *Engine) Step() {
	e.tick()
}

// Reset replaces the population with n freshly randomized agents.
func (e *Engine) Reset(n int) {
	if n < 0 {
		n = 0
	}
	e.store.Reset(n, e.params, e.rng)
	e.snap.Capture(e.store.Agents())
	if e.grid != nil {
		e.grid.Rebuild(e.snap.Positions)
	}
	e.logger.Infof("flock reset to %d agents", n)
}

// Agents returns the current agents. The slice is owned by the engine and
// changes on the next tick or reset.
func (e *Engine) Agents() []Agent { return e.store.Agents() }

// Alpha is the interpolation factor renderers blend previous and current
// state with.
func (e *Engine) Alpha() float64 { return e.clock.Alpha() }

// Interpolated returns the blended position and velocity of agent i.
func (e *Engine) Interpolated(i int) (geometry.Vector2D, geometry.Vector2D) {
	return e.store.agents[i].Interpolated(e.clock.Alpha())
}

// Ticks is the number of ticks run since the engine was created.
func (e *Engine) Ticks() uint64 { return e.ticks }

// Params returns the parameters applied by the last frame or tick.
func (e *Engine) Params() Params { return e.params }

// World returns the torus the flock lives on.
func (e *Engine) World() geometry.Torus { return e.params.World() }

// Grid returns the spatial grid, nil when it has never been needed.
func (e *Engine) Grid() *spatial.Grid { return e.grid }

// Stats gathers debug figures.
func (e *Engine) Stats() Stats {
	n := e.store.Len()
	s := Stats{
		Ticks:         e.ticks,
		FrameTicks:    e.frameTicks,
		Agents:        n,
		Workers:       e.sched.Workers(),
		ChunkSize:     e.sched.ChunkSize(n),
		Step:          e.clock.Step(),
		Alpha:         e.clock.Alpha(),
		Clock:         e.clock.State(),
		GridEnabled:   e.params.SpatialGrid,
		MeanNeighbors: e.sizer.LastMean(),
	}
	if e.grid != nil {
		s.CellSize = e.grid.CellSize()
		s.GridSize = e.grid.GridSize()
		s.Grid = e.grid.Statistics()
	}
	return s
}

// tick is one full simulation step: previous state, snapshot, grid
// rebuild, force phase, integrate phase.
func (e *Engine) tick() {
	e.refresh()
	p := e.params

	agents := e.store.Agents()
	e.store.StorePrevious()
	e.snap.Capture(agents)

	var hood Neighborhood = BruteForce{World: p.World()}
	if p.SpatialGrid {
		e.ensureGrid()
		e.grid.Rebuild(e.snap.Positions)
		hood = e.grid
	}

	e.sched.Evaluate(agents, &e.snap, hood, p.Rules(), p.Parallel)
	e.sched.Integrate(agents, p.World(), p.Parallel)
	e.ticks++
}

// refresh reads the parameter source and reacts to what changed since
// the last read.
func (e *Engine) refresh() {
	p := e.source.Params().normalized()
	old := e.params
	if p == old {
		return
	}
	e.params = p

	if p.Population != old.Population {
		e.Reset(p.Population)
	}
	if p.WorldSize != old.WorldSize {
		e.store.Rewrap(p.World())
		e.grid = nil
		e.logger.Infof("world size changed to %.0f", p.WorldSize)
	}
	if p.MaxSpeed != old.MaxSpeed || p.MaxForce != old.MaxForce {
		e.store.SetLimits(p.MaxSpeed, p.MaxForce)
	}
	if p.PhysicsRate != old.PhysicsRate {
		e.clock.SetStep(p.Step())
		e.logger.Infof("physics rate changed to %.0f Hz", p.PhysicsRate)
	}
	if p.Interpolation != old.Interpolation {
		e.clock.SetInterpolation(p.Interpolation)
	}
	if p.AdaptiveInterval != old.AdaptiveInterval {
		e.sizer.SetInterval(p.AdaptiveInterval)
	}
}

// ensureGrid recreates the grid when it is missing, when the required
// cell size drifted by more than the tolerance, or when the current cells
// are smaller than the largest perception radius allows. Cells grown by
// the adaptive sizer above the floor are kept.
func (e *Engine) ensureGrid() {
	floor := e.params.CellSizeFloor()
	if e.grid != nil &&
		math.Abs(floor-e.requiredCell) <= cellDriftTolerance &&
		e.grid.CellSize() >= floor-geometry.Epsilon {
		return
	}
	e.grid = spatial.New(floor, e.params.WorldSize)
	e.requiredCell = floor
	e.logger.Debugf("spatial grid rebuilt: cell %.2f, %dx%d", floor, e.grid.GridSize(), e.grid.GridSize())
}

func (e *Engine) adaptCellSize() {
	if e.grid == nil {
		return
	}
	mean, ok := e.sizer.Sample(e.grid, e.snap.Positions)
	if !ok {
		return
	}
	current := e.grid.CellSize()
	next := NextCellSize(mean, current, e.params.CellSizeFloor())
	if !NeedsRebuild(next, current) {
		return
	}
	e.grid = spatial.New(next, e.params.WorldSize)
	e.grid.Rebuild(e.snap.Positions)
	e.logger.Debugf("adaptive cell size %.2f -> %.2f (mean %.1f neighbors)", current, next, mean)
}
