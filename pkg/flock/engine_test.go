package flock

import (
	"math"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

var frame60 = seconds(1.0 / 60)

func smallParams() Params {
	p := DefaultParams()
	p.Population = 300
	p.WorldSize = 500
	p.AdaptiveCellSizing = false
	return p
}

func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	world := e.World()
	for i, a := range e.Agents() {
		if v := a.Velocity.Len(); v > a.MaxSpeed+1e-9 {
			t.Fatalf("Agent %d: speed %v above max %v", i, v, a.MaxSpeed)
		}
		if !world.Contains(a.Position) {
			t.Fatalf("Agent %d: position %v outside the world", i, a.Position)
		}
	}
}

func TestEngine_FrameKeepsInvariants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"grid parallel", func(p *Params) {}},
		{"grid sequential", func(p *Params) { p.Parallel = false }},
		{"brute force", func(p *Params) { p.SpatialGrid = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams()
			tt.modify(&p)
			e := NewEngine(StaticParams(p), WithSeed(3), WithWorkers(4))

			total := 0
			for i := 0; i < 120; i++ {
				total += e.Frame(frame60)
				checkInvariants(t, e)
				if a := e.Alpha(); a < 0 || a > 1 {
					t.Fatalf("Expected alpha in [0,1], got %v", a)
				}
			}
			if total != 120 {
				t.Errorf("Expected 120 ticks, got %d", total)
			}
			if got := e.Stats().Ticks; got != 120 {
				t.Errorf("Expected stats to count 120 ticks, got %d", got)
			}
		})
	}
}

func TestEngine_SeedIsReproducible(t *testing.T) {
	p := smallParams()
	p.Parallel = false
	a := NewEngine(StaticParams(p), WithSeed(11))
	b := NewEngine(StaticParams(p), WithSeed(11))

	for i := 0; i < 30; i++ {
		a.Step()
		b.Step()
	}
	for i := range a.Agents() {
		if a.Agents()[i].Position != b.Agents()[i].Position {
			t.Fatalf("Agent %d diverged: %v vs %v", i, a.Agents()[i].Position, b.Agents()[i].Position)
		}
	}
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	seqParams := smallParams()
	seqParams.Parallel = false
	parParams := smallParams()

	seq := NewEngine(StaticParams(seqParams), WithSeed(5))
	par := NewEngine(StaticParams(parParams), WithSeed(5), WithWorkers(8))

	for i := 0; i < 10; i++ {
		seq.Step()
		par.Step()
	}
	for i := range seq.Agents() {
		if !seq.Agents()[i].Position.Near(par.Agents()[i].Position, 1e-4) {
			t.Fatalf("Agent %d: sequential %v, parallel %v", i, seq.Agents()[i].Position, par.Agents()[i].Position)
		}
	}
}

func TestEngine_Interpolation(t *testing.T) {
	p := smallParams()
	p.PhysicsRate = 10
	live := NewLiveParams(p)
	e := NewEngine(live, WithSeed(1))

	e.Frame(150 * time.Millisecond)
	if a := e.Alpha(); math.Abs(a-0.5) > 1e-9 {
		t.Fatalf("Expected alpha 0.5, got %v", a)
	}
	agent := e.Agents()[0]
	pos, _ := e.Interpolated(0)
	want := agent.PrevPosition.Lerp(agent.Position, 0.5)
	if !pos.Eq(want) {
		t.Errorf("Expected interpolated %v, got %v", want, pos)
	}

	live.Update(func(p *Params) { p.Interpolation = false })
	e.Frame(0)
	if e.Alpha() != NoInterpolation {
		t.Errorf("Expected alpha %v without interpolation, got %v", NoInterpolation, e.Alpha())
	}
	if pos, _ := e.Interpolated(0); !pos.Eq(e.Agents()[0].Position) {
		t.Errorf("Expected the current position, got %v", pos)
	}
}

func TestEngine_PopulationChange(t *testing.T) {
	live := NewLiveParams(smallParams())
	e := NewEngine(live, WithSeed(1))

	live.Update(func(p *Params) { p.Population = 42 })
	e.Frame(0)
	if n := len(e.Agents()); n != 42 {
		t.Fatalf("Expected 42 agents, got %d", n)
	}

	e.Reset(0)
	if n := len(e.Agents()); n != 0 {
		t.Fatalf("Expected no agents after reset, got %d", n)
	}
	e.Frame(frame60)
	e.Step()
	if s := e.Stats(); s.Agents != 0 || s.MeanNeighbors != 0 {
		t.Errorf("Expected an empty flock, got %+v", s)
	}
}

func TestEngine_WorldSizeChange(t *testing.T) {
	live := NewLiveParams(smallParams())
	e := NewEngine(live, WithSeed(2))

	live.Update(func(p *Params) { p.WorldSize = 100 })
	e.Frame(0)
	checkInvariants(t, e)

	e.Step()
	if g := e.Grid(); g == nil || g.WorldSize() != 100 {
		t.Fatalf("Expected a grid covering the new world, got %+v", g)
	}
	checkInvariants(t, e)
}

func TestEngine_LimitsChange(t *testing.T) {
	live := NewLiveParams(smallParams())
	e := NewEngine(live, WithSeed(4))

	live.Update(func(p *Params) {
		p.MaxSpeed = 0.5
		p.MaxForce = 0.01
	})
	e.Frame(frame60)
	for i, a := range e.Agents() {
		if a.MaxSpeed != 0.5 || a.MaxForce != 0.01 {
			t.Fatalf("Agent %d kept limits %v/%v", i, a.MaxSpeed, a.MaxForce)
		}
	}
	checkInvariants(t, e)
}

func TestEngine_RateChange(t *testing.T) {
	live := NewLiveParams(smallParams())
	e := NewEngine(live, WithSeed(4))

	live.Update(func(p *Params) { p.PhysicsRate = 30 })
	if got := e.Frame(seconds(1.0 / 30)); got != 1 {
		t.Errorf("Expected one 30 Hz tick, got %d", got)
	}
	if e.Stats().Step != seconds(1.0/30) {
		t.Errorf("Expected step %v, got %v", seconds(1.0/30), e.Stats().Step)
	}
}

func TestEngine_Paused(t *testing.T) {
	p := smallParams()
	p.Paused = true
	e := NewEngine(StaticParams(p), WithSeed(1))
	before := e.Agents()[0].Position

	if got := e.Frame(time.Second); got != 0 {
		t.Errorf("Expected no tick while paused, got %d", got)
	}
	if e.Agents()[0].Position != before {
		t.Error("Expected agents to stay still while paused")
	}
	if e.Stats().Clock != Idle {
		t.Error("Expected nothing accumulated while paused")
	}
}

func TestEngine_GridFollowsRadii(t *testing.T) {
	live := NewLiveParams(smallParams())
	e := NewEngine(live, WithSeed(1))
	e.Step()
	if got := e.Stats().CellSize; got != 50 {
		t.Fatalf("Expected cell size 50, got %v", got)
	}

	// a small increase still invalidates cells narrower than the radius
	live.Update(func(p *Params) { p.CohesionRadius = 53 })
	e.Step()
	if got := e.Stats().CellSize; got != 53 {
		t.Errorf("Expected cell size 53, got %v", got)
	}

	live.Update(func(p *Params) {
		p.CohesionRadius = 20
		p.AlignmentRadius = 20
	})
	e.Step()
	if got := e.Stats().CellSize; got != 25 {
		t.Errorf("Expected cell size 25 after the radii shrank, got %v", got)
	}
}

func TestEngine_AdaptiveCellSizeGrowsWhenSparse(t *testing.T) {
	p := DefaultParams()
	p.Population = 100
	p.WorldSize = 1000
	p.SeparationRadius, p.AlignmentRadius, p.CohesionRadius = 10, 10, 10
	p.AdaptiveInterval = 100 * time.Millisecond
	e := NewEngine(StaticParams(p), WithSeed(8))

	for i := 0; i < 10; i++ {
		e.Frame(frame60)
	}

	s := e.Stats()
	if math.Abs(s.CellSize-11) > 1e-9 {
		t.Errorf("Expected the cell size to grow to 11, got %v (mean %v)", s.CellSize, s.MeanNeighbors)
	}

	// the grown grid survives the next ticks
	e.Frame(frame60)
	if math.Abs(e.Stats().CellSize-11) > 1e-9 {
		t.Errorf("Expected the adapted cell size to be kept, got %v", e.Stats().CellSize)
	}
}

func TestEngine_AdaptiveCellSizeStopsAtFloor(t *testing.T) {
	p := DefaultParams()
	p.Population = 2000
	p.WorldSize = 200
	p.SeparationRadius, p.AlignmentRadius, p.CohesionRadius = 10, 10, 10
	p.AdaptiveInterval = 100 * time.Millisecond
	e := NewEngine(StaticParams(p), WithSeed(8))

	for i := 0; i < 10; i++ {
		e.Frame(frame60)
	}

	s := e.Stats()
	if s.MeanNeighbors <= TargetNeighbors*1.5 {
		t.Fatalf("Expected a crowded sample, got mean %v", s.MeanNeighbors)
	}
	if s.CellSize != 10 {
		t.Errorf("Expected the cell size held at the floor 10, got %v", s.CellSize)
	}
}

func TestEngine_Stats(t *testing.T) {
	p := smallParams()
	e := NewEngine(StaticParams(p), WithSeed(1), WithWorkers(4))
	e.Frame(frame60)

	s := e.Stats()
	if s.Agents != p.Population || s.Workers != 4 || s.ChunkSize != p.Population/4 {
		t.Errorf("Unexpected sizes %+v", s)
	}
	if !s.GridEnabled || s.GridSize != 10 || s.Grid.TotalCells != 100 {
		t.Errorf("Unexpected grid figures %+v", s)
	}
	if s.Grid.OccupiedCells == 0 {
		t.Error("Expected occupied cells after a tick")
	}
	if s.FrameTicks != 1 {
		t.Errorf("Expected 1 tick in the frame, got %d", s.FrameTicks)
	}
}

func TestEngine_WrapKeepsInterpolationShort(t *testing.T) {
	p := smallParams()
	p.Population = 1
	p.Parallel = false
	e := NewEngine(StaticParams(p), WithSeed(1))

	a := &e.store.agents[0]
	a.Position = geometry.Vector2D{X: 249, Y: 0}
	a.Velocity = geometry.Vector2D{X: 3, Y: 0}
	e.Step()

	got := e.Agents()[0]
	if got.Position.X > 0 {
		t.Fatalf("Expected the agent to wrap to the left edge, got %v", got.Position)
	}
	if d := got.Position.Sub(got.PrevPosition).Len(); d > p.MaxSpeed+1e-9 {
		t.Errorf("Expected previous and current within one step, got %v apart", d)
	}
}

func BenchmarkEngine_Frame(b *testing.B) {
	p := DefaultParams()
	p.Population = 5000
	e := NewEngine(StaticParams(p), WithSeed(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Frame(frame60)
	}
}
