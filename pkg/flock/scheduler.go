package flock

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/spatial"
)

// Neighborhood finds the candidate neighbors of a position. *spatial.Grid
// and BruteForce implement it. QueryInto must only read shared state.
type Neighborhood interface {
	QueryInto(dst []spatial.NeighborEntry, self int, pos geometry.Vector2D, positions []geometry.Vector2D) []spatial.NeighborEntry
}

// BruteForce compares every pair of agents, with wrap-aware distances.
// It is the neighborhood used when the spatial grid is switched off.
type BruteForce struct {
	World geometry.Torus
}

// QueryInto implements Neighborhood.
func (b BruteForce) QueryInto(dst []spatial.NeighborEntry, self int, pos geometry.Vector2D, positions []geometry.Vector2D) []spatial.NeighborEntry {
	for i, p := range positions {
		if i == self {
			continue
		}
		dst = append(dst, spatial.NeighborEntry{Index: i, DistanceSquared: b.World.DistanceSquared(pos, p)})
	}
	return dst
}

// Scheduler runs a tick in two phases over contiguous chunks of agents.
//
// Phase 1 reads the frozen snapshot and the neighborhood and writes each
// agent's force into its own slot. Phase 2 applies slot i to agent i.
// Neither phase shares a writable location between chunks, so chunks can
// run in parallel and chunk boundaries never change the result.
type Scheduler struct {
	workers int
	forces  []geometry.Vector2D
	scratch [][]spatial.NeighborEntry
}

// NewScheduler creates a scheduler using up to workers goroutines per
// phase. A non-positive count means one per CPU.
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{workers: workers}
}

// Workers returns the maximum number of goroutines per phase.
func (s *Scheduler) Workers() int { return s.workers }

// ChunkSize is max(n/workers, 1).
func (s *Scheduler) ChunkSize(n int) int {
	return max(n/s.workers, 1)
}

// Forces returns the per-agent force slots written by the last Evaluate.
func (s *Scheduler) Forces() []geometry.Vector2D { return s.forces }

// Evaluate is phase 1: for every agent, gather neighbors around its
// snapshot position and store the total steering force in its slot.
func (s *Scheduler) Evaluate(agents []Agent, snap *Snapshot, hood Neighborhood, rules Rules, parallel bool) {
	n := snap.Len()
	if cap(s.forces) < n {
		s.forces = make([]geometry.Vector2D, n)
	}
	s.forces = s.forces[:n]

	s.run(n, parallel, func(chunk, lo, hi int) {
		buf := s.scratch[chunk]
		for i := lo; i < hi; i++ {
			buf = hood.QueryInto(buf[:0], i, snap.Positions[i], snap.Positions)
			a := &agents[i]
			s.forces[i] = Evaluate(i, snap, buf, rules, a.MaxSpeed, a.MaxForce).Total
		}
		s.scratch[chunk] = buf
	})
}

// Integrate is phase 2: apply every stored force, advance and wrap.
func (s *Scheduler) Integrate(agents []Agent, world geometry.Torus, parallel bool) {
	n := min(len(agents), len(s.forces))
	s.run(n, parallel, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			agents[i].Integrate(s.forces[i], world)
		}
	})
}

// run splits [0, n) into chunks and calls body for each, either in index
// order on the calling goroutine or fork-join across the worker pool.
func (s *Scheduler) run(n int, parallel bool, body func(chunk, lo, hi int)) {
	if n == 0 {
		return
	}
	if !parallel {
		s.ensureScratch(1)
		body(0, 0, n)
		return
	}

	size := s.ChunkSize(n)
	chunks := (n + size - 1) / size
	s.ensureScratch(chunks)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		g.Go(func() error {
			body(c, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) ensureScratch(chunks int) {
	for len(s.scratch) < chunks {
		s.scratch = append(s.scratch, make([]spatial.NeighborEntry, 0, 64))
	}
}
