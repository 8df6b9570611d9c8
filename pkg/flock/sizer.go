package flock

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/spatial"
)

const (
	// TargetNeighbors is the average query size the sizer steers toward.
	TargetNeighbors = 15.0

	maxSizerSamples  = 100
	crowdedRatio     = 1.5
	sparseRatio      = 0.5
	shrinkFactor     = 0.9
	growFactor       = 1.1
	rebuildThreshold = 0.1
)

// AdaptiveSizer retunes the grid cell size from the number of candidates
// a query returns, so that cells stay near TargetNeighbors agents.
// It runs on a fixed interval, off the per-tick path.
type AdaptiveSizer struct {
	interval time.Duration
	elapsed  time.Duration
	lastMean float64

	counts []float64
	buf    []spatial.NeighborEntry
}

// NewAdaptiveSizer creates a sizer evaluating once per interval.
func NewAdaptiveSizer(interval time.Duration) *AdaptiveSizer {
	s := &AdaptiveSizer{
		counts: make([]float64, 0, maxSizerSamples),
		buf:    make([]spatial.NeighborEntry, 0, 4*int(TargetNeighbors)),
	}
	s.SetInterval(interval)
	return s
}

// SetInterval changes the evaluation period.
func (s *AdaptiveSizer) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	s.interval = interval
}

// Due accumulates elapsed and reports whether a full interval has passed,
// starting a new one when it has.
func (s *AdaptiveSizer) Due(elapsed time.Duration) bool {
	s.elapsed += elapsed
	if s.elapsed < s.interval {
		return false
	}
	s.elapsed = 0
	return true
}

// LastMean is the mean neighbor count of the last successful Sample.
func (s *AdaptiveSizer) LastMean() float64 { return s.lastMean }

// Sample queries the grid for min(n, 100) agents evenly strided over the
// population and returns the mean result size. positions must be the ones
// the grid was built from. It returns false when there is nobody to sample.
func (s *AdaptiveSizer) Sample(g *spatial.Grid, positions []geometry.Vector2D) (float64, bool) {
	n := len(positions)
	if n == 0 || g == nil {
		return 0, false
	}

	samples := min(n, maxSizerSamples)
	stride := n / samples

	s.counts = s.counts[:0]
	for k := 0; k < samples; k++ {
		i := k * stride
		s.buf = g.QueryInto(s.buf[:0], i, positions[i], positions)
		s.counts = append(s.counts, float64(len(s.buf)))
	}

	s.lastMean = stat.Mean(s.counts, nil)
	return s.lastMean, true
}

// NextCellSize applies the sizing policy: shrink by 10% when the mean is
// above 1.5x the target, grow by 10% below 0.5x, otherwise keep current.
// The result never goes below floor.
func NextCellSize(mean, current, floor float64) float64 {
	next := current
	switch {
	case mean > TargetNeighbors*crowdedRatio:
		next = current * shrinkFactor
	case mean < TargetNeighbors*sparseRatio:
		next = current * growFactor
	}
	return math.Max(next, floor)
}

// NeedsRebuild reports whether next differs from current by at least 10%,
// the smallest change worth a new grid.
func NeedsRebuild(next, current float64) bool {
	if current <= 0 {
		return next > 0
	}
	return math.Abs(next-current) >= current*rebuildThreshold-geometry.Epsilon
}
