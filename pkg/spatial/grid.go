// Package spatial implements the toroidal uniform-grid hash used to find
// flock neighbors without comparing every pair of agents.
package spatial

import (
	"math"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

// estimatedPerCell is the initial capacity of every bucket.
const estimatedPerCell = 10

// MaxGridSize caps the number of cells along one side. Fewer cells only
// widen them, so a capped grid still finds every neighbor.
const MaxGridSize = 512

// denseFactor triggers the cross-shaped search when the center cell holds
// more than denseFactor times the average occupied-cell population.
const denseFactor = 2.0

// NeighborEntry is one query result: the index of a nearby agent and its
// squared wrap-aware distance to the query position.
type NeighborEntry struct {
	Index           int
	DistanceSquared float64
}

type cellOffset struct {
	dx, dy int
}

var (
	// full 3x3 neighborhood, center first
	fullPattern = [...]cellOffset{
		{0, 0},
		{-1, -1}, {0, -1}, {1, -1},
		{-1, 0}, {1, 0},
		{-1, 1}, {0, 1}, {1, 1},
	}
	// center plus the four orthogonal neighbors
	crossPattern = [...]cellOffset{
		{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1},
	}
)

// Statistics describes the grid occupancy after the last rebuild.
type Statistics struct {
	OccupiedCells     int
	TotalCells        int
	OccupancyPercent  float64
	MaxPopulation     int
	AveragePopulation float64
}

// Grid is a square grid of buckets laid over a toroidal world centered on
// the origin. Cell (0,0) holds the corner at (-world/2, -world/2).
// A Grid is not safe for concurrent mutation; once rebuilt, QueryInto may be
// called from any number of goroutines until the next Clear or Insert.
type Grid struct {
	cellSize  float64
	cellWidth float64 // world.Size / gridSize, never below cellSize
	world     geometry.Torus
	gridSize  int

	buckets  [][]int
	occupied []bool

	occupiedCount int
	population    int
	maxPopulation int

	// reusable output of Query, single goroutine only
	scratch []NeighborEntry
}

// New creates an empty grid. The world is split into floor(worldSize/cellSize)
// equal cells per side, between one and MaxGridSize, so that no cell is
// narrower than cellSize, the seam cells included.
func New(cellSize, worldSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = worldSize
	}
	gridSize := 1
	if worldSize > 0 && cellSize > 0 {
		gridSize = int(math.Min(math.Floor(worldSize/cellSize), MaxGridSize))
	}
	if gridSize < 1 {
		gridSize = 1
	}
	cellWidth := cellSize
	if worldSize > 0 {
		cellWidth = worldSize / float64(gridSize)
	}

	total := gridSize * gridSize
	buckets := make([][]int, total)
	for i := range buckets {
		buckets[i] = make([]int, 0, estimatedPerCell)
	}

	return &Grid{
		cellSize:  cellSize,
		cellWidth: cellWidth,
		world:     geometry.Torus{Size: worldSize},
		gridSize:  gridSize,
		buckets:   buckets,
		occupied:  make([]bool, total),
		scratch:   make([]NeighborEntry, 0, len(fullPattern)*estimatedPerCell),
	}
}

// CellSize returns the cell size the grid was requested with.
func (g *Grid) CellSize() float64 { return g.cellSize }

// CellWidth returns the actual side of every cell, at least CellSize.
func (g *Grid) CellWidth() float64 { return g.cellWidth }

// GridSize returns the number of cells along one side.
func (g *Grid) GridSize() int { return g.gridSize }

// WorldSize returns the side of the world the grid covers.
func (g *Grid) WorldSize() float64 { return g.world.Size }

// Clear empties every bucket and resets occupancy and statistics.
// Bucket capacity is kept so the next rebuild does not allocate.
func (g *Grid) Clear() {
	for i := range g.buckets {
		g.buckets[i] = g.buckets[i][:0]
		g.occupied[i] = false
	}
	g.occupiedCount = 0
	g.population = 0
	g.maxPopulation = 0
}

// Insert files agent index at position pos.
func (g *Grid) Insert(index int, pos geometry.Vector2D) {
	cell := g.CellIndex(pos)
	bucket := append(g.buckets[cell], index)
	g.buckets[cell] = bucket

	if !g.occupied[cell] {
		g.occupied[cell] = true
		g.occupiedCount++
	}
	g.population++
	if len(bucket) > g.maxPopulation {
		g.maxPopulation = len(bucket)
	}
}

// Rebuild clears the grid and inserts every position under its slice index.
func (g *Grid) Rebuild(positions []geometry.Vector2D) {
	g.Clear()
	for i, p := range positions {
		g.Insert(i, p)
	}
}

// CellCoords maps a world position to its (column, row), clamped to the grid.
func (g *Grid) CellCoords(pos geometry.Vector2D) (int, int) {
	h := g.world.Half()
	return g.clampAxis((pos.X + h) / g.cellWidth), g.clampAxis((pos.Y + h) / g.cellWidth)
}

// CellIndex maps a world position to its row-major bucket index.
func (g *Grid) CellIndex(pos geometry.Vector2D) int {
	cx, cy := g.CellCoords(pos)
	return cy*g.gridSize + cx
}

// Bucket returns the agent indices stored in the cell at (cx, cy), with
// coordinates wrapped around the grid. The slice must not be modified.
func (g *Grid) Bucket(cx, cy int) []int {
	return g.buckets[g.wrappedIndex(cx, cy)]
}

// AveragePopulation is the mean population of occupied cells.
func (g *Grid) AveragePopulation() float64 {
	if g.occupiedCount == 0 {
		return 0
	}
	return float64(g.population) / float64(g.occupiedCount)
}

// Statistics reports the current occupancy figures.
func (g *Grid) Statistics() Statistics {
	total := len(g.buckets)
	return Statistics{
		OccupiedCells:     g.occupiedCount,
		TotalCells:        total,
		OccupancyPercent:  float64(g.occupiedCount) * 100 / float64(total),
		MaxPopulation:     g.maxPopulation,
		AveragePopulation: g.AveragePopulation(),
	}
}

// Query returns the agents found around pos, skipping the agent whose index
// is self (pass -1 to keep everyone). positions resolves an index to the
// position used for the distance. The returned slice is owned by the grid
// and overwritten by the next call: not for concurrent use, see QueryInto.
func (g *Grid) Query(self int, pos geometry.Vector2D, positions []geometry.Vector2D) []NeighborEntry {
	g.scratch = g.QueryInto(g.scratch[:0], self, pos, positions)
	return g.scratch
}

// QueryInto is Query appending to a caller-owned buffer. It only reads the
// grid, so workers holding their own dst can run it in parallel.
//
// The 3x3 block of cells around pos is scanned with toroidal adjacency.
// When the center cell is crowded (more than twice the average occupied
// cell) only the center and its four orthogonal neighbors are scanned:
// diagonal neighbors may then be missed, a bounded-cost approximation.
func (g *Grid) QueryInto(dst []NeighborEntry, self int, pos geometry.Vector2D, positions []geometry.Vector2D) []NeighborEntry {
	cx, cy := g.CellCoords(pos)

	pattern := fullPattern[:]
	center := cy*g.gridSize + cx
	if g.occupied[center] && float64(len(g.buckets[center])) > denseFactor*g.AveragePopulation() {
		pattern = crossPattern[:]
	}

	// a grid narrower than 3 cells wraps onto itself, scan each cell once
	var seen [len(fullPattern)]int
	nSeen := 0

next:
	for _, off := range pattern {
		cell := g.wrappedIndex(cx+off.dx, cy+off.dy)
		for _, s := range seen[:nSeen] {
			if s == cell {
				continue next
			}
		}
		seen[nSeen] = cell
		nSeen++

		if !g.occupied[cell] {
			continue
		}
		for _, idx := range g.buckets[cell] {
			if idx == self || idx >= len(positions) {
				continue
			}
			dst = append(dst, NeighborEntry{
				Index:           idx,
				DistanceSquared: g.world.DistanceSquared(pos, positions[idx]),
			})
		}
	}
	return dst
}

func (g *Grid) clampAxis(v float64) int {
	if !(v > 0) { // also catches NaN
		return 0
	}
	last := g.gridSize - 1
	if v >= float64(last) {
		return last
	}
	return int(v)
}

func (g *Grid) wrappedIndex(cx, cy int) int {
	n := g.gridSize
	x := ((cx % n) + n) % n
	y := ((cy % n) + n) % n
	return y*n + x
}
