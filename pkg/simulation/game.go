package simulation

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/wire"
)

// maxBatch keeps one DrawTriangles call under the uint16 index limit.
const maxBatch = math.MaxUint16 / 3

var background = color.RGBA{R: 10, G: 10, B: 30, A: 255}

// Game renders the frames pushed by the world and drives it with the
// wall time between two ebiten updates.
type Game struct {
	ctx    context.Context
	sim    *Simulation
	frames <-chan *wire.Frame
	last   *wire.Frame
	cfg    *Config
	debug  bool

	lastUpdate time.Time

	// Triangle batch, rebuilt on every draw
	whiteImage *ebiten.Image
	vertices   []ebiten.Vertex
	indices    []uint16

	// Timing instrumentation
	updateAvg float64 // Rolling average in ms
	drawAvg   float64 // Rolling average in ms
}

func NewGame(ctx context.Context, cfg *Config, sim *Simulation, frames <-chan *wire.Frame, debug bool) *Game {
	whiteImage := ebiten.NewImage(3, 3)
	whiteImage.Fill(color.RGBA{R: 100, G: 200, B: 255, A: 255})

	return &Game{
		ctx:        ctx,
		sim:        sim,
		frames:     frames,
		last:       &wire.Frame{WorldSize: cfg.WorldSize}, // Avoid nil pointer
		cfg:        cfg,
		debug:      debug,
		whiteImage: whiteImage,
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	var elapsed time.Duration
	if !g.lastUpdate.IsZero() {
		elapsed = start.Sub(g.lastUpdate)
	}
	g.lastUpdate = start

	if err := g.sim.Frame(g.ctx, elapsed); err != nil {
		return fmt.Errorf("failed to send frame to world: %w", err)
	}

	// Keep only the newest frame; older ones are already stale.
	for {
		select {
		case f := <-g.frames:
			g.last = f
		default:
			return nil
		}
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	screen.Fill(background)

	f := g.last
	if f.WorldSize <= 0 {
		return
	}
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	scale := math.Min(float64(w), float64(h)) / f.WorldSize
	originX, originY := float64(w)/2, float64(h)/2
	world := geometry.Torus{Size: f.WorldSize}

	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	for i := range f.Agents {
		pos, vel := f.Interpolated(i)
		pos, _ = world.Wrap(pos)
		g.appendBoid(originX+pos.X*scale, originY+pos.Y*scale, vel.Angle())
		if len(g.vertices) >= 3*maxBatch {
			g.flush(screen)
		}
	}
	g.flush(screen)

	if g.debug {
		msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\nUpdate: %.2fms\nDraw:   %.2fms\n\nAgents: %d\nTick:   %d\nAlpha:  %.2f",
			ebiten.ActualFPS(),
			ebiten.ActualTPS(),
			g.updateAvg,
			g.drawAvg,
			len(f.Agents),
			f.Tick,
			f.Alpha)
		ebitenutil.DebugPrintAt(screen, msg, 10, 10)
	}
}

func (g *Game) Layout(w, h int) (int, int) { return g.cfg.ScreenWidth, g.cfg.ScreenHeight }

// appendBoid adds a triangle pointing along angle, centered on x, y.
func (g *Game) appendBoid(x, y, angle float64) {
	tipX := x + math.Cos(angle)*6
	tipY := y + math.Sin(angle)*6
	rightX := x + math.Cos(angle+2.5)*5
	rightY := y + math.Sin(angle+2.5)*5
	leftX := x + math.Cos(angle-2.5)*5
	leftY := y + math.Sin(angle-2.5)*5

	base := uint16(len(g.vertices))
	g.vertices = append(g.vertices,
		ebiten.Vertex{
			DstX: float32(tipX),
			DstY: float32(tipY),
			SrcX: 1, SrcY: 1,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		},
		ebiten.Vertex{
			DstX: float32(rightX),
			DstY: float32(rightY),
			SrcX: 1, SrcY: 1,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		},
		ebiten.Vertex{
			DstX: float32(leftX),
			DstY: float32(leftY),
			SrcX: 1, SrcY: 1,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		},
	)
	g.indices = append(g.indices, base, base+1, base+2)
}

func (g *Game) flush(screen *ebiten.Image) {
	if len(g.indices) == 0 {
		return
	}
	screen.DrawTriangles(g.vertices, g.indices, g.whiteImage, &ebiten.DrawTrianglesOptions{})
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
}
