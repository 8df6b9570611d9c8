package simulation

import (
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/flock"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/wire"
)

// MaxPopulation caps population resets received as messages.
const MaxPopulation = 1_000_000

// WorldActor hosts the flock engine. All access to the engine goes through
// its mailbox:
//
//	*durationpb.Duration     run one frame with that much elapsed wall time
//	*wrapperspb.UInt32Value  respawn the population with that many agents
//	*wrapperspb.BoolValue    pause or resume
//	*emptypb.Empty           reply with the encoded current frame (BytesValue)
type WorldActor struct {
	cfg    *Config
	params *flock.LiveParams
	engine *flock.Engine
	codec  wire.Codec

	// Communication with the renderer
	frames  chan<- *wire.Frame
	current *wire.Frame

	// --- Telemetry ---
	frameCount  int
	tickCount   int
	lastLogTime time.Time
}

var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor creates the world. Frames are pushed to the frames channel
// after every frame message when it has room; it may be nil.
func NewWorldActor(cfg *Config, params *flock.LiveParams, frames chan<- *wire.Frame, codec wire.Codec) *WorldActor {
	if codec == nil {
		codec = wire.ProtoCodec{}
	}
	return &WorldActor{
		cfg:         cfg,
		params:      params,
		codec:       codec,
		frames:      frames,
		lastLogTime: time.Now(),
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	opts := []flock.Option{
		flock.WithLogger(ctx.ActorSystem().Logger()),
		flock.WithWorkers(w.cfg.Workers),
	}
	if w.cfg.Seed != 0 {
		opts = append(opts, flock.WithSeed(w.cfg.Seed))
	}
	w.engine = flock.NewEngine(w.params, opts...)
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("World started with %d agents", len(w.engine.Agents()))
		w.lastLogTime = time.Now()

	case *durationpb.Duration:
		w.frameCount++
		w.tickCount += w.engine.Frame(msg.AsDuration())
		w.pushFrame()
		w.logTelemetry(ctx)

	case *wrapperspb.UInt32Value:
		w.reset(ctx, int(min(msg.GetValue(), MaxPopulation)))

	case *wrapperspb.BoolValue:
		paused := msg.GetValue()
		w.params.Update(func(p *flock.Params) { p.Paused = paused })
		ctx.Logger().Infof("World paused: %t", paused)

	case *emptypb.Empty:
		w.current = wire.Capture(w.engine, w.current)
		b, err := w.codec.Encode(w.current)
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(wrapperspb.Bytes(b))

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("World is shutdown...")
	return nil
}

// reset respawns n agents. A population change is picked up by the engine
// on its next read of the parameters; an unchanged one is respawned here.
func (w *WorldActor) reset(ctx *actor.ReceiveContext, n int) {
	changed := false
	w.params.Update(func(p *flock.Params) {
		changed = p.Population != n
		p.Population = n
	})
	if changed {
		w.engine.Frame(0)
	} else {
		w.engine.Reset(n)
	}
	ctx.Logger().Infof("World reset to %d agents", n)
}

func (w *WorldActor) pushFrame() {
	if w.frames == nil {
		return
	}
	select {
	case w.frames <- wire.Capture(w.engine, nil):
	default:
		// renderer busy, skip frame
	}
}

func (w *WorldActor) logTelemetry(ctx *actor.ReceiveContext) {
	if time.Since(w.lastLogTime) < time.Second {
		return
	}
	s := w.engine.Stats()
	ctx.Logger().Infof("📊 FRAMES: %d/sec, TICKS: %d/sec | Agents: %d | Cell: %.1f (%dx%d) | Mean neighbors: %.1f",
		w.frameCount, w.tickCount, s.Agents, s.CellSize, s.GridSize, s.GridSize, s.MeanNeighbors)
	w.frameCount = 0
	w.tickCount = 0
	w.lastLogTime = time.Now()
}
