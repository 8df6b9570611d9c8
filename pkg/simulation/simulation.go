// Package simulation hosts the flock engine in an actor system and wires
// it to its outer surfaces: configuration files, the ebiten viewer and the
// websocket frame stream.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/flock"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/wire"
)

const worldName = "world"

var errUnexpectedReply = errors.New("unexpected reply from world")

// Simulation is a running actor system with one world in it.
type Simulation struct {
	System actor.ActorSystem
	World  *actor.PID
	Params *flock.LiveParams
	Codec  wire.Codec
}

// Start creates the actor system and spawns the world. frames may be nil.
func Start(ctx context.Context, cfg *Config, logger golog.Logger, frames chan<- *wire.Frame, codec wire.Codec) (*Simulation, error) {
	if logger == nil {
		logger = golog.DiscardLogger
	}
	if codec == nil {
		codec = wire.ProtoCodec{}
	}

	system, err := actor.NewActorSystem("BoidsWorld",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}

	params := flock.NewLiveParams(cfg.Params())
	pid, err := system.Spawn(ctx, worldName, NewWorldActor(cfg, params, frames, codec))
	if err != nil {
		_ = system.Stop(ctx)
		return nil, fmt.Errorf("failed to spawn world: %w", err)
	}

	return &Simulation{
		System: system,
		World:  pid,
		Params: params,
		Codec:  codec,
	}, nil
}

// Stop shuts the actor system down.
func (s *Simulation) Stop(ctx context.Context) error {
	return s.System.Stop(ctx)
}

// Frame asks the world to advance by elapsed wall time.
func (s *Simulation) Frame(ctx context.Context, elapsed time.Duration) error {
	return actor.Tell(ctx, s.World, durationpb.New(elapsed))
}

// Reset asks the world to respawn n agents.
func (s *Simulation) Reset(ctx context.Context, n int) error {
	n = max(0, min(n, MaxPopulation))
	return actor.Tell(ctx, s.World, wrapperspb.UInt32(uint32(n)))
}

// Pause stops or resumes the physics clock.
func (s *Simulation) Pause(ctx context.Context, paused bool) error {
	return actor.Tell(ctx, s.World, wrapperspb.Bool(paused))
}

// EncodedFrame returns the current frame encoded with the world codec.
func (s *Simulation) EncodedFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	reply, err := actor.Ask(ctx, s.World, &emptypb.Empty{}, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to ask world for a frame: %w", err)
	}
	b, ok := reply.(*wrapperspb.BytesValue)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnexpectedReply, reply)
	}
	return b.GetValue(), nil
}

// CurrentFrame returns the decoded current frame.
func (s *Simulation) CurrentFrame(ctx context.Context, timeout time.Duration) (*wire.Frame, error) {
	b, err := s.EncodedFrame(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return s.Codec.Decode(b)
}
