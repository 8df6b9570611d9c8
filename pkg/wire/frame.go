// Package wire turns engine state into self-contained frames that remote
// renderers and recorders can decode without access to the engine.
package wire

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/flock"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

// AgentState is the part of an agent a renderer needs: both ends of the
// last tick, so it can blend them with the frame alpha.
type AgentState struct {
	Position     geometry.Vector2D `json:"position" msgpack:"p"`
	Velocity     geometry.Vector2D `json:"velocity" msgpack:"v"`
	PrevPosition geometry.Vector2D `json:"prevPosition" msgpack:"pp"`
	PrevVelocity geometry.Vector2D `json:"prevVelocity" msgpack:"pv"`
}

// Frame is the flock at the end of an engine frame.
type Frame struct {
	Tick      uint64       `json:"tick" msgpack:"tick"`
	Alpha     float64      `json:"alpha" msgpack:"alpha"`
	WorldSize float64      `json:"worldSize" msgpack:"world"`
	Agents    []AgentState `json:"agents" msgpack:"agents"`
}

// Interpolated blends agent i with the frame alpha.
func (f *Frame) Interpolated(i int) (geometry.Vector2D, geometry.Vector2D) {
	a := &f.Agents[i]
	return a.PrevPosition.Lerp(a.Position, f.Alpha), a.PrevVelocity.Lerp(a.Velocity, f.Alpha)
}

// Capture fills dst (allocated when nil) with the current engine state and
// returns it. The agent slice of dst is reused when large enough.
func Capture(e *flock.Engine, dst *Frame) *Frame {
	if dst == nil {
		dst = &Frame{}
	}
	agents := e.Agents()
	if cap(dst.Agents) < len(agents) {
		dst.Agents = make([]AgentState, len(agents))
	}
	dst.Agents = dst.Agents[:len(agents)]
	for i := range agents {
		a := &agents[i]
		dst.Agents[i] = AgentState{
			Position:     a.Position,
			Velocity:     a.Velocity,
			PrevPosition: a.PrevPosition,
			PrevVelocity: a.PrevVelocity,
		}
	}
	dst.Tick = e.Ticks()
	dst.Alpha = e.Alpha()
	dst.WorldSize = e.World().Size
	return dst
}

// Codec serializes frames.
type Codec interface {
	Name() string
	Encode(f *Frame) ([]byte, error)
	Decode(data []byte) (*Frame, error)
}

// CodecByName returns the codec registered under name: "proto" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case protoName:
		return ProtoCodec{}, nil
	case msgpackName:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown frame format %q", name)
	}
}
