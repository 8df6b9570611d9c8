package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

const protoName = "proto"

// Frame message:
//
//	message Frame {
//	  uint64 tick = 1;
//	  double alpha = 2;
//	  double world_size = 3;
//	  repeated Agent agents = 4;
//	}
//	message Agent {
//	  repeated double position = 1 [packed = true];       // x, y
//	  repeated double velocity = 2 [packed = true];
//	  repeated double prev_position = 3 [packed = true];
//	  repeated double prev_velocity = 4 [packed = true];
//	}
const (
	fieldTick      protowire.Number = 1
	fieldAlpha     protowire.Number = 2
	fieldWorldSize protowire.Number = 3
	fieldAgents    protowire.Number = 4

	fieldPosition     protowire.Number = 1
	fieldVelocity     protowire.Number = 2
	fieldPrevPosition protowire.Number = 3
	fieldPrevVelocity protowire.Number = 4
)

// agentSize is the encoded size of one Agent message: four packed pairs.
var agentSize = 4 * (protowire.SizeTag(fieldPosition) + protowire.SizeBytes(16))

var errMalformedVector = errors.New("vector field must hold exactly two doubles")

// ProtoCodec encodes frames in protobuf wire format, readable by any
// protobuf runtime given the schema above.
type ProtoCodec struct{}

// Name implements Codec.
func (ProtoCodec) Name() string { return protoName }

// Encode implements Codec.
func (ProtoCodec) Encode(f *Frame) ([]byte, error) {
	size := protowire.SizeTag(fieldTick) + protowire.SizeVarint(f.Tick) +
		2*(protowire.SizeTag(fieldAlpha)+protowire.SizeFixed64()) +
		len(f.Agents)*(protowire.SizeTag(fieldAgents)+protowire.SizeBytes(agentSize))

	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, fieldTick, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Tick)
	b = protowire.AppendTag(b, fieldAlpha, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f.Alpha))
	b = protowire.AppendTag(b, fieldWorldSize, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f.WorldSize))

	for i := range f.Agents {
		a := &f.Agents[i]
		b = protowire.AppendTag(b, fieldAgents, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(agentSize))
		b = appendVector(b, fieldPosition, a.Position)
		b = appendVector(b, fieldVelocity, a.Velocity)
		b = appendVector(b, fieldPrevPosition, a.PrevPosition)
		b = appendVector(b, fieldPrevVelocity, a.PrevVelocity)
	}
	return b, nil
}

// Decode implements Codec. Unknown fields are skipped.
func (ProtoCodec) Decode(data []byte) (*Frame, error) {
	f := &Frame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("failed to read frame tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldTick && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to read tick: %w", protowire.ParseError(n))
			}
			f.Tick = v
			data = data[n:]
		case (num == fieldAlpha || num == fieldWorldSize) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to read field %d: %w", num, protowire.ParseError(n))
			}
			if num == fieldAlpha {
				f.Alpha = math.Float64frombits(v)
			} else {
				f.WorldSize = math.Float64frombits(v)
			}
			data = data[n:]
		case num == fieldAgents && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to read agent %d: %w", len(f.Agents), protowire.ParseError(n))
			}
			a, err := decodeAgent(msg)
			if err != nil {
				return nil, fmt.Errorf("failed to decode agent %d: %w", len(f.Agents), err)
			}
			f.Agents = append(f.Agents, a)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f, nil
}

func appendVector(b []byte, num protowire.Number, v geometry.Vector2D) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, 16)
	b = protowire.AppendFixed64(b, math.Float64bits(v.X))
	return protowire.AppendFixed64(b, math.Float64bits(v.Y))
}

// decodeAgent accepts each vector either packed or as repeated fixed64
// doubles, as protobuf parsers must for repeated scalars.
func decodeAgent(data []byte) (AgentState, error) {
	var a AgentState
	var vectors [4][]float64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return a, protowire.ParseError(n)
		}
		data = data[n:]

		k := int(num - fieldPosition)
		if num < fieldPosition || num > fieldPrevVelocity ||
			(typ != protowire.BytesType && typ != protowire.Fixed64Type) {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}

		if typ == protowire.Fixed64Type {
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return a, protowire.ParseError(n)
			}
			vectors[k] = append(vectors[k], math.Float64frombits(v))
			data = data[n:]
			continue
		}

		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return a, protowire.ParseError(n)
		}
		if len(packed)%8 != 0 {
			return a, fmt.Errorf("field %d: %w", num, errMalformedVector)
		}
		for ; len(packed) > 0; packed = packed[8:] {
			v, _ := protowire.ConsumeFixed64(packed)
			vectors[k] = append(vectors[k], math.Float64frombits(v))
		}
		data = data[n:]
	}

	dst := [4]*geometry.Vector2D{&a.Position, &a.Velocity, &a.PrevPosition, &a.PrevVelocity}
	for k, c := range vectors {
		if c == nil {
			continue
		}
		if len(c) != 2 {
			return a, fmt.Errorf("field %d: %w", protowire.Number(k)+fieldPosition, errMalformedVector)
		}
		*dst[k] = geometry.Vector2D{X: c[0], Y: c[1]}
	}
	return a, nil
}
