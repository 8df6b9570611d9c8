package wire

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/flock"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/geometry"
)

func engineFrame(t testing.TB, n int) *Frame {
	t.Helper()
	p := flock.DefaultParams()
	p.Population = n
	p.WorldSize = 400
	p.Parallel = false
	e := flock.NewEngine(flock.StaticParams(p), flock.WithSeed(7))
	for i := 0; i < 3; i++ {
		e.Frame(p.Step())
	}
	e.Frame(p.Step() / 2)
	return Capture(e, nil)
}

func sameFrame(t *testing.T, want, got *Frame) {
	t.Helper()
	if got.Tick != want.Tick || got.Alpha != want.Alpha || got.WorldSize != want.WorldSize {
		t.Fatalf("Expected header %d/%v/%v, got %d/%v/%v",
			want.Tick, want.Alpha, want.WorldSize, got.Tick, got.Alpha, got.WorldSize)
	}
	if len(got.Agents) != len(want.Agents) {
		t.Fatalf("Expected %d agents, got %d", len(want.Agents), len(got.Agents))
	}
	for i := range want.Agents {
		if got.Agents[i] != want.Agents[i] {
			t.Fatalf("Agent %d: expected %+v, got %+v", i, want.Agents[i], got.Agents[i])
		}
	}
}

func TestCapture(t *testing.T) {
	f := engineFrame(t, 20)

	if f.Tick != 3 {
		t.Errorf("Expected tick 3, got %d", f.Tick)
	}
	if f.Alpha < 0.49 || f.Alpha > 0.51 {
		t.Errorf("Expected alpha near 0.5, got %v", f.Alpha)
	}
	if f.WorldSize != 400 || len(f.Agents) != 20 {
		t.Errorf("Unexpected frame %v agents in world %v", len(f.Agents), f.WorldSize)
	}

	a := f.Agents[0]
	pos, _ := f.Interpolated(0)
	if !pos.Eq(a.PrevPosition.Lerp(a.Position, f.Alpha)) {
		t.Errorf("Expected blended position, got %v", pos)
	}

	agents := f.Agents
	p := flock.DefaultParams()
	p.Population = 5
	e := flock.NewEngine(flock.StaticParams(p), flock.WithSeed(1))
	again := Capture(e, f)
	if again != f || &again.Agents[0] != &agents[0] || len(again.Agents) != 5 {
		t.Error("Expected Capture to reuse the destination frame")
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	frames := map[string]*Frame{
		"engine": engineFrame(t, 50),
		"empty":  {Tick: 9, Alpha: 1, WorldSize: 100},
		"negative": {Agents: []AgentState{{
			Position:     geometry.Vector2D{X: -49.5, Y: 12},
			Velocity:     geometry.Vector2D{X: -1, Y: 0},
			PrevPosition: geometry.Vector2D{X: 49.9, Y: 12},
			PrevVelocity: geometry.Vector2D{X: -1, Y: 0.25},
		}}},
	}

	for _, codec := range []Codec{ProtoCodec{}, MsgpackCodec{}} {
		for name, f := range frames {
			t.Run(codec.Name()+"/"+name, func(t *testing.T) {
				data, err := codec.Encode(f)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				got, err := codec.Decode(data)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				sameFrame(t, f, got)
			})
		}
	}
}

func TestProtoCodec_EncodedSize(t *testing.T) {
	f := engineFrame(t, 10)
	data, err := ProtoCodec{}.Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	// header: tick tag+varint, two tagged doubles; each agent: tag, length, 4*(tag, length, 16)
	want := 1 + 1 + 2*9 + 10*(1+1+4*18)
	if len(data) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(data))
	}
}

func TestProtoCodec_Truncated(t *testing.T) {
	data, err := ProtoCodec{}.Encode(engineFrame(t, 3))
	if err != nil {
		t.Fatal(err)
	}
	for _, cut := range []int{1, 5, 25, len(data) - 1} {
		if _, err := (ProtoCodec{}).Decode(data[:cut]); err == nil {
			t.Errorf("Expected an error decoding %d of %d bytes", cut, len(data))
		}
	}
}

func TestProtoCodec_MalformedVector(t *testing.T) {
	// agents field holding a position with a single double
	data := []byte{
		0x22, 0x0a, // field 4, 10 bytes
		0x0a, 0x08, // field 1, 8 bytes
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	_, err := ProtoCodec{}.Decode(data)
	if !errors.Is(err, errMalformedVector) {
		t.Errorf("Expected errMalformedVector, got %v", err)
	}
}

func TestProtoCodec_UnpackedVectors(t *testing.T) {
	var agent []byte
	for _, c := range []float64{3, -4} {
		agent = protowire.AppendTag(agent, fieldVelocity, protowire.Fixed64Type)
		agent = protowire.AppendFixed64(agent, math.Float64bits(c))
	}
	agent = appendVector(agent, fieldPosition, geometry.Vector2D{X: 1, Y: 2})

	single := protowire.AppendTag(nil, fieldPrevPosition, protowire.Fixed64Type)
	single = protowire.AppendFixed64(single, math.Float64bits(7))

	tests := []struct {
		name    string
		agent   []byte
		want    AgentState
		wantErr bool
	}{
		{"unpacked and packed", agent, AgentState{Position: geometry.Vector2D{X: 1, Y: 2}, Velocity: geometry.Vector2D{X: 3, Y: -4}}, false},
		{"single unpacked double", single, AgentState{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := protowire.AppendTag(nil, fieldAgents, protowire.BytesType)
			data = protowire.AppendBytes(data, tt.agent)

			f, err := ProtoCodec{}.Decode(data)
			if tt.wantErr {
				if !errors.Is(err, errMalformedVector) {
					t.Errorf("Expected errMalformedVector, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(f.Agents) != 1 || f.Agents[0] != tt.want {
				t.Errorf("Expected agent %+v, got %+v", tt.want, f.Agents)
			}
		})
	}
}

func TestProtoCodec_SkipsUnknownFields(t *testing.T) {
	data := []byte{
		0x08, 0x05, // tick = 5
		0x78, 0x01, // field 15 varint
	}
	f, err := ProtoCodec{}.Decode(data)
	if err != nil {
		t.Fatalf("Expected unknown fields to be skipped, got %v", err)
	}
	if f.Tick != 5 {
		t.Errorf("Expected tick 5, got %d", f.Tick)
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"proto", false},
		{"msgpack", false},
		{"json", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q", tt.name)
				}
				return
			}
			if err != nil || c.Name() != tt.name {
				t.Errorf("Expected codec %q, got %v (%v)", tt.name, c, err)
			}
		})
	}
}

func TestStream_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{ProtoCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, codec)
			frames := []*Frame{engineFrame(t, 5), {Tick: 100, Alpha: 1, WorldSize: 10}, engineFrame(t, 0)}
			for _, f := range frames {
				if err := w.Write(f); err != nil {
					t.Fatalf("Write failed: %v", err)
				}
			}

			r := NewReader(&buf, codec)
			for i, want := range frames {
				got, err := r.Read()
				if err != nil {
					t.Fatalf("Read %d failed: %v", i, err)
				}
				sameFrame(t, want, got)
			}
			if _, err := r.Read(); err != io.EOF {
				t.Errorf("Expected io.EOF, got %v", err)
			}
		})
	}
}

func TestStream_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, ProtoCodec{}).Write(engineFrame(t, 4)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	_, err := NewReader(bytes.NewReader(data[:len(data)-3]), ProtoCodec{}).Read()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestStream_TooLarge(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x0f}
	_, err := NewReader(bytes.NewReader(data), MsgpackCodec{}).Read()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
}

func BenchmarkProtoCodec_Encode(b *testing.B) {
	f := engineFrame(b, 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (ProtoCodec{}).Encode(f); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMsgpackCodec_Encode(b *testing.B) {
	f := engineFrame(b, 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (MsgpackCodec{}).Encode(f); err != nil {
			b.Fatal(err)
		}
	}
}
