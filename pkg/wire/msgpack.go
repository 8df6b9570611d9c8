package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const msgpackName = "msgpack"

// MsgpackCodec encodes frames as MessagePack maps keyed by the short
// msgpack struct tags.
type MsgpackCodec struct{}

// Name implements Codec.
func (MsgpackCodec) Name() string { return msgpackName }

// Encode implements Codec.
func (MsgpackCodec) Encode(f *Frame) ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame %d: %w", f.Tick, err)
	}
	return b, nil
}

// Decode implements Codec.
func (MsgpackCodec) Decode(data []byte) (*Frame, error) {
	f := &Frame{}
	if err := msgpack.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return f, nil
}
