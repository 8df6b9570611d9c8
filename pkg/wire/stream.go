package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds a single delimited frame read from a stream.
const MaxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("frame exceeds the maximum size")

// Writer writes frames as varint length-prefixed records, the same
// framing protobuf uses for delimited messages.
type Writer struct {
	w     io.Writer
	codec Codec
	buf   []byte
}

// NewWriter returns a Writer encoding frames with codec.
func NewWriter(w io.Writer, codec Codec) *Writer {
	return &Writer{w: w, codec: codec}
}

// Write encodes f and appends it to the stream.
func (w *Writer) Write(f *Frame) error {
	body, err := w.codec.Encode(f)
	if err != nil {
		return err
	}
	w.buf = protowire.AppendVarint(w.buf[:0], uint64(len(body)))
	w.buf = append(w.buf, body...)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", f.Tick, err)
	}
	return nil
}

// Reader reads frames written by a Writer using the same codec.
type Reader struct {
	r     *bufio.Reader
	codec Codec
	buf   []byte
}

// NewReader returns a Reader decoding frames with codec.
func NewReader(r io.Reader, codec Codec) *Reader {
	return &Reader{r: bufio.NewReader(r), codec: codec}
}

// Read returns the next frame, or io.EOF at a clean end of stream.
// A stream cut inside a record yields io.ErrUnexpectedEOF.
func (r *Reader) Read() (*Frame, error) {
	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	r.buf = r.buf[:size]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return r.codec.Decode(r.buf)
}
