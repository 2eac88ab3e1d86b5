package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadWriter builds one request/response or stream payload body,
// mirroring cResponsePacket's add_String/add_U32/add_U8/add_S32/add_U64/
// add_double append methods.
type PayloadWriter struct {
	buf bytes.Buffer
}

// NewPayloadWriter returns an empty PayloadWriter.
func NewPayloadWriter() *PayloadWriter {
	return &PayloadWriter{}
}

// String appends a NUL-terminated string.
func (w *PayloadWriter) String(s string) *PayloadWriter {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return w
}

// U8 appends one byte.
func (w *PayloadWriter) U8(v uint8) *PayloadWriter {
	w.buf.WriteByte(v)
	return w
}

// U32 appends a big-endian uint32.
func (w *PayloadWriter) U32(v uint32) *PayloadWriter {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

// S32 appends a big-endian int32.
func (w *PayloadWriter) S32(v int32) *PayloadWriter {
	return w.U32(uint32(v))
}

// U64 appends a big-endian uint64.
func (w *PayloadWriter) U64(v uint64) *PayloadWriter {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

// S64 appends a big-endian int64.
func (w *PayloadWriter) S64(v int64) *PayloadWriter {
	return w.U64(uint64(v))
}

// Double appends a big-endian IEEE-754 double, bit-reinterpreted the way
// add_double bitcasts into a uint64 before byte-swapping.
func (w *PayloadWriter) Double(v float64) *PayloadWriter {
	return w.U64(math.Float64bits(v))
}

// Raw appends raw bytes, uninterpreted.
func (w *PayloadWriter) Raw(b []byte) *PayloadWriter {
	w.buf.Write(b)
	return w
}

// LengthPrefixedBytes appends a uint8 length followed by up to 255 bytes of
// b, truncating silently if b is longer — used for SPS/PPS/VPS fields in
// the STREAM_CHANGE video payload.
func (w *PayloadWriter) LengthPrefixedBytes(b []byte) *PayloadWriter {
	if len(b) > math.MaxUint8 {
		b = b[:math.MaxUint8]
	}
	w.U8(uint8(len(b)))
	w.buf.Write(b)
	return w
}

// Bytes returns the accumulated payload.
func (w *PayloadWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// PayloadReader parses a request or stream payload body in order, mirroring
// the add_* writer methods above.
type PayloadReader struct {
	data []byte
	pos  int
}

// NewPayloadReader wraps data for sequential field reads.
func NewPayloadReader(data []byte) *PayloadReader {
	return &PayloadReader{data: data}
}

// ErrTruncated is returned by any PayloadReader method that runs past the
// end of the payload.
var ErrTruncated = fmt.Errorf("protocol: payload truncated")

func (r *PayloadReader) require(n int) error {
	if r.pos+n > len(r.data) {
		return ErrTruncated
	}
	return nil
}

// String reads one NUL-terminated string.
func (r *PayloadReader) String() (string, error) {
	end := bytes.IndexByte(r.data[r.pos:], 0)
	if end < 0 {
		return "", ErrTruncated
	}
	s := string(r.data[r.pos : r.pos+end])
	r.pos += end + 1
	return s, nil
}

// U8 reads one byte.
func (r *PayloadReader) U8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *PayloadReader) U32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// S32 reads a big-endian int32.
func (r *PayloadReader) S32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// U64 reads a big-endian uint64.
func (r *PayloadReader) U64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// S64 reads a big-endian int64.
func (r *PayloadReader) S64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// Double reads a big-endian IEEE-754 double.
func (r *PayloadReader) Double() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Bytes reads n raw bytes.
func (r *PayloadReader) Bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// LengthPrefixedBytes reads a uint8 length followed by that many bytes.
func (r *PayloadReader) LengthPrefixedBytes() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// Remaining reports how many unread bytes remain.
func (r *PayloadReader) Remaining() int {
	return len(r.data) - r.pos
}
