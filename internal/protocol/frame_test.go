package protocol

import (
	"bytes"
	"compress/flate"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteResponse_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.NoCompression)
	require.NoError(t, w.WriteResponse(OpGetTime, 42, []byte("hello")))

	req, err := NewReader(&buf).ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, OpGetTime, req.Opcode)
	assert.Equal(t, uint32(42), req.RequestID)
	assert.Equal(t, []byte("hello"), req.Payload)
}

func TestWriter_WriteResponse_CompressesLargePayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.BestSpeed)
	payload := bytes.Repeat([]byte("A"), 4096)
	require.NoError(t, w.WriteResponse(OpGetTime, 1, payload))

	raw := buf.Bytes()
	require.GreaterOrEqual(t, len(raw), 4)
	channelWord := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
	assert.NotZero(t, channelWord&compressedFlag, "highly redundant payload should compress")

	req, err := NewReader(&buf).ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, payload, req.Payload)
}

func TestWriter_WriteResponse_SkipsCompressionBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.BestSpeed)
	require.NoError(t, w.WriteResponse(OpGetTime, 1, []byte("short")))

	raw := buf.Bytes()
	channelWord := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
	assert.Zero(t, channelWord&compressedFlag)
}

func TestWriter_WriteStream_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.NoCompression)
	require.NoError(t, w.WriteStream(StreamFrame{
		Opcode:   OpStreamMuxPkt,
		StreamID: PackStreamID(0x101, 1),
		Duration: 3600,
		PTS:      900000,
		DTS:      900000,
		Payload:  []byte{1, 2, 3, 4},
	}))

	f, err := NewReader(&buf).ReadStream()
	require.NoError(t, err)
	assert.Equal(t, OpStreamMuxPkt, f.Opcode)
	assert.Equal(t, uint32(3600), f.Duration)
	assert.Equal(t, int64(900000), f.PTS)
	assert.Equal(t, int64(900000), f.DTS)
	assert.Equal(t, []byte{1, 2, 3, 4}, f.Payload)

	pid, frameType := UnpackStreamID(f.StreamID)
	assert.Equal(t, uint16(0x101), pid)
	assert.Equal(t, uint16(1), frameType)
}

func TestReader_ReadRequest_RejectsStreamChannel(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, flate.NoCompression)
	require.NoError(t, w.WriteStream(StreamFrame{Opcode: OpStreamDetach, PTS: NoPTS, DTS: NoPTS}))

	_, err := NewReader(&buf).ReadRequest()
	assert.Error(t, err)
}

func TestPackUnpackStreamID(t *testing.T) {
	id := PackStreamID(0x1FFF, 3)
	pid, ft := UnpackStreamID(id)
	assert.Equal(t, uint16(0x1FFF), pid)
	assert.Equal(t, uint16(3), ft)
}

func TestEncodeStream_MatchesWriteStream(t *testing.T) {
	f := StreamFrame{
		Opcode:   OpStreamMuxPkt,
		StreamID: PackStreamID(0x101, 1),
		Duration: 3600,
		PTS:      900000,
		DTS:      900000,
		Payload:  []byte{1, 2, 3, 4},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, flate.NoCompression)
	require.NoError(t, w.WriteStream(f))

	assert.Equal(t, buf.Bytes(), EncodeStream(f, flate.NoCompression))
}

func TestWriter_WriteRaw_WritesBytesVerbatim(t *testing.T) {
	f := StreamFrame{Opcode: OpStreamDetach, PTS: NoPTS, DTS: NoPTS}
	encoded := EncodeStream(f, flate.NoCompression)

	var buf bytes.Buffer
	w := NewWriter(&buf, flate.NoCompression)
	require.NoError(t, w.WriteRaw(encoded))

	assert.Equal(t, encoded, buf.Bytes())
}

func TestErrorKind_Code(t *testing.T) {
	assert.Equal(t, ResponseDataUnknown, KindDataUnknown.Code())
	assert.Equal(t, ResponseOK, KindOK.Code())
}

func TestError_Unwrap(t *testing.T) {
	inner := assert.AnError
	e := &Error{Kind: KindError, Err: inner}
	assert.ErrorIs(t, e, inner)
	assert.Contains(t, e.Error(), "ERROR")
}
