package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadWriterReader_RoundTrip(t *testing.T) {
	payload := NewPayloadWriter().
		String("deu").
		U8(7).
		U32(48000).
		S32(-12).
		U64(1 << 40).
		Double(1.77778).
		LengthPrefixedBytes([]byte{0xAA, 0xBB, 0xCC}).
		Bytes()

	r := NewPayloadReader(payload)

	lang, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "deu", lang)

	u8, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), u32)

	s32, err := r.S32()
	require.NoError(t, err)
	assert.Equal(t, int32(-12), s32)

	u64, err := r.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	d, err := r.Double()
	require.NoError(t, err)
	assert.InDelta(t, 1.77778, d, 0.00001)

	lp, err := r.LengthPrefixedBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, lp)

	assert.Zero(t, r.Remaining())
}

func TestPayloadReader_TruncatedPayload_ReturnsErrTruncated(t *testing.T) {
	r := NewPayloadReader([]byte{0x00, 0x01})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestPayloadReader_UnterminatedString_ReturnsErrTruncated(t *testing.T) {
	r := NewPayloadReader([]byte{'a', 'b', 'c'})
	_, err := r.String()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestPayloadWriter_LengthPrefixedBytes_TruncatesOversizedInput(t *testing.T) {
	big := make([]byte, 300)
	payload := NewPayloadWriter().LengthPrefixedBytes(big).Bytes()
	assert.Equal(t, byte(255), payload[0])
	assert.Len(t, payload, 256)
}
