package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTimestamp(prefix byte, ts int64) []byte {
	b := make([]byte, 5)
	b[0] = prefix<<4 | byte(ts>>29&0x0E) | 0x01
	b[1] = byte(ts >> 22)
	b[2] = byte(ts>>14&0xFE) | 0x01
	b[3] = byte(ts >> 7)
	b[4] = byte(ts<<1&0xFE) | 0x01
	return b
}

func TestParsePESHeader_PTSOnly(t *testing.T) {
	pts := int64(123456789) & 0x1FFFFFFFF
	payload := []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00}
	payload = append(payload, 0x80, 0x80, 0x05)
	payload = append(payload, encodeTimestamp(0x02, pts)...)
	payload = append(payload, 0xFF, 0xFF) // ES data

	h, err := ParsePESHeader(payload)
	require.NoError(t, err)
	assert.True(t, h.HasPTS)
	assert.False(t, h.HasDTS)
	assert.Equal(t, pts, h.PTS)
	assert.Equal(t, pts, h.DTS)
	assert.Equal(t, 14, h.HeaderLength)
}

func TestParsePESHeader_PTSAndDTS(t *testing.T) {
	pts := int64(5_000_000)
	dts := int64(4_960_000)
	payload := []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00}
	payload = append(payload, 0x80, 0xC0, 0x0A)
	payload = append(payload, encodeTimestamp(0x03, pts)...)
	payload = append(payload, encodeTimestamp(0x01, dts)...)

	h, err := ParsePESHeader(payload)
	require.NoError(t, err)
	assert.True(t, h.HasPTS)
	assert.True(t, h.HasDTS)
	assert.Equal(t, pts, h.PTS)
	assert.Equal(t, dts, h.DTS)
}

func TestParsePESHeader_NoOptionalHeader(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x01, 0xBE, 0x00, 0x04, 1, 2, 3, 4}
	h, err := ParsePESHeader(payload)
	require.NoError(t, err)
	assert.False(t, h.HasPTS)
	assert.Equal(t, 6, h.HeaderLength)
}

func TestParsePESHeader_RejectsBadStartCode(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x02, 0xE0, 0x00, 0x00}
	_, err := ParsePESHeader(payload)
	assert.Error(t, err)
}

func TestParsePESHeader_RejectsShort(t *testing.T) {
	_, err := ParsePESHeader([]byte{0x00, 0x00, 0x01})
	assert.Error(t, err)
}

func TestPtsAdd_Wraps(t *testing.T) {
	const max33 = int64(0x1FFFFFFFF)
	got := PtsAdd(max33, 10)
	assert.Equal(t, int64(9), got)
}

func TestMonotonicUpdate(t *testing.T) {
	assert.Equal(t, int64(100), MonotonicUpdate(NoPTS, 100))
	assert.Equal(t, int64(200), MonotonicUpdate(100, 200))
	assert.Equal(t, int64(100), MonotonicUpdate(100, 50))

	const max33 = int64(0x1FFFFFFFF)
	// wrap forward: current near top of range, next small -> accepted as wrap
	got := MonotonicUpdate(max33-5, 10)
	assert.Equal(t, int64(10), got)
}
