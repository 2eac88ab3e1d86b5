package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPacket(pid uint16, pusi bool, afc byte, payload []byte) []byte {
	buf := make([]byte, Size)
	buf[0] = SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 | afc<<4 // continuity counter 0
	copy(buf[4:], payload)
	return buf
}

func TestParse_RejectsBadSync(t *testing.T) {
	buf := make([]byte, Size)
	_, err := Parse(buf)
	assert.Error(t, err)
}

func TestParse_RejectsWrongLength(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	assert.Error(t, err)
}

func TestParse_PayloadOnly(t *testing.T) {
	payload := make([]byte, Size-4)
	payload[0] = 0xAB
	buf := buildPacket(0x100, true, AdaptationNone, payload)

	p, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x100), p.PID)
	assert.True(t, p.PayloadUnitStartIndicator)
	require.Len(t, p.Payload, Size-4)
	assert.Equal(t, byte(0xAB), p.Payload[0])
}

func TestParse_AdaptationAndPayload(t *testing.T) {
	buf := make([]byte, Size)
	buf[0] = SyncByte
	buf[1] = 0x00
	buf[2] = 0x00
	buf[3] = 0x10 | AdaptationPayload<<4
	buf[4] = 10   // adaptation field length
	buf[5] = 0x40 // random access indicator
	buf[4+1+10] = 0xCD

	p, err := Parse(buf)
	require.NoError(t, err)
	assert.True(t, p.RandomAccessIndicator)
	require.NotEmpty(t, p.Payload)
	assert.Equal(t, byte(0xCD), p.Payload[0])
}

func TestParse_AdaptationOnly_NoPayload(t *testing.T) {
	buf := make([]byte, Size)
	buf[0] = SyncByte
	buf[3] = 0x00 | AdaptationOnly<<4
	buf[4] = byte(Size - 5)

	p, err := Parse(buf)
	require.NoError(t, err)
	assert.Nil(t, p.Payload)
}

func TestPacket_Usable(t *testing.T) {
	tests := []struct {
		name    string
		pkt     Packet
		usable  bool
	}{
		{"clean with payload", Packet{Payload: []byte{1}}, true},
		{"transport error", Packet{TransportErrorIndicator: true, Payload: []byte{1}}, false},
		{"scrambled", Packet{TransportScramblingCtrl: 1, Payload: []byte{1}}, false},
		{"no payload", Packet{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, tt.pkt.Usable())
		})
	}
}

func TestResyncOffset(t *testing.T) {
	buf := make([]byte, Size*3)
	buf[5] = SyncByte
	buf[5+Size] = SyncByte
	buf[5+2*Size] = SyncByte

	off := ResyncOffset(buf, 0)
	assert.Equal(t, 5, off)
}

func TestResyncOffset_NotFound(t *testing.T) {
	buf := make([]byte, Size)
	off := ResyncOffset(buf, 0)
	assert.Equal(t, -1, off)
}
