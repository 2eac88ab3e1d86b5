package recording

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/crc32mpeg"
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// buildPAT constructs a minimal one-program PAT section (pointer_field
// included) associating serviceID with pmtPID, CRC computed for real.
func buildPAT(serviceID, pmtPID uint16) []byte {
	section := []byte{
		0x00,       // table_id
		0x80, 0x00, // section_syntax_indicator=1, section_length filled below
		0x00, 0x01, // transport_stream_id
		0xC1,                          // reserved + version(0) + current_next_indicator=1
		0x00,                          // section_number
		0x00,                          // last_section_number
		byte(serviceID >> 8), byte(serviceID),
		0xE0 | byte(pmtPID>>8&0x1F), byte(pmtPID),
	}
	sectionLength := len(section) - 3 + 4
	section[1] = 0x80 | byte(sectionLength>>8&0x0F)
	section[2] = byte(sectionLength)

	crc := crc32mpeg.Compute(section)
	section = append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	return append([]byte{0x00}, section...) // pointer_field
}

// buildPMT constructs a minimal PMT section (pointer_field included) naming
// one elementary stream.
func buildPMT(serviceID uint16, version byte, streamType byte, streamPID uint16) []byte {
	section := []byte{
		0x02,       // table_id
		0x80, 0x00, // section_syntax_indicator=1, section_length filled below
		byte(serviceID >> 8), byte(serviceID),
		0xC1 | version<<1, // reserved+version+current_next_indicator
		0x00,               // section_number
		0x00,               // last_section_number
		0xE0, 0x00,         // reserved+PCR_PID (unused by this filter)
		0xF0, 0x00, // reserved+program_info_length=0
		streamType,
		0xE0 | byte(streamPID>>8&0x1F), byte(streamPID),
		0xF0, 0x00, // reserved+ES_info_length=0
	}
	sectionLength := len(section) - 3 + 4
	section[1] = 0x80 | byte(sectionLength>>8&0x0F)
	section[2] = byte(sectionLength)

	crc := crc32mpeg.Compute(section)
	section = append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	return append([]byte{0x00}, section...) // pointer_field
}

// buildTSPacket assembles one full 188-byte TS packet carrying payload
// (padded with 0xFF to 184 bytes) with no adaptation field.
func buildTSPacket(pid uint16, pusi bool, payload []byte) []byte {
	buf := make([]byte, tspacket.Size)
	buf[0] = tspacket.SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 // AdaptationNone, continuity counter 0

	n := copy(buf[4:], payload)
	for i := 4 + n; i < tspacket.Size; i++ {
		buf[i] = 0xFF
	}
	return buf
}

// buildAdaptationOnlyPacket pads out a block slot with a payload-less
// packet, routed nowhere and skipped by both the PSI scan and the bundle.
func buildAdaptationOnlyPacket() []byte {
	buf := make([]byte, tspacket.Size)
	buf[0] = tspacket.SyncByte
	buf[1] = 0x1F
	buf[2] = 0xFF
	buf[3] = 0x20 // AdaptationOnly, continuity counter 0
	buf[4] = byte(tspacket.Size - 5)
	for i := 5; i < tspacket.Size; i++ {
		buf[i] = 0xFF
	}
	return buf
}

// mpeg2AudioFrame is a valid Layer II frame: 128 kbps, 44100 Hz, joint
// stereo, framesize 417 — the same fixture demux's own tests use.
func mpeg2AudioFrame() []byte {
	frame := []byte{0xFF, 0xFC, 0x80, 0x40}
	return append(frame, make([]byte, 417-4)...)
}

// splitIntoPackets chunks data into 184-byte TS payloads for pid, marking
// only the first chunk PUSI.
func splitIntoPackets(pid uint16, data []byte) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += 184 {
		end := i + 184
		if end > len(data) {
			end = len(data)
		}
		out = append(out, buildTSPacket(pid, i == 0, data[i:end]))
	}
	return out
}

// writeAudioOnlyBlock writes one 20-packet (3760-byte) block into path:
// a PAT (service 1 -> PMT PID 0x100), a PMT naming one MPEG2 audio stream
// at PID 0x201, the audio ES itself, then adaptation-only padding.
func writeAudioOnlyBlock(t *testing.T, path string) {
	t.Helper()

	var packets [][]byte
	packets = append(packets, buildTSPacket(0x00, true, buildPAT(1, 0x100)))
	packets = append(packets, buildTSPacket(0x100, true, buildPMT(1, 0, 0x03, 0x201)))
	packets = append(packets, splitIntoPackets(0x201, mpeg2AudioFrame())...)
	for len(packets) < packetsPerBlock {
		packets = append(packets, buildAdaptationOnlyPacket())
	}
	require.Len(t, packets, packetsPerBlock)

	var block []byte
	for _, p := range packets {
		block = append(block, p...)
	}
	require.Len(t, block, blockSize)
	require.NoError(t, os.WriteFile(path, block, 0o644))
}

func TestNewPlayer_NoSegments(t *testing.T) {
	_, err := NewPlayer(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestNewPlayer_LegacyFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(legacyFileNameForIndex(dir, 0), make([]byte, 10), 0o644))

	_, err := NewPlayer(dir)
	assert.ErrorIs(t, err, ErrLegacyFormat)
}

func TestPlayer_GetPacket_EmitsStreamChangeOnceBundleReady(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))

	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	ev, err := p.GetPacket()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventStreamChange, ev.Kind)
	require.NotNil(t, ev.Bundle)
	assert.Equal(t, 1, ev.Bundle.Len())
	assert.Equal(t, uint64(blockSize), ev.Position)
	assert.Equal(t, uint64(blockSize), ev.TotalLength)
}

func TestPlayer_GetPacket_EOFReturnsNil(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))

	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.GetPacket() // stream change
	require.NoError(t, err)

	ev, err := p.GetPacket() // position == totalLength now; no more blocks
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestPlayer_SendStreamPacket_GatesOnFirstIFrame(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	p.SendStreamPacket(demux.StreamPacket{PID: 0x200, FrameType: esparser.FrameP})
	assert.Empty(t, p.pending, "packets before the first I-frame are dropped")

	p.SendStreamPacket(demux.StreamPacket{PID: 0x200, FrameType: esparser.FrameI})
	require.Len(t, p.pending, 1)
	assert.True(t, p.firstKeyFrameSeen)

	p.SendStreamPacket(demux.StreamPacket{PID: 0x200, FrameType: esparser.FrameP})
	assert.Len(t, p.pending, 2, "packets after the first I-frame are kept")
}

func TestPlayer_RequestStreamChange_SetsPending(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	p.streamChangePending = false
	p.RequestStreamChange()
	assert.True(t, p.streamChangePending)
}

func TestPlayer_Seek_ResetsStateAndRearmsGate(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.GetPacket()
	require.NoError(t, err)
	p.firstKeyFrameSeen = true
	p.pending = append(p.pending, Event{Kind: EventPacket})

	ok, err := p.Seek(188 * 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(188*5), p.position)
	assert.False(t, p.sidKnown)
	assert.Nil(t, p.filter)
	assert.Nil(t, p.curBundle)
	assert.True(t, p.streamChangePending)
	assert.False(t, p.firstKeyFrameSeen)
	assert.Empty(t, p.pending)
}

func TestPlayer_Seek_RoundsDownToPacketBoundary(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	ok, err := p.Seek(188*3 + 50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(188*3), p.position)
}

func TestPlayer_Seek_PastEnd_ReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	ok, err := p.Seek(uint64(blockSize) + 1000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlayer_TotalLength(t *testing.T) {
	dir := t.TempDir()
	writeAudioOnlyBlock(t, filepath.Join(dir, "00001.ts"))
	p, err := NewPlayer(dir)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int64(blockSize), p.TotalLength())
}
