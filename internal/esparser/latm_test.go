package esparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLATMFrame(sampleRateIndex, channelConfig int) []byte {
	p := &bitPacker{buf: make([]byte, 3)} // LOAS header placeholder, filled below
	p.pos = 24
	p.put(0, 1) // useSameStreamMux = 0 -> read StreamMuxConfig
	p.put(0, 1) // audioMuxVersion = 0
	p.put(1, 1) // allStreamSameTimeFraming
	p.put(0, 6) // numSubFrames
	p.put(0, 4) // numProgram
	p.put(0, 3) // numLayer
	// AudioSpecificConfig
	p.put(2, 5) // audioObjectType = AAC LC
	p.put(uint(sampleRateIndex), 4)
	p.put(uint(channelConfig), 4)
	p.put(0, 1) // framelen_flag
	p.put(0, 1) // depends_on_coder
	p.put(0, 1) // ext_flag
	// frameLengthType + its payload
	p.put(0, 3) // frameLengthType = 0
	p.put(0, 8) // latm buffer fullness byte
	p.put(0, 1) // otherDataPresent
	p.put(0, 1) // crcPresent

	muxLen := len(p.buf) - 3
	p.buf[0] = latmSyncByte0
	p.buf[1] = 0xE0 | byte(muxLen>>8&0x1F)
	p.buf[2] = byte(muxLen)
	return p.buf
}

func TestParseLATMAudioMuxElement(t *testing.T) {
	frame := buildLATMFrame(3, 2) // 48000Hz, stereo
	cfg := ParseLATMAudioMuxElement(frame, LATMConfig{})
	require.True(t, cfg.Configured)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 2, cfg.ChannelConfig)
}

func TestFindLATMFrame(t *testing.T) {
	frame := buildLATMFrame(3, 2)
	buf := append([]byte{0xAA, 0xBB}, frame...)

	start, length := FindLATMFrame(buf, 0)
	assert.Equal(t, 2, start)
	assert.Equal(t, len(frame), length)
}

func TestFindLATMFrame_NotFound(t *testing.T) {
	start, _ := FindLATMFrame([]byte{0x00, 0x01, 0x02}, 0)
	assert.Equal(t, -1, start)
}
