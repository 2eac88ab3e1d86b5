package esparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMPEG2SequenceHeader(width, height, aspectIdx, rateIdx int) []byte {
	p := &bitPacker{buf: make([]byte, 0, 4)}
	p.put(uint(width), 12)
	p.put(uint(height), 12)
	p.put(uint(aspectIdx), 4)
	p.put(uint(rateIdx), 4)
	return p.buf
}

func TestParseMPEG2SequenceHeader(t *testing.T) {
	buf := buildMPEG2SequenceHeader(720, 576, 3, 3) // DAR 16:9-ish, 25fps
	h, err := ParseMPEG2SequenceHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, 720, h.Width)
	assert.Equal(t, 576, h.Height)
	assert.Equal(t, 25, h.FPSRate)
	assert.Equal(t, 1, h.FPSScale)
	assert.InDelta(t, 1.777777778, h.DisplayAspect, 0.0001)
}

func TestParseMPEG2SequenceHeader_RejectsShort(t *testing.T) {
	_, err := ParseMPEG2SequenceHeader([]byte{0x00, 0x00})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestFindStartCode(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x01, 0xB3, 0xAB, 0x00, 0x00, 0x01, 0x00, 0xCD}
	off := FindStartCode(buf, 0, mpeg2SequenceStartCode, 0xFFFFFFFF)
	assert.Equal(t, 0, off)

	off = FindStartCode(buf, 0, mpeg2PictureStartCode, 0xFFFFFFFF)
	assert.Equal(t, 5, off)

	off = FindStartCode(buf, 0, 0x12345678, 0xFFFFFFFF)
	assert.Equal(t, -1, off)
}

func buildMPEG2Picture(frameType int) []byte {
	p := &bitPacker{buf: make([]byte, 0, 6)}
	p.put(mpeg2PictureStartCode, 32)
	p.put(0, 10) // temporal_reference
	p.put(uint(frameType), 3)
	for len(p.buf) < 6 {
		p.buf = append(p.buf, 0)
	}
	return p.buf
}

func TestSplitPictures(t *testing.T) {
	pic1 := buildMPEG2Picture(1) // I
	pic2 := buildMPEG2Picture(2) // P
	data := append(append([]byte{}, pic1...), pic2...)

	pics, types := SplitPictures(data)
	require.Len(t, pics, 2)
	assert.Equal(t, FrameI, types[0])
	assert.Equal(t, FrameP, types[1])
}
