package streaminfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_Put_RejectsZeroPID(t *testing.T) {
	b := NewBundle()
	err := b.Put(New(0, CodecH264))
	assert.ErrorIs(t, err, ErrZeroPID)
}

func TestBundle_Put_RejectsNoneType(t *testing.T) {
	b := NewBundle()
	err := b.Put(StreamInfo{PID: 0x100, CodecType: CodecNone})
	assert.ErrorIs(t, err, ErrNoneType)
}

func TestBundle_Put_RejectsSecondVideo(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Put(New(0x100, CodecH264)))
	err := b.Put(New(0x101, CodecMPEG2Video))
	assert.ErrorIs(t, err, ErrVideoExists)
}

func TestBundle_Put_AllowsReplacingSameVideoPID(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Put(New(0x100, CodecH264)))
	err := b.Put(New(0x100, CodecH265))
	assert.NoError(t, err)
	s, ok := b.Get(0x100)
	require.True(t, ok)
	assert.Equal(t, CodecH265, s.CodecType)
}

func TestBundle_GetDeleteLen(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Put(New(0x101, CodecAC3)))
	assert.Equal(t, 1, b.Len())

	_, ok := b.Get(0x101)
	assert.True(t, ok)

	b.Delete(0x101)
	assert.Equal(t, 0, b.Len())
	_, ok = b.Get(0x101)
	assert.False(t, ok)
}

func TestBundle_IsParsed(t *testing.T) {
	b := NewBundle()
	assert.False(t, b.IsParsed(), "empty bundle is never parsed")

	s := New(0x101, CodecAC3)
	require.NoError(t, b.Put(s))
	assert.False(t, b.IsParsed())

	s.Parsed = true
	require.NoError(t, b.Put(s))
	assert.True(t, b.IsParsed())
}

func TestBundle_Equal(t *testing.T) {
	a := NewBundle()
	require.NoError(t, a.Put(New(0x100, CodecH264)))
	b := a.Clone()
	assert.True(t, a.Equal(b))

	s, _ := b.Get(0x100)
	s.Video.Width = 1920
	s.Video.Height = 1080
	s.Video.DisplayAspect = 1.778
	s.Video.FPSScale = 1
	s.Video.FPSRate = 25
	require.NoError(t, b.Put(s))
	assert.False(t, a.Equal(b))
}

func TestBundle_IsMetaOf(t *testing.T) {
	a := NewBundle()
	require.NoError(t, a.Put(New(0x101, CodecAC3)))
	b := NewBundle()
	require.NoError(t, b.Put(New(0x101, CodecEAC3)))
	assert.True(t, a.IsMetaOf(b))

	c := NewBundle()
	require.NoError(t, c.Put(New(0x101, CodecAAC)))
	assert.False(t, a.IsMetaOf(c))
}

func TestBundle_Clone_IsDeep(t *testing.T) {
	a := NewBundle()
	s := New(0x100, CodecH264)
	s.Video.SPS = []byte{1, 2, 3}
	require.NoError(t, a.Put(s))

	b := a.Clone()
	bs, _ := b.Get(0x100)
	bs.Video.SPS[0] = 0xFF

	as, _ := a.Get(0x100)
	assert.Equal(t, byte(1), as.Video.SPS[0], "clone must not alias backing arrays")
}

func TestBundle_PIDs(t *testing.T) {
	b := NewBundle()
	require.NoError(t, b.Put(New(0x100, CodecH264)))
	require.NoError(t, b.Put(New(0x101, CodecAC3)))
	pids := b.PIDs()
	assert.Len(t, pids, 2)
	assert.Contains(t, pids, uint16(0x100))
	assert.Contains(t, pids, uint16(0x101))
}
