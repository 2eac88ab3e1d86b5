package channelcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

func sampleBundle() *streaminfo.Bundle {
	b := streaminfo.NewBundle()
	_ = b.Put(streaminfo.New(0x100, streaminfo.CodecH264))
	_ = b.Put(streaminfo.New(0x101, streaminfo.CodecAC3))
	return b
}

func TestUID_StableAndMasked(t *testing.T) {
	a := UID("S19.2E-1-1-28106")
	b := UID("S19.2E-1-1-28106")
	assert.Equal(t, a, b)
	assert.Equal(t, uint32(0), a&0x80000000)
}

func TestUID_DifferentIdentitiesDiffer(t *testing.T) {
	assert.NotEqual(t, UID("channel-a"), UID("channel-b"))
}

func TestCache_PutGet_ReturnsClone(t *testing.T) {
	c := New()
	uid := UID("channel-a")
	c.Put(uid, sampleBundle())

	got, ok := c.Get(uid)
	require.True(t, ok)
	assert.Equal(t, 2, got.Len())

	// Mutating the returned clone must not affect the cached copy.
	got.Delete(0x100)
	again, ok := c.Get(uid)
	require.True(t, ok)
	assert.Equal(t, 2, again.Len())
}

func TestCache_Get_Missing(t *testing.T) {
	c := New()
	_, ok := c.Get(12345)
	assert.False(t, ok)
}

func TestCache_Put_IgnoresZeroUID(t *testing.T) {
	c := New()
	c.Put(0, sampleBundle())
	assert.Equal(t, 0, c.Len())
}

func TestCache_GC_DropsMissingChannels(t *testing.T) {
	c := New()
	a, b, cc := UID("a"), UID("b"), UID("c")
	c.Put(a, sampleBundle())
	c.Put(b, sampleBundle())
	c.Put(cc, sampleBundle())

	c.GC(func(uid uint32) bool { return uid == a || uid == cc })

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(b)
	assert.False(t, ok)
	_, ok = c.Get(a)
	assert.True(t, ok)
}
