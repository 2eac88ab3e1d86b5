package streaminfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal_Video(t *testing.T) {
	s := New(0x100, CodecH264)
	s.Video = VideoInfo{
		FPSScale: 1, FPSRate: 25, Width: 1920, Height: 1080,
		DisplayAspect: 1.778,
		SPS:           []byte{0x67, 0x42, 0x00, 0x1F},
		PPS:           []byte{0x68, 0xCE},
	}
	s.Parsed = true

	data := Marshal(s)
	got, n, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, s.Equal(got))
	assert.Equal(t, s.Video.SPS, got.Video.SPS)
}

func TestMarshalUnmarshal_Audio(t *testing.T) {
	s := New(0x101, CodecAC3)
	s.Audio = AudioInfo{Channels: 6, SampleRate: 48000, BitRate: 384000}
	s.SetLanguage("eng", 0)

	data := Marshal(s)
	got, _, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
	assert.Equal(t, "eng", got.Language)
}

func TestMarshalUnmarshal_Subtitle(t *testing.T) {
	s := New(0x102, CodecDVBSub)
	s.Subtitle = SubtitleInfo{SubtitlingType: 0x10, CompositionPageID: 1, AncillaryPageID: 1}

	data := Marshal(s)
	got, _, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
}

func TestUnmarshal_RejectsBadMagic(t *testing.T) {
	data := Marshal(New(0x100, CodecH264))
	data[0] = 'X'
	data[1] = 'Y'
	_, _, err := Unmarshal(data)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestUnmarshal_RejectsTruncated(t *testing.T) {
	_, _, err := Unmarshal([]byte{'X', 'V'})
	assert.Error(t, err)
}

func TestMarshal_ClampsOversizedDecoderBytes(t *testing.T) {
	s := New(0x100, CodecH264)
	s.Video.SPS = make([]byte, 200)

	data := Marshal(s)
	got, _, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Len(t, got.Video.SPS, maxDecoderBytes)
}
