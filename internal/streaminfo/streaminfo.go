// Package streaminfo holds the per-elementary-stream metadata model shared
// across the demuxer, PAT/PMT filter, channel cache, and wire protocol:
// StreamInfo (one elementary stream), Bundle (one program's stream set), and
// their binary on-disk/on-wire encoding.
package streaminfo

// Content classifies a stream by what it carries.
type Content int

const (
	ContentNone Content = iota
	ContentVideo
	ContentAudio
	ContentSubtitle
	ContentTeletext
)

func (c Content) String() string {
	switch c {
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	case ContentSubtitle:
		return "subtitle"
	case ContentTeletext:
		return "teletext"
	default:
		return "none"
	}
}

// CodecType identifies the codec/container of one elementary stream.
type CodecType int

const (
	CodecNone CodecType = iota
	CodecMPEG2Audio
	CodecAC3
	CodecEAC3
	CodecAAC
	CodecLATM
	CodecMPEG2Video
	CodecH264
	CodecH265
	CodecDVBSub
	CodecTeletext
)

func (t CodecType) String() string {
	switch t {
	case CodecMPEG2Audio:
		return "MPEG2AUDIO"
	case CodecAC3:
		return "AC3"
	case CodecEAC3:
		return "EAC3"
	case CodecAAC:
		return "AAC"
	case CodecLATM:
		return "LATM"
	case CodecMPEG2Video:
		return "MPEG2VIDEO"
	case CodecH264:
		return "H264"
	case CodecH265:
		return "H265"
	case CodecDVBSub:
		return "DVBSUB"
	case CodecTeletext:
		return "TELETEXT"
	default:
		return "NONE"
	}
}

// ContentOf returns the stream content class implied by a codec type.
func ContentOf(t CodecType) Content {
	switch t {
	case CodecMPEG2Video, CodecH264, CodecH265:
		return ContentVideo
	case CodecMPEG2Audio, CodecAC3, CodecEAC3, CodecAAC, CodecLATM:
		return ContentAudio
	case CodecDVBSub:
		return ContentSubtitle
	case CodecTeletext:
		return ContentTeletext
	default:
		return ContentNone
	}
}

// maxDecoderBytes bounds the SPS/PPS/VPS decoder-configuration byte slices
// per spec §3.
const maxDecoderBytes = 128

// VideoInfo holds video-specific stream parameters.
type VideoInfo struct {
	FPSScale      int
	FPSRate       int
	Width         int
	Height        int
	DisplayAspect float64
	SPS           []byte
	PPS           []byte
	VPS           []byte
}

// AudioInfo holds audio-specific stream parameters.
type AudioInfo struct {
	Channels      int
	SampleRate    int
	BitRate       int
	BitsPerSample int
	BlockAlign    int
}

// SubtitleInfo holds DVB subtitle stream parameters.
type SubtitleInfo struct {
	SubtitlingType   byte
	CompositionPageID uint16
	AncillaryPageID   uint16
}

// StreamInfo is the metadata for one elementary stream within one program.
type StreamInfo struct {
	PID       uint16
	Content   Content
	CodecType CodecType
	Language  string // ISO 639 3-letter code, empty if undefined
	AudioType int

	Video    VideoInfo
	Audio    AudioInfo
	Subtitle SubtitleInfo

	Parsed bool
}

// New creates a StreamInfo for pid with the content class derived from
// codec.
func New(pid uint16, codec CodecType) StreamInfo {
	return StreamInfo{
		PID:       pid,
		Content:   ContentOf(codec),
		CodecType: codec,
	}
}

// acCompatible reports whether two codec types are AC3/EAC3-compatible for
// the purposes of IsMetaOf (spec §3: "AC3<->EAC3 considered compatible").
func acCompatible(a, b CodecType) bool {
	if a == b {
		return true
	}
	isAC := func(t CodecType) bool { return t == CodecAC3 || t == CodecEAC3 }
	return isAC(a) && isAC(b)
}

// IsMetaOf compares identity only: same PID and compatible codec type. It
// does not compare any of the per-codec parameter fields, so a re-scan that
// only refines parameters is recognized as "the same stream", not a new one.
func (s StreamInfo) IsMetaOf(other StreamInfo) bool {
	return s.PID == other.PID && acCompatible(s.CodecType, other.CodecType)
}

// Equal compares all semantically relevant fields.
func (s StreamInfo) Equal(other StreamInfo) bool {
	if s.PID != other.PID || s.Content != other.Content || s.CodecType != other.CodecType {
		return false
	}
	if s.Language != other.Language || s.AudioType != other.AudioType {
		return false
	}
	if s.Parsed != other.Parsed {
		return false
	}
	switch s.Content {
	case ContentVideo:
		return s.Video.equal(other.Video)
	case ContentAudio:
		return s.Audio == other.Audio
	case ContentSubtitle:
		return s.Subtitle == other.Subtitle
	default:
		return true
	}
}

func (v VideoInfo) equal(o VideoInfo) bool {
	return v.FPSScale == o.FPSScale && v.FPSRate == o.FPSRate &&
		v.Width == o.Width && v.Height == o.Height &&
		v.DisplayAspect == o.DisplayAspect &&
		bytesEqual(v.SPS, o.SPS) && bytesEqual(v.PPS, o.PPS) && bytesEqual(v.VPS, o.VPS)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetVideoInfo applies a video-parameter update following §4.2's edge-case
// rules: updates below sanity thresholds are ignored, and updates that match
// the stored values are ignored (no spurious "changed"). Returns true if the
// stored info actually changed.
func (s *StreamInfo) SetVideoInfo(v VideoInfo) bool {
	if v.Width < 320 || v.Height < 240 || v.DisplayAspect <= 0 || v.FPSScale <= 0 || v.FPSRate <= 0 {
		return false
	}
	if s.Video.equal(v) {
		return false
	}
	s.Video = v
	return true
}

// SetAudioInfo applies an audio-parameter update, ignoring no-op updates.
// Returns true if the stored info actually changed.
func (s *StreamInfo) SetAudioInfo(a AudioInfo) bool {
	if s.Audio == a {
		return false
	}
	s.Audio = a
	return true
}

// SetLanguage sets the language/audio-type pair.
func (s *StreamInfo) SetLanguage(lang string, audioType int) bool {
	if s.Language == lang && s.AudioType == audioType {
		return false
	}
	s.Language = lang
	s.AudioType = audioType
	return true
}

// SetSubtitling sets DVB subtitle parameters.
func (s *StreamInfo) SetSubtitling(sub SubtitleInfo) bool {
	if s.Subtitle == sub {
		return false
	}
	s.Subtitle = sub
	return true
}

// ClampDecoderBytes truncates a decoder-configuration byte slice (SPS/PPS/VPS)
// to maxDecoderBytes, matching the ≤128-byte bound in spec §3.
func ClampDecoderBytes(b []byte) []byte {
	if len(b) > maxDecoderBytes {
		return b[:maxDecoderBytes]
	}
	return b
}
