// Package esparser implements byte-aligned elementary-stream header parsers:
// one file per codec family, each turning a chunk of raw payload bytes into
// the handful of stream parameters the wire protocol and channel cache care
// about (frame size, sample rate, channel count, resolution, aspect ratio,
// decoder-configuration blobs). None of these parsers decode media samples;
// they only read the small fixed-format headers standing in front of them.
package esparser

// FrameType classifies a coded video frame by prediction type.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameI
	FrameP
	FrameB
	FrameD
)

func (f FrameType) String() string {
	switch f {
	case FrameI:
		return "I"
	case FrameP:
		return "P"
	case FrameB:
		return "B"
	case FrameD:
		return "D"
	default:
		return "?"
	}
}
