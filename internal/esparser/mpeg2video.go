package esparser

import "github.com/halvarsson/xvdrd/internal/tspacket"

const (
	mpeg2SequenceStartCode = 0x000001B3
	mpeg2PictureStartCode  = 0x00000100
)

var mpeg2FrameDurations = [16]int{
	0, 3753, 3750, 3600, 3003, 3000, 1800, 1501, 1500, 0, 0, 0, 0, 0, 0, 0,
}

var mpeg2FrameRates = [16][2]int{
	{0, 0}, {24000, 1001}, {24, 1}, {25, 1}, {30000, 1001}, {30, 1}, {50, 1}, {60000, 1001}, {60, 1},
	{0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {0, 0},
}

var mpeg2AspectRatios = [16]float64{
	0, 1.0, 1.333333333, 1.777777778, 2.21, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// MPEG2SequenceHeader holds the fields extracted from an MPEG-2 video
// sequence_header().
type MPEG2SequenceHeader struct {
	Width         int
	Height        int
	DisplayAspect float64
	FPSScale      int
	FPSRate       int
	Duration      int // 90kHz ticks per frame
}

// FindStartCode scans buf for a 4-byte Annex-B start code (masked) beginning
// at or after offset, returning its index or -1 if not found.
func FindStartCode(buf []byte, offset int, code uint32, mask uint32) int {
	for i := offset; i+4 <= len(buf); i++ {
		v := uint32(buf[i])<<24 | uint32(buf[i+1])<<16 | uint32(buf[i+2])<<8 | uint32(buf[i+3])
		if v&mask == code&mask {
			return i
		}
	}
	return -1
}

// ParseMPEG2SequenceHeader decodes the fixed-size prefix of a sequence_header()
// that follows a 0x000001B3 start code.
func ParseMPEG2SequenceHeader(buf []byte) (MPEG2SequenceHeader, error) {
	var h MPEG2SequenceHeader
	if len(buf) < 4 {
		return h, ErrShortHeader
	}

	bs := tspacket.NewBitReader(buf)
	widthU, _ := bs.ReadBits(12)
	heightU, _ := bs.ReadBits(12)
	h.Width = int(widthU)
	h.Height = int(heightU)

	aspectIdxU, _ := bs.ReadBits(4)
	h.DisplayAspect = mpeg2AspectRatios[aspectIdxU]

	rateIdxU, _ := bs.ReadBits(4)
	rateIdx := int(rateIdxU)
	h.Duration = mpeg2FrameDurations[rateIdx]
	h.FPSRate = mpeg2FrameRates[rateIdx][0]
	h.FPSScale = mpeg2FrameRates[rateIdx][1]

	return h, nil
}

// mpeg2PictureFrameType reads the picture_coding_type field (3 bits, right
// after a picture_start_code and a 10-bit temporal_reference) and converts
// it to FrameType.
func mpeg2PictureFrameType(picture []byte) FrameType {
	if len(picture) < 6 {
		return FrameUnknown
	}
	bs := tspacket.NewBitReader(picture)
	bs.ReadBits(32) // picture_start_code
	bs.ReadBits(10) // temporal_reference
	codeU, _ := bs.ReadBits(3)
	switch codeU {
	case 1:
		return FrameI
	case 2:
		return FrameP
	case 3:
		return FrameB
	case 4:
		return FrameD
	default:
		return FrameUnknown
	}
}

// SplitPictures divides an MPEG-2 video PES payload into one slice per
// picture, each tagged with its FrameType, by locating successive
// picture_start_code boundaries.
func SplitPictures(data []byte) ([][]byte, []FrameType) {
	var pictures [][]byte
	var types []FrameType

	s := FindStartCode(data, 0, mpeg2PictureStartCode, 0xFFFFFFFF)
	if s < 0 {
		return nil, nil
	}
	for {
		e := FindStartCode(data, s+4, mpeg2PictureStartCode, 0xFFFFFFFF)
		var chunk []byte
		if e < 0 {
			chunk = data[s:]
		} else {
			chunk = data[s:e]
		}
		pictures = append(pictures, chunk)
		types = append(types, mpeg2PictureFrameType(chunk))
		if e < 0 {
			break
		}
		s = e
	}
	return pictures, types
}
