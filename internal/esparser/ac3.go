package esparser

import (
	"fmt"

	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// AC3HeaderSize is the number of bytes needed to decode an AC-3 frame header.
const AC3HeaderSize = 7

const (
	ac3ChanModeDualMono = 0
	ac3ChanModeMono     = 1
	ac3ChanModeStereo   = 2
)

var ac3SampleRateTable = [3]int{48000, 44100, 32000}

var ac3BitrateTable = [19]int{
	32, 40, 48, 56, 64, 80, 96, 112, 128,
	160, 192, 224, 256, 320, 384, 448, 512, 576, 640,
}

var ac3ChannelsTable = [8]int{2, 1, 2, 3, 3, 4, 4, 5}

var ac3FrameSizeTable = [38][3]int{
	{64, 69, 96}, {64, 70, 96}, {80, 87, 120}, {80, 88, 120},
	{96, 104, 144}, {96, 105, 144}, {112, 121, 168}, {112, 122, 168},
	{128, 139, 192}, {128, 140, 192}, {160, 174, 240}, {160, 175, 240},
	{192, 208, 288}, {192, 209, 288}, {224, 243, 336}, {224, 244, 336},
	{256, 278, 384}, {256, 279, 384}, {320, 348, 480}, {320, 349, 480},
	{384, 417, 576}, {384, 418, 576}, {448, 487, 672}, {448, 488, 672},
	{512, 557, 768}, {512, 558, 768}, {640, 696, 960}, {640, 697, 960},
	{768, 835, 1152}, {768, 836, 1152}, {896, 975, 1344}, {896, 976, 1344},
	{1024, 1114, 1536}, {1024, 1115, 1536}, {1152, 1253, 1728}, {1152, 1254, 1728},
	{1280, 1393, 1920}, {1280, 1394, 1920},
}

// AC3Frame holds the fields extracted from one AC-3 (ATSC A/52) frame header.
type AC3Frame struct {
	Channels   int
	SampleRate int
	BitRate    int
	FrameSize  int
	Duration   int // 90kHz ticks
}

// ParseAC3 decodes an AC-3 frame header.
func ParseAC3(buf []byte) (AC3Frame, error) {
	var f AC3Frame
	if len(buf) < AC3HeaderSize {
		return f, ErrShortHeader
	}

	bs := tspacket.NewBitReader(buf)
	sync, _ := bs.ReadBits(16)
	if sync != 0x0B77 {
		return f, ErrBadSync
	}
	bs.ReadBits(16) // CRC
	fscodU, _ := bs.ReadBits(2)
	frmsizecodU, _ := bs.ReadBits(6)
	bsidU, _ := bs.ReadBits(5)
	fscod, frmsizecod, bsid := int(fscodU), int(frmsizecodU), int(bsidU)
	if bsid > 8 {
		return f, fmt.Errorf("esparser: unsupported ac3 bsid %d", bsid)
	}
	bs.ReadBits(3) // bitstream mode
	acmodU, _ := bs.ReadBits(3)
	acmod := int(acmodU)

	if fscod == 3 || frmsizecod > 37 {
		return f, fmt.Errorf("esparser: invalid ac3 fscod/frmsizecod")
	}

	if acmod == ac3ChanModeStereo {
		bs.ReadBits(2) // dsurmod
	} else {
		if acmod&1 != 0 && acmod != ac3ChanModeMono {
			bs.ReadBits(2)
		}
		if acmod&4 != 0 {
			bs.ReadBits(2)
		}
	}
	lfeonU, _ := bs.ReadBits(1)
	lfeon := int(lfeonU)

	f.SampleRate = ac3SampleRateTable[fscod]
	f.BitRate = ac3BitrateTable[frmsizecod>>1] * 1000
	f.Channels = ac3ChannelsTable[acmod] + lfeon
	f.FrameSize = ac3FrameSizeTable[frmsizecod][fscod] * 2
	f.Duration = f.FrameSize * 8 * 1000 * 90 / f.BitRate

	return f, nil
}
