package esparser

import (
	"fmt"

	"github.com/halvarsson/xvdrd/internal/tspacket"
)

const eac3FrameTypeReserved = 3

var eac3Blocks = [4]int{1, 2, 3, 6}

// EAC3Frame holds the fields extracted from one Enhanced AC-3 frame header.
type EAC3Frame struct {
	Channels   int
	SampleRate int
	BitRate    int
	FrameSize  int
	Duration   int // 90kHz ticks
}

// ParseEAC3 decodes an Enhanced AC-3 (E-AC-3) frame header.
func ParseEAC3(buf []byte) (EAC3Frame, error) {
	var f EAC3Frame
	if len(buf) < AC3HeaderSize {
		return f, ErrShortHeader
	}

	bs := tspacket.NewBitReader(buf)
	sync, _ := bs.ReadBits(16)
	if sync != 0x0B77 {
		return f, ErrBadSync
	}

	frametypeU, _ := bs.ReadBits(2)
	if int(frametypeU) == eac3FrameTypeReserved {
		return f, fmt.Errorf("esparser: reserved eac3 frame type")
	}
	bs.ReadBits(3) // substream id

	framesizeU, _ := bs.ReadBits(11)
	framesize := (int(framesizeU) + 1) << 1
	if framesize < AC3HeaderSize {
		return f, fmt.Errorf("esparser: eac3 framesize too small")
	}

	numBlocks := 6
	srCodeU, _ := bs.ReadBits(2)
	srCode := int(srCodeU)
	if srCode == 3 {
		srCode2U, _ := bs.ReadBits(2)
		srCode2 := int(srCode2U)
		if srCode2 == 3 {
			return f, fmt.Errorf("esparser: invalid eac3 sample rate code")
		}
		f.SampleRate = ac3SampleRateTable[srCode2] / 2
	} else {
		numBlocksCodeU, _ := bs.ReadBits(2)
		numBlocks = eac3Blocks[numBlocksCodeU]
		f.SampleRate = ac3SampleRateTable[srCode]
	}

	channelModeU, _ := bs.ReadBits(3)
	lfeonU, _ := bs.ReadBits(1)
	channelMode, lfeon := int(channelModeU), int(lfeonU)

	f.BitRate = int(8.0 * float64(framesize) * float64(f.SampleRate) / (float64(numBlocks) * 256.0))
	f.Channels = ac3ChannelsTable[channelMode] + lfeon
	f.FrameSize = framesize
	if f.BitRate > 0 {
		f.Duration = framesize * 8 * 1000 * 90 / f.BitRate
	}

	return f, nil
}
