package esparser

import "github.com/halvarsson/xvdrd/internal/tspacket"

// ADTSHeaderSize is the fixed ADTS header length (with the optional CRC
// field always counted, matching the teacher's fixed 9-byte layout).
const ADTSHeaderSize = 9

var aacSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// aacChannels maps the ADTS channel_configuration field to a channel count.
// Index 0 (program_config_element defined) is reported as 0 — the caller
// must look elsewhere for the real channel layout in that case.
var aacChannels = [8]int{0, 1, 2, 3, 4, 5, 6, 8}

// ADTSFrame holds the fields extracted from one ADTS frame header.
type ADTSFrame struct {
	Channels   int
	SampleRate int
	FrameSize  int
	Duration   int // 90kHz ticks, always 1024 samples/frame for ADTS
}

// ParseADTS decodes a 9-byte ADTS frame header (sync + fixed + variable
// fields, CRC always assumed present per the fixed header size above).
func ParseADTS(buf []byte) (ADTSFrame, error) {
	var f ADTSFrame
	if len(buf) < ADTSHeaderSize {
		return f, ErrShortHeader
	}

	bs := tspacket.NewBitReader(buf)
	sync, _ := bs.ReadBits(12)
	if sync != 0xFFF {
		return f, ErrBadSync
	}

	bs.ReadBits(1) // MPEG version
	layer, _ := bs.ReadBits(2)
	if layer != 0 {
		return f, ErrBadSync
	}
	bs.ReadBits(1) // protection absent
	bs.ReadBits(2) // AOT

	sampleRateIndexU, _ := bs.ReadBits(4)
	sampleRateIndex := int(sampleRateIndexU)
	if sampleRateIndex == 15 {
		return f, ErrBadSync
	}

	bs.ReadBits(1) // private bit

	channelIndexU, _ := bs.ReadBits(3)
	channelIndex := int(channelIndexU)
	if channelIndex > 7 {
		return f, ErrBadSync
	}

	bs.ReadBits(4) // original/copy/home/copyrighted

	frameSizeU, _ := bs.ReadBits(13)

	f.SampleRate = aacSampleRates[sampleRateIndex]
	f.Channels = aacChannels[channelIndex]
	f.FrameSize = int(frameSizeU)
	if f.SampleRate > 0 {
		f.Duration = 1024 * 90000 / f.SampleRate
	}

	return f, nil
}
