package esparser

import "fmt"

// ErrShortHeader is returned by every parser here when the supplied buffer
// is too small to contain a fixed header.
var ErrShortHeader = fmt.Errorf("esparser: buffer shorter than header size")

// ErrBadSync is returned when the expected syncword/start code is missing.
var ErrBadSync = fmt.Errorf("esparser: bad sync word")

const mpaMono = 3

var mpaFrequencyTable = [3]int{44100, 48000, 32000}

var mpaBitrateTable = [2][3][15]int{
	{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

// MPEG2AudioHeaderSize is the fixed header length needed to decode an
// MPEG-1/2 audio frame header.
const MPEG2AudioHeaderSize = 4

// MPEG2AudioFrame holds the fields extracted from one MPEG-1/2 Layer I-III
// frame header.
type MPEG2AudioFrame struct {
	Channels   int
	SampleRate int
	BitRate    int
	FrameSize  int
	Layer      int // 1, 2 or 3
	Duration   int // 90kHz ticks
}

// mpaSamplesPerFrame gives the PCM samples carried by one frame, indexed by
// layer (1..3).
var mpaSamplesPerFrame = [4]int{0, 384, 1152, 1152}

// ParseMPEG2Audio decodes the 4-byte MPEG-1/2 audio frame header at the
// start of buf.
func ParseMPEG2Audio(buf []byte) (MPEG2AudioFrame, error) {
	var f MPEG2AudioFrame
	if len(buf) < MPEG2AudioHeaderSize {
		return f, ErrShortHeader
	}

	header := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	if header&0xFFF00000 != 0xFFF00000 {
		return f, ErrBadSync
	}

	var lsf, mpeg25 int
	if header&(1<<20) != 0 {
		if header&(1<<19) != 0 {
			lsf = 0
		} else {
			lsf = 1
		}
		mpeg25 = 0
	} else {
		lsf = 1
		mpeg25 = 1
	}

	layer := 4 - int(header>>17&3)
	if layer == 0 || layer == 4 {
		return f, fmt.Errorf("esparser: invalid mpeg audio layer")
	}

	sampleRateIndex := int(header >> 10 & 3)
	padding := int(header >> 9 & 1)
	f.SampleRate = mpaFrequencyTable[sampleRateIndex] >> uint(lsf+mpeg25)

	bitrateIndex := int(header >> 12 & 0xF)
	if bitrateIndex >= 15 {
		return f, fmt.Errorf("esparser: invalid mpeg audio bitrate index")
	}

	mode := int(header >> 6 & 3)
	if mode == mpaMono {
		f.Channels = 1
	} else {
		f.Channels = 2
	}

	f.Layer = layer
	f.BitRate = mpaBitrateTable[lsf][layer-1][bitrateIndex] * 1000
	if f.BitRate == 0 || f.SampleRate == 0 {
		return f, fmt.Errorf("esparser: zero mpeg audio bitrate or samplerate")
	}

	if layer == 1 {
		f.FrameSize = (12*f.BitRate/f.SampleRate + padding) * 4
	} else {
		f.FrameSize = 144*f.BitRate/f.SampleRate + padding
	}

	f.Duration = mpaSamplesPerFrame[layer] * 90000 / f.SampleRate

	return f, nil
}
