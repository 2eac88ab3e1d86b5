package esparser

import "github.com/halvarsson/xvdrd/internal/tspacket"

// latmSyncByte0 is the first byte of the 11-bit 0x2B7 LOAS sync word that
// opens each 3-byte LOAS header (0x56 0xEx pattern at byte level).
const latmSyncByte0 = 0x56

// LATMConfig is the decoded StreamMuxConfig of an AAC-in-LATM stream. Once
// parsed it rarely changes frame-to-frame, so callers should cache it and
// only re-invoke ParseLATMAudioMuxElement's config branch when
// useSameStreamMux is false.
type LATMConfig struct {
	SampleRate     int
	ChannelConfig  int
	FrameDuration  int // 90kHz ticks per frame
	FrameLengthType int
	Configured     bool
}

// FindLATMFrame locates the next LATM AudioMuxElement frame boundary at or
// after offset in a LOAS byte stream, returning its start offset and total
// length (including the 3-byte LOAS header), or -1 if none is found.
func FindLATMFrame(buf []byte, offset int) (start, length int) {
	for p := offset; p+3 <= len(buf); p++ {
		if buf[p] == latmSyncByte0 && buf[p+1]&0xE0 == 0xE0 {
			muxLen := int(buf[p+1]&0x1F)<<8 | int(buf[p+2]) + 3
			if p+muxLen <= len(buf) {
				return p, muxLen
			}
			return -1, 0
		}
	}
	return -1, 0
}

// ParseLATMAudioMuxElement decodes one LOAS/LATM AudioMuxElement. cfg is the
// previously cached config (may be zero value on the first call); the
// returned LATMConfig should be cached by the caller and passed back in on
// the next call so a repeated useSameStreamMux=true frame doesn't need to
// be re-parsed.
func ParseLATMAudioMuxElement(data []byte, cfg LATMConfig) LATMConfig {
	bs := tspacket.NewBitReader(data)
	bs.ReadBits(24) // LOAS header (already matched by FindLATMFrame)

	useSameStreamMux, _ := bs.ReadBit()
	if useSameStreamMux == 0 {
		cfg = readStreamMuxConfig(bs)
	}
	return cfg
}

func readStreamMuxConfig(bs *tspacket.BitReader) LATMConfig {
	var cfg LATMConfig

	audioMuxVersionU, _ := bs.ReadBit()
	audioMuxVersion := audioMuxVersionU == 1

	var audioMuxVersionA uint
	if audioMuxVersion {
		audioMuxVersionA, _ = bs.ReadBit()
	}
	if audioMuxVersionA == 1 {
		return cfg // unsupported AudioMuxVersionA, leave unconfigured
	}

	if audioMuxVersion {
		readLATMValue(bs) // taraBufferFullness
	}

	bs.ReadBits(1) // allStreamSameTimeFraming
	bs.ReadBits(6) // numSubFrames
	bs.ReadBits(4) // numProgram
	bs.ReadBits(3) // numLayer

	if audioMuxVersion {
		return cfg
	}

	cfg = readAudioSpecificConfig(bs)
	if !cfg.Configured {
		return cfg
	}

	frameLengthTypeU, _ := bs.ReadBits(3)
	cfg.FrameLengthType = int(frameLengthTypeU)
	switch cfg.FrameLengthType {
	case 0:
		bs.ReadBits(8)
	case 1:
		bs.ReadBits(9)
	case 3, 4, 5:
		bs.ReadBits(6) // celp_table_index
	case 6, 7:
		bs.ReadBits(1) // hvxc_table_index
	}

	otherDataPresent, _ := bs.ReadBit()
	if otherDataPresent == 1 {
		if audioMuxVersion {
			readLATMValue(bs)
		} else {
			for {
				esc, _ := bs.ReadBit()
				bs.ReadBits(8)
				if esc == 0 {
					break
				}
			}
		}
	}

	crcPresent, _ := bs.ReadBit()
	if crcPresent == 1 {
		bs.ReadBits(8) // config_crc
	}

	return cfg
}

func readAudioSpecificConfig(bs *tspacket.BitReader) LATMConfig {
	var cfg LATMConfig

	bs.ReadBits(5) // audioObjectType
	sampleRateIndexU, _ := bs.ReadBits(4)
	sampleRateIndex := int(sampleRateIndexU)
	if sampleRateIndex == 0xF {
		return cfg
	}

	cfg.SampleRate = aacSampleRates[sampleRateIndex]
	if cfg.SampleRate == 0 {
		return cfg
	}
	cfg.FrameDuration = 1024 * 90000 / cfg.SampleRate

	channelConfigU, _ := bs.ReadBits(4)
	cfg.ChannelConfig = int(channelConfigU)

	bs.ReadBits(1) // framelen_flag
	dependsOnCoder, _ := bs.ReadBit()
	if dependsOnCoder == 1 {
		bs.ReadBits(14)
	}
	extFlag, _ := bs.ReadBit()
	if extFlag == 1 {
		bs.ReadBits(1) // ext3_flag
	}

	cfg.Configured = true
	return cfg
}

func readLATMValue(bs *tspacket.BitReader) uint {
	nBytesU, _ := bs.ReadBits(2)
	v, _ := bs.ReadBits(int(nBytesU) * 8)
	return v
}
