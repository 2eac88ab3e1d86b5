package demux

import (
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// headerSize returns the fixed header length check_alignment_header needs
// for this demuxer's codec.
func (d *Demuxer) headerSize() int {
	switch d.info.CodecType {
	case streaminfo.CodecAC3, streaminfo.CodecEAC3:
		return esparser.AC3HeaderSize
	case streaminfo.CodecAAC:
		return esparser.ADTSHeaderSize
	default:
		return esparser.MPEG2AudioHeaderSize
	}
}

// checkAlignment attempts to decode one frame header at the start of buf.
// It reports whether a valid frame was found, its size, and its duration in
// 90 kHz ticks.
func (d *Demuxer) checkAlignment(buf []byte) (ok bool, frameSize int, duration int64) {
	switch d.info.CodecType {
	case streaminfo.CodecMPEG2Audio:
		f, err := esparser.ParseMPEG2Audio(buf)
		if err != nil {
			return false, 0, 0
		}
		d.setAudioInfo(streaminfo.AudioInfo{Channels: f.Channels, SampleRate: f.SampleRate, BitRate: f.BitRate})
		return true, f.FrameSize, int64(f.Duration)

	case streaminfo.CodecAC3:
		f, err := esparser.ParseAC3(buf)
		if err != nil {
			return false, 0, 0
		}
		d.setAudioInfo(streaminfo.AudioInfo{Channels: f.Channels, SampleRate: f.SampleRate, BitRate: f.BitRate})
		return true, f.FrameSize, int64(f.Duration)

	case streaminfo.CodecEAC3:
		f, err := esparser.ParseEAC3(buf)
		if err != nil {
			return false, 0, 0
		}
		d.setAudioInfo(streaminfo.AudioInfo{Channels: f.Channels, SampleRate: f.SampleRate, BitRate: f.BitRate})
		return true, f.FrameSize, int64(f.Duration)

	case streaminfo.CodecAAC:
		f, err := esparser.ParseADTS(buf)
		if err != nil {
			return false, 0, 0
		}
		d.setAudioInfo(streaminfo.AudioInfo{Channels: f.Channels, SampleRate: f.SampleRate})
		return true, f.FrameSize, int64(f.Duration)

	default:
		return false, 0, 0
	}
}

// feedFramed implements the rolling-byte-buffer contract for the
// byte-aligned framed codecs (MPEG-2 audio, AC-3, E-AC-3, AAC-ADTS).
func (d *Demuxer) feedFramed(chunk []byte, pusi bool) {
	if pusi {
		if hdr, err := tspacket.ParsePESHeader(chunk); err == nil {
			if hdr.HasPTS {
				d.curPTS = tspacket.MonotonicUpdate(d.curPTS, hdr.PTS)
			}
			if hdr.HasDTS {
				d.curDTS = tspacket.MonotonicUpdate(d.curDTS, hdr.DTS)
			} else if hdr.HasPTS {
				d.curDTS = d.curPTS
			}
			if hdr.HeaderLength <= len(chunk) {
				chunk = chunk[hdr.HeaderLength:]
			} else {
				chunk = nil
			}
		}
	}
	d.buf = append(d.buf, chunk...)

	hs := d.headerSize()
	for len(d.buf) >= hs {
		ok, frameSize, duration := d.checkAlignment(d.buf)
		if !ok || frameSize <= 0 {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < frameSize {
			break
		}

		dts, pts := d.curDTS, d.curPTS
		d.emit(d.buf[:frameSize], esparser.FrameUnknown, dts, pts, duration)

		if dts != tspacket.NoPTS {
			d.curDTS = tspacket.PtsAdd(dts, duration)
		}
		if pts != tspacket.NoPTS {
			d.curPTS = tspacket.PtsAdd(pts, duration)
		}

		d.buf = d.buf[frameSize:]
	}
}
