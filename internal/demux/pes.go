package demux

import (
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// feedPES implements the whole-PES-packet contract: accumulate chunks
// between PUSIs, and on the PUSI that starts the *next* packet (or once the
// declared length is reached) hand the buffered packet to parse_payload and
// reset.
func (d *Demuxer) feedPES(chunk []byte, pusi bool) {
	if !d.startup && ((d.pesLen != 0 && len(d.buf) >= d.pesLen) || (d.pesLen == 0 && pusi)) {
		d.parsePESPayload(d.buf)
		d.buf = nil
		d.startup = true
	}

	if pusi {
		hdr, err := tspacket.ParsePESHeader(chunk)
		if err != nil {
			d.startup = true
			d.buf = nil
			return
		}
		if hdr.HasPTS {
			d.curPTS = tspacket.MonotonicUpdate(d.curPTS, hdr.PTS)
		}
		if hdr.HasDTS {
			d.curDTS = tspacket.MonotonicUpdate(d.curDTS, hdr.DTS)
		} else if hdr.HasPTS {
			d.curDTS = d.curPTS
		}
		if hdr.PacketLength == 0 {
			d.pesLen = 0
		} else {
			d.pesLen = hdr.PacketLength - (hdr.HeaderLength - 6)
		}
		if hdr.HeaderLength <= len(chunk) {
			d.buf = append(d.buf[:0:0], chunk[hdr.HeaderLength:]...)
		} else {
			d.buf = nil
		}
		d.startup = false
		return
	}

	if !d.startup {
		d.buf = append(d.buf, chunk...)
	}
}

// parsePESPayload dispatches one whole-PES-packet payload to the
// codec-specific parser and emits zero or more StreamPackets.
func (d *Demuxer) parsePESPayload(payload []byte) {
	if len(payload) == 0 {
		return
	}

	switch d.info.CodecType {
	case streaminfo.CodecMPEG2Video:
		d.parseMPEG2Video(payload)
	case streaminfo.CodecH264:
		d.parseH264(payload)
	case streaminfo.CodecH265:
		d.parseH265(payload)
	case streaminfo.CodecLATM:
		d.parseLATM(payload)
	case streaminfo.CodecDVBSub, streaminfo.CodecTeletext:
		d.emit(payload, esparser.FrameUnknown, d.curDTS, d.curPTS, 0)
	}
}

func (d *Demuxer) parseMPEG2Video(payload []byte) {
	if s := esparser.FindStartCode(payload, 0, 0x000001B3, 0xFFFFFFFF); s >= 0 {
		if hdr, err := esparser.ParseMPEG2SequenceHeader(payload[s+4:]); err == nil {
			d.setVideoInfo(streaminfo.VideoInfo{
				FPSScale:      hdr.FPSScale,
				FPSRate:       hdr.FPSRate,
				Width:         hdr.Width,
				Height:        hdr.Height,
				DisplayAspect: hdr.DisplayAspect,
			})
		}
	}

	pictures, types := esparser.SplitPictures(payload)
	for i, pic := range pictures {
		ft := types[i]
		dts := d.curDTS
		if dts == tspacket.NoPTS {
			dts = 0
		}
		pts := dts
		switch ft {
		case esparser.FrameB:
			pts = dts
		default:
			pts = tspacket.PtsAdd(dts, d.ptsDtsOffset)
		}
		if d.curPTS != tspacket.NoPTS {
			d.ptsDtsOffset = d.curPTS - dts
		}
		d.emit(pic, ft, dts, pts, 0)
		d.curDTS = tspacket.PtsAdd(dts, 3000)
	}
}

func (d *Demuxer) parseH264(payload []byte) {
	if sps, ok := esparser.ExtractSPS(payload); ok {
		if parsed, err := esparser.ParseH264SPS(sps); err == nil {
			d.info.Video.SPS = streaminfo.ClampDecoderBytes(sps)
			d.setVideoInfo(streaminfo.VideoInfo{
				FPSScale:      1,
				FPSRate:       25,
				Width:         parsed.Width,
				Height:        parsed.Height,
				DisplayAspect: parsed.DisplayAspect,
				SPS:           streaminfo.ClampDecoderBytes(sps),
				PPS:           d.info.Video.PPS,
			})
		}
	}
	if pps, ok := esparser.ExtractPPS(payload); ok {
		d.info.Video.PPS = streaminfo.ClampDecoderBytes(pps)
	}

	ft := esparser.FrameUnknown
	if parsed, ok := esparser.ParseH264SliceType(payload); ok {
		ft = parsed
	}
	d.emit(payload, ft, d.curDTS, d.curPTS, 0)
}

func (d *Demuxer) parseH265(payload []byte) {
	au := esparser.ScanH265NALUnits(payload)
	if au.SPS != nil {
		if parsed, err := esparser.ParseH265SPS(au.SPS); err == nil {
			d.info.Video.SPS = streaminfo.ClampDecoderBytes(au.SPS)
			if au.PPS != nil {
				d.info.Video.PPS = streaminfo.ClampDecoderBytes(au.PPS)
			}
			if au.VPS != nil {
				d.info.Video.VPS = streaminfo.ClampDecoderBytes(au.VPS)
			}
			d.setVideoInfo(streaminfo.VideoInfo{
				FPSScale:      1,
				FPSRate:       25,
				Width:         parsed.Width,
				Height:        parsed.Height,
				DisplayAspect: parsed.DisplayAspect,
				SPS:           d.info.Video.SPS,
				PPS:           d.info.Video.PPS,
				VPS:           d.info.Video.VPS,
			})
		}
	}

	ft := esparser.FrameUnknown
	if au.KeyFrame {
		ft = esparser.FrameI
	}
	d.emit(payload, ft, d.curDTS, d.curPTS, 0)
}

func (d *Demuxer) parseLATM(payload []byte) {
	start, length := esparser.FindLATMFrame(payload, 0)
	if start < 0 {
		return
	}
	frame := payload[start : start+length]
	cfg := esparser.ParseLATMAudioMuxElement(frame, d.latmCfg)
	if cfg.Configured {
		d.latmCfg = cfg
		d.setAudioInfo(streaminfo.AudioInfo{
			Channels:   channelsForConfig(cfg.ChannelConfig),
			SampleRate: cfg.SampleRate,
		})
	}
	duration := int64(0)
	if d.latmCfg.Configured {
		duration = int64(d.latmCfg.FrameDuration)
	}
	d.emit(frame, esparser.FrameUnknown, d.curDTS, d.curPTS, duration)
}

// channelsForConfig maps an MPEG-4 channelConfiguration value to a channel
// count (ISO/IEC 14496-3 Table 1.19).
func channelsForConfig(cc int) int {
	switch cc {
	case 0:
		return 0
	case 1, 2:
		return cc
	case 3, 4, 5, 6:
		return cc
	case 7:
		return 8
	default:
		return 2
	}
}
