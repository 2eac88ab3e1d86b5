package protocol

import (
	"sort"

	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// BuildStreamChange encodes one STREAM_CHANGE payload from a demuxer
// bundle's current stream order: `uint32 PID | string typeName` per stream,
// followed by codec-specific fields.
func BuildStreamChange(bundle *demux.DemuxerBundle) []byte {
	w := NewPayloadWriter()
	for _, s := range bundle.Streams() {
		info := s.Info()
		w.U32(uint32(info.PID)).String(info.CodecType.String())
		appendStreamFields(w, info)
	}
	return w.Bytes()
}

// BuildStreamChangeInfo encodes the same STREAM_CHANGE payload shape from an
// immutable streaminfo.Bundle snapshot rather than a live DemuxerBundle.
// internal/livestream's Listener callback and internal/recording's Player
// both hand out this snapshot type instead of the demuxer bundle itself, so
// internal/dispatch builds STREAM_CHANGE frames from here. Streams are
// walked in PID order since the Bundle holds them in a map.
func BuildStreamChangeInfo(bundle *streaminfo.Bundle) []byte {
	pids := make([]uint16, 0, len(bundle.Streams))
	for pid := range bundle.Streams {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	w := NewPayloadWriter()
	for _, pid := range pids {
		info := bundle.Streams[pid]
		w.U32(uint32(info.PID)).String(info.CodecType.String())
		appendStreamFields(w, info)
	}
	return w.Bytes()
}

func appendStreamFields(w *PayloadWriter, info streaminfo.StreamInfo) {
	switch info.Content {
	case streaminfo.ContentAudio:
		w.String(info.Language).
			U32(uint32(info.Audio.Channels)).
			U32(uint32(info.Audio.SampleRate)).
			U32(uint32(info.Audio.BlockAlign)).
			U32(uint32(info.Audio.BitRate)).
			U32(uint32(info.Audio.BitsPerSample))

	case streaminfo.ContentVideo:
		w.U32(uint32(info.Video.FPSScale)).
			U32(uint32(info.Video.FPSRate)).
			U32(uint32(info.Video.Height)).
			U32(uint32(info.Video.Width)).
			S64(int64(info.Video.DisplayAspect * 10000.0)).
			LengthPrefixedBytes(info.Video.SPS).
			LengthPrefixedBytes(info.Video.PPS).
			LengthPrefixedBytes(info.Video.VPS)

	case streaminfo.ContentSubtitle:
		w.String(info.Language).
			U32(uint32(info.Subtitle.CompositionPageID)).
			U32(uint32(info.Subtitle.AncillaryPageID))

	case streaminfo.ContentTeletext:
		// no extra fields
	}
}

// ParseStreamChange decodes a STREAM_CHANGE payload back into a bundle,
// inferring each stream's Content from the decoded typeName. Used by tests
// and any non-Go client-side decoder; the server itself only ever encodes.
func ParseStreamChange(payload []byte) (*streaminfo.Bundle, error) {
	r := NewPayloadReader(payload)
	bundle := streaminfo.NewBundle()

	for r.Remaining() > 0 {
		pid, err := r.U32()
		if err != nil {
			return nil, err
		}
		typeName, err := r.String()
		if err != nil {
			return nil, err
		}
		codec := codecFromTypeName(typeName)
		info := streaminfo.New(uint16(pid), codec)
		info.Parsed = true

		switch info.Content {
		case streaminfo.ContentAudio:
			lang, err := r.String()
			if err != nil {
				return nil, err
			}
			channels, err := r.U32()
			if err != nil {
				return nil, err
			}
			sampleRate, err := r.U32()
			if err != nil {
				return nil, err
			}
			blockAlign, err := r.U32()
			if err != nil {
				return nil, err
			}
			bitRate, err := r.U32()
			if err != nil {
				return nil, err
			}
			bitsPerSample, err := r.U32()
			if err != nil {
				return nil, err
			}
			info.Language = lang
			info.Audio = streaminfo.AudioInfo{
				Channels:      int(channels),
				SampleRate:    int(sampleRate),
				BlockAlign:    int(blockAlign),
				BitRate:       int(bitRate),
				BitsPerSample: int(bitsPerSample),
			}

		case streaminfo.ContentVideo:
			fpsScale, err := r.U32()
			if err != nil {
				return nil, err
			}
			fpsRate, err := r.U32()
			if err != nil {
				return nil, err
			}
			height, err := r.U32()
			if err != nil {
				return nil, err
			}
			width, err := r.U32()
			if err != nil {
				return nil, err
			}
			aspect, err := r.S64()
			if err != nil {
				return nil, err
			}
			sps, err := r.LengthPrefixedBytes()
			if err != nil {
				return nil, err
			}
			pps, err := r.LengthPrefixedBytes()
			if err != nil {
				return nil, err
			}
			vps, err := r.LengthPrefixedBytes()
			if err != nil {
				return nil, err
			}
			info.Video = streaminfo.VideoInfo{
				FPSScale:      int(fpsScale),
				FPSRate:       int(fpsRate),
				Height:        int(height),
				Width:         int(width),
				DisplayAspect: float64(aspect) / 10000.0,
				SPS:           append([]byte(nil), sps...),
				PPS:           append([]byte(nil), pps...),
				VPS:           append([]byte(nil), vps...),
			}

		case streaminfo.ContentSubtitle:
			lang, err := r.String()
			if err != nil {
				return nil, err
			}
			compositionPageID, err := r.U32()
			if err != nil {
				return nil, err
			}
			ancillaryPageID, err := r.U32()
			if err != nil {
				return nil, err
			}
			info.Language = lang
			info.Subtitle = streaminfo.SubtitleInfo{
				CompositionPageID: uint16(compositionPageID),
				AncillaryPageID:   uint16(ancillaryPageID),
			}
		}

		if err := bundle.Put(info); err != nil {
			return nil, err
		}
	}

	return bundle, nil
}

func codecFromTypeName(name string) streaminfo.CodecType {
	for _, t := range []streaminfo.CodecType{
		streaminfo.CodecMPEG2Audio, streaminfo.CodecAC3, streaminfo.CodecEAC3,
		streaminfo.CodecAAC, streaminfo.CodecLATM, streaminfo.CodecMPEG2Video,
		streaminfo.CodecH264, streaminfo.CodecH265, streaminfo.CodecDVBSub,
		streaminfo.CodecTeletext,
	} {
		if t.String() == name {
			return t
		}
	}
	return streaminfo.CodecNone
}
