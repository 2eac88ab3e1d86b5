package patpmt

import (
	"strings"

	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// DVB/MPEG descriptor tags this filter inspects. Values are from ETSI EN 300
// 468 and ISO/IEC 13818-1.
const (
	descISO639Language = 0x0A
	descRegistration   = 0x05
	descAC3            = 0x6A
	descEnhancedAC3    = 0x7A
	descAAC            = 0x7C
	descTeletext       = 0x56
	descSubtitling     = 0x59
)

// maxSubtitleLanguages bounds how many '+'-joined language sub-codes a
// subtitling descriptor contributes to one stream's Language field.
const maxSubtitleLanguages = 3

// maxStreamsPerBundle is a sanity cap on elementary streams accepted into one
// StreamBundle, matching the intent of a fixed-size receive-PID table.
const maxStreamsPerBundle = 64

// findLanguage scans a stream's descriptor loop for an ISO 639 language
// descriptor and returns its first language code and audio type.
func findLanguage(descs []descriptor) (lang string, audioType int) {
	for _, d := range descs {
		if d.Tag != descISO639Language || len(d.Data) < 4 {
			continue
		}
		lang = normalizeLanguageCode(d.Data[0:3])
		audioType = int(d.Data[3])
		return
	}
	return "", 0
}

// normalizeLanguageCode lowercases a 3-byte ISO 639 code, treating "QAA"/"ZZZ"
// style placeholders the same as any other code (no host-side name lookup
// here; that belongs to the embedding layer's channel metadata).
func normalizeLanguageCode(b []byte) string {
	return strings.ToLower(string(b))
}

// registrationIsAC3 reports whether a registration descriptor's format
// identifier is "AC-3", the convention used by stream_type >= 0x81 (ATSC)
// substreams that don't carry a proper AC3 descriptor.
func registrationIsAC3(d descriptor) bool {
	return len(d.Data) >= 4 && d.Data[0] == 'A' && d.Data[1] == 'C' && d.Data[2] == '-' && d.Data[3] == '3'
}

// subtitlingEntry is one language-coded subtitle variant within a
// subtitling_descriptor.
type subtitlingEntry struct {
	Lang              string
	SubtitlingType    byte
	CompositionPageID uint16
	AncillaryPageID   uint16
}

func parseSubtitlingDescriptor(d descriptor) []subtitlingEntry {
	var out []subtitlingEntry
	for i := 0; i+8 <= len(d.Data); i += 8 {
		if d.Data[i] == 0 {
			continue // empty language code, not a usable variant
		}
		out = append(out, subtitlingEntry{
			Lang:              normalizeLanguageCode(d.Data[i : i+3]),
			SubtitlingType:    d.Data[i+3],
			CompositionPageID: uint16(d.Data[i+4])<<8 | uint16(d.Data[i+5]),
			AncillaryPageID:   uint16(d.Data[i+6])<<8 | uint16(d.Data[i+7]),
		})
	}
	return out
}

// mapStream converts one PMT elementary-stream entry to a StreamInfo,
// implementing the stream_type/descriptor -> codec mapping table. The second
// return value is false for stream types this system never mixes in (MHEG,
// DSM-CC sections, unrecognized private data, ...).
func mapStream(s pmtStream) (streaminfo.StreamInfo, bool) {
	if s.PID == 0 {
		return streaminfo.StreamInfo{}, false
	}

	switch s.StreamType {
	case 0x01, 0x02, 0x80:
		return streaminfo.New(s.PID, streaminfo.CodecMPEG2Video), true

	case 0x03, 0x04:
		info := streaminfo.New(s.PID, streaminfo.CodecMPEG2Audio)
		info.Language, info.AudioType = findLanguage(s.Descriptors)
		return info, true

	case 0x0F:
		info := streaminfo.New(s.PID, streaminfo.CodecAAC)
		info.Language, info.AudioType = findLanguage(s.Descriptors)
		return info, true

	case 0x11:
		info := streaminfo.New(s.PID, streaminfo.CodecLATM)
		info.Language, info.AudioType = findLanguage(s.Descriptors)
		return info, true

	case 0x1B:
		return streaminfo.New(s.PID, streaminfo.CodecH264), true

	case 0x24:
		return streaminfo.New(s.PID, streaminfo.CodecH265), true

	case 0x05, 0x06:
		return mapPrivateStream(s)

	default:
		if s.StreamType >= 0x81 {
			for _, d := range s.Descriptors {
				if d.Tag == descRegistration && registrationIsAC3(d) {
					return streaminfo.New(s.PID, streaminfo.CodecAC3), true
				}
			}
		}
		return streaminfo.StreamInfo{}, false
	}
}

// mapPrivateStream handles stream_type 0x05/0x06, where the codec is decided
// entirely by which descriptor is present in the stream's descriptor loop.
func mapPrivateStream(s pmtStream) (streaminfo.StreamInfo, bool) {
	for _, d := range s.Descriptors {
		switch d.Tag {
		case descAC3:
			info := streaminfo.New(s.PID, streaminfo.CodecAC3)
			info.Language, info.AudioType = findLanguage(s.Descriptors)
			return info, true

		case descEnhancedAC3:
			info := streaminfo.New(s.PID, streaminfo.CodecEAC3)
			info.Language, info.AudioType = findLanguage(s.Descriptors)
			return info, true

		case descAAC:
			info := streaminfo.New(s.PID, streaminfo.CodecAAC)
			info.Language, info.AudioType = findLanguage(s.Descriptors)
			return info, true

		case descTeletext:
			return streaminfo.New(s.PID, streaminfo.CodecTeletext), true

		case descSubtitling:
			entries := parseSubtitlingDescriptor(d)
			if len(entries) == 0 {
				continue
			}
			info := streaminfo.New(s.PID, streaminfo.CodecDVBSub)
			var langs []string
			for i, e := range entries {
				if i == 0 {
					info.Subtitle = streaminfo.SubtitleInfo{
						SubtitlingType:    e.SubtitlingType,
						CompositionPageID: e.CompositionPageID,
						AncillaryPageID:   e.AncillaryPageID,
					}
				}
				if i >= maxSubtitleLanguages {
					break
				}
				langs = append(langs, e.Lang)
			}
			info.Language = strings.Join(langs, "+")
			return info, true
		}
	}
	return streaminfo.StreamInfo{}, false
}

// BuildBundle walks a PMT's stream loop and returns the StreamBundle it
// describes, applying the stream_type/descriptor -> codec mapping and the
// per-program stream count cap.
func BuildBundle(pmt *pmtSection) *streaminfo.Bundle {
	bundle := streaminfo.NewBundle()
	for _, s := range pmt.Streams {
		if bundle.Len() >= maxStreamsPerBundle {
			break
		}
		info, ok := mapStream(s)
		if !ok {
			continue
		}
		_ = bundle.Put(info)
	}
	return bundle
}
