package esparser

import "github.com/halvarsson/xvdrd/internal/streaminfo"

// DVB subtitling and teletext are carried as opaque PES payloads; there is
// no frame header to parse here, only the PMT subtitling_descriptor (table
// 101 in EN 300 468) that accompanies the PID. ParseSubtitlingDescriptor
// decodes that descriptor's fixed 8-byte-per-language record.

// ParseSubtitlingDescriptor decodes the first language entry of a DVB
// subtitling_descriptor body, returning its subtitling fields together with
// the record's 3-byte ISO 639 language code.
func ParseSubtitlingDescriptor(body []byte) (streaminfo.SubtitleInfo, string, bool) {
	if len(body) < 8 {
		return streaminfo.SubtitleInfo{}, "", false
	}
	lang := string(body[0:3])
	sub := streaminfo.SubtitleInfo{
		SubtitlingType:    body[3],
		CompositionPageID: uint16(body[4])<<8 | uint16(body[5]),
		AncillaryPageID:   uint16(body[6])<<8 | uint16(body[7]),
	}
	return sub, lang, true
}
