package demux

import (
	"sort"

	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// Bundle reorder weight bit layout (MSB first), per the 32-bit weight
// described alongside the demuxer bundle:
//
//	bit 31 : 1 if video
//	bit 23 : 1 if audio
//	bit 22 : 1 if subtitle
//	bit 21 : 1 if language matches preferred
//	bit 20 : 1 if audio stream type matches preferred
//	bits 19..16 : (4 - audio_type) clamped to [0,15]
//	bits 15..0  : 0xFFFF - PID
const (
	weightVideo    = 1 << 31
	weightAudio    = 1 << 23
	weightSubtitle = 1 << 22
	weightLanguage = 1 << 21
	weightAudioType = 1 << 20
)

// DemuxerBundle is the ordered set of demuxers for one program: one per
// elementary stream, reordered by preference whenever the preferred
// language or audio type changes.
type DemuxerBundle struct {
	streams []*Demuxer
}

// NewDemuxerBundle creates an empty bundle.
func NewDemuxerBundle() *DemuxerBundle {
	return &DemuxerBundle{}
}

// FindDemuxer returns the demuxer owning pid, or nil.
func (b *DemuxerBundle) FindDemuxer(pid uint16) *Demuxer {
	for _, s := range b.streams {
		if s.PID() == pid {
			return s
		}
	}
	return nil
}

// FeedTSPacket routes one decoded TS packet to the demuxer owning its PID.
// It reports false if no demuxer in the bundle owns that PID.
func (b *DemuxerBundle) FeedTSPacket(pkt tspacket.Packet) bool {
	d := b.FindDemuxer(pkt.PID)
	if d == nil {
		return false
	}
	return d.Feed(pkt)
}

// Streams returns the bundle's demuxers in their current order.
func (b *DemuxerBundle) Streams() []*Demuxer {
	return b.streams
}

// Len reports how many demuxers the bundle holds.
func (b *DemuxerBundle) Len() int {
	return len(b.streams)
}

// Clear empties the bundle.
func (b *DemuxerBundle) Clear() {
	b.streams = nil
}

// IsReady reports whether every demuxer in the bundle has parsed enough of
// its stream to know its StreamInfo.
func (b *DemuxerBundle) IsReady() bool {
	for _, s := range b.streams {
		if !s.IsParsed() {
			return false
		}
	}
	return true
}

// weightOf computes the reorder weight for one demuxer given whether its
// language matches the preferred one and the preferred audio stream type.
func weightOf(d *Demuxer, preferredLangMatches bool, preferredType streaminfo.CodecType) uint32 {
	w := uint32(0xFFFF) - uint32(d.PID()&0xFFFF)

	switch d.Content() {
	case streaminfo.ContentVideo:
		w |= weightVideo
	case streaminfo.ContentAudio:
		w |= weightAudio
		if d.CodecType() == preferredType {
			w |= weightAudioType
		}
		at := d.AudioType()
		bits := 4 - at
		if bits < 0 {
			bits = 0
		}
		if bits > 15 {
			bits = 15
		}
		w |= uint32(bits) << 16
	case streaminfo.ContentSubtitle:
		w |= weightSubtitle
	}

	if preferredLangMatches {
		w |= weightLanguage
	}

	return w
}

// Reorder stably sorts the bundle's streams by descending reorder weight,
// computed against the preferred language and preferred audio stream type.
// matchesLang reports, for one demuxer's Language(), whether it matches the
// caller's preference. The reorder is idempotent: repeating it on an
// already-ordered, unchanged bundle is a no-op.
func (b *DemuxerBundle) Reorder(matchesLang func(lang string) bool, preferredType streaminfo.CodecType) {
	type weighted struct {
		d *Demuxer
		w uint32
	}
	weighted2 := make([]weighted, len(b.streams))
	for i, s := range b.streams {
		weighted2[i] = weighted{d: s, w: weightOf(s, matchesLang(s.Language()), preferredType)}
	}

	sort.SliceStable(weighted2, func(i, j int) bool {
		return weighted2[i].w > weighted2[j].w
	})

	for i, w := range weighted2 {
		b.streams[i] = w.d
	}
}

// UpdateFrom rebuilds the bundle's demuxer set from a new StreamBundle,
// reusing the previously-parsed StreamInfo of any stream whose PID and
// codec type are unchanged, so a PMT re-scan doesn't force every decoder to
// re-learn parameters it already knew.
func UpdateFrom(bundle *streaminfo.Bundle, old *DemuxerBundle, listener Listener) *DemuxerBundle {
	next := NewDemuxerBundle()

	for _, pid := range bundle.PIDs() {
		info, _ := bundle.Get(pid)

		if old != nil {
			if prev := old.FindDemuxer(pid); prev != nil && prev.Info().IsMetaOf(info) {
				info = prev.Info()
			}
		}

		next.streams = append(next.streams, NewFromInfo(listener, info))
	}

	return next
}
