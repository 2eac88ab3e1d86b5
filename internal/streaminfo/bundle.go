package streaminfo

import "fmt"

// ErrZeroPID is returned when a caller attempts to insert a stream with
// PID 0, which is reserved for the PAT and never carries an elementary
// stream.
var ErrZeroPID = fmt.Errorf("streaminfo: PID 0 is reserved, cannot be a stream PID")

// ErrNoneType is returned when a caller attempts to insert a stream whose
// codec type is CodecNone.
var ErrNoneType = fmt.Errorf("streaminfo: stream codec type must not be none")

// ErrVideoExists is returned when a caller attempts to insert a second video
// stream into a Bundle.
var ErrVideoExists = fmt.Errorf("streaminfo: bundle already contains a video stream")

// Bundle is the PID-to-StreamInfo map for one program (spec §3 StreamBundle).
type Bundle struct {
	Streams map[uint16]StreamInfo
	Changed bool
}

// NewBundle returns an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{Streams: make(map[uint16]StreamInfo)}
}

// Put inserts or replaces a stream, enforcing the at-most-one-video
// invariant and rejecting PID 0 / CodecNone streams.
func (b *Bundle) Put(s StreamInfo) error {
	if s.PID == 0 {
		return ErrZeroPID
	}
	if s.CodecType == CodecNone {
		return ErrNoneType
	}
	if s.Content == ContentVideo {
		if existing, ok := b.Streams[s.PID]; !ok || existing.Content != ContentVideo {
			for pid, other := range b.Streams {
				if pid != s.PID && other.Content == ContentVideo {
					return ErrVideoExists
				}
			}
		}
	}
	b.Streams[s.PID] = s
	b.Changed = true
	return nil
}

// Get looks up a stream by PID.
func (b *Bundle) Get(pid uint16) (StreamInfo, bool) {
	s, ok := b.Streams[pid]
	return s, ok
}

// Delete removes a stream by PID.
func (b *Bundle) Delete(pid uint16) {
	if _, ok := b.Streams[pid]; ok {
		delete(b.Streams, pid)
		b.Changed = true
	}
}

// Len returns the number of streams in the bundle.
func (b *Bundle) Len() int {
	return len(b.Streams)
}

// IsParsed implements spec §3's invariant:
// IsParsed ⇔ non-empty ∧ every contained StreamInfo is parsed.
func (b *Bundle) IsParsed() bool {
	if len(b.Streams) == 0 {
		return false
	}
	for _, s := range b.Streams {
		if !s.Parsed {
			return false
		}
	}
	return true
}

// Equal compares two bundles stream-for-stream using StreamInfo.Equal.
func (b *Bundle) Equal(other *Bundle) bool {
	if other == nil || len(b.Streams) != len(other.Streams) {
		return false
	}
	for pid, s := range b.Streams {
		os, ok := other.Streams[pid]
		if !ok || !s.Equal(os) {
			return false
		}
	}
	return true
}

// IsMetaOf compares two bundles by identity only (same PID set, compatible
// codec per PID), ignoring parameter differences.
func (b *Bundle) IsMetaOf(other *Bundle) bool {
	if other == nil || len(b.Streams) != len(other.Streams) {
		return false
	}
	for pid, s := range b.Streams {
		os, ok := other.Streams[pid]
		if !ok || !s.IsMetaOf(os) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the bundle.
func (b *Bundle) Clone() *Bundle {
	out := NewBundle()
	for pid, s := range b.Streams {
		cp := s
		cp.Video.SPS = append([]byte(nil), s.Video.SPS...)
		cp.Video.PPS = append([]byte(nil), s.Video.PPS...)
		cp.Video.VPS = append([]byte(nil), s.Video.VPS...)
		out.Streams[pid] = cp
	}
	return out
}

// PIDs returns the set of PIDs currently held by the bundle, unordered.
func (b *Bundle) PIDs() []uint16 {
	pids := make([]uint16, 0, len(b.Streams))
	for pid := range b.Streams {
		pids = append(pids, pid)
	}
	return pids
}
