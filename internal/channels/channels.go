// Package channels owns the host channel list: an external collaborator
// the dispatcher enumerates for CHANNELS_GETCHANNELS/GETCOUNT and mutates
// for the channel-list reorder command. Like the channel cache, the list is
// a single shared, mutex-guarded collection rather than a per-client copy —
// spec §5's "host channel list is read under a shared reader/writer lock;
// any write path (re-order command) takes the writer lock briefly."
package channels

import (
	"fmt"
	"sort"
	"sync"
)

// Channel is one entry of the host's channel list, mirroring the fields
// cCmdControl::processCHANNELS_GetChannels reads off a VDR cChannel.
type Channel struct {
	UID         uint32
	Number      int
	Name        string
	SID         uint16
	Source      uint32
	Transponder uint32
	GroupIndex  int
	CA          uint32 // nonzero CA system ID: channel is encrypted
	VideoType   uint32 // mirrors cChannel::Vtype() (2 = MPEG-2, 27 = H.264, ...)
	Radio       bool
}

// List is the host's channel list: ordered by Number, looked up by UID.
// It is loaded wholesale by the embedding layer (channel-list ingestion is
// explicitly out of core scope, spec §1) and read constantly by the
// dispatcher.
type List struct {
	mu       sync.RWMutex
	byNumber []Channel
	byUID    map[uint32]int // index into byNumber
}

// NewList returns an empty channel list.
func NewList() *List {
	return &List{byUID: make(map[uint32]int)}
}

// Load replaces the entire channel list, sorting by Number. Safe to call
// repeatedly as the host's EPG/channel-list ingestion refreshes it.
func (l *List) Load(chans []Channel) {
	sorted := make([]Channel, len(chans))
	copy(sorted, chans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	byUID := make(map[uint32]int, len(sorted))
	for i, ch := range sorted {
		byUID[ch.UID] = i
	}

	l.mu.Lock()
	l.byNumber = sorted
	l.byUID = byUID
	l.mu.Unlock()
}

// Count reports how many channels of the given kind (radio or TV) the list
// holds, matching cCmdControl::processCHANNELS_ChannelsCount (which counts
// all channels, independent of radio/TV — kept as a parameter here since
// GetChannels itself filters by it and a dispatcher handler wants a
// consistent count for the same filter).
func (l *List) Count(radio bool) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ch := range l.byNumber {
		if ch.SID != 0 && ch.Radio == radio {
			n++
		}
	}
	return n
}

// All returns every channel of the given kind (radio or TV) in Number order,
// skipping invalid (SID 0) entries the way GetChannels does.
func (l *List) All(radio bool) []Channel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Channel, 0, len(l.byNumber))
	for _, ch := range l.byNumber {
		if ch.SID == 0 || ch.Radio != radio {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// ByUID looks up one channel by its UID, the identifier the streamer's
// Switch and the channel cache key on.
func (l *List) ByUID(uid uint32) (Channel, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byUID[uid]
	if !ok {
		return Channel{}, false
	}
	return l.byNumber[idx], true
}

// ErrUnknownUID is returned by Reorder when an entry in the requested order
// doesn't match any channel currently in the list.
var ErrUnknownUID = fmt.Errorf("channels: unknown channel UID")

// Reorder renumbers the channel list to match the given UID order: the
// first UID becomes Number 1, the second Number 2, and so on. UIDs not
// mentioned keep their relative order appended after the reordered set.
// This is the thin write path spec §5 describes taking the writer lock.
func (l *List) Reorder(order []uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := make(map[uint32]bool, len(order))
	for _, uid := range order {
		if _, ok := l.byUID[uid]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownUID, uid)
		}
		want[uid] = true
	}

	reordered := make([]Channel, 0, len(l.byNumber))
	for _, uid := range order {
		reordered = append(reordered, l.byNumber[l.byUID[uid]])
	}
	for _, ch := range l.byNumber {
		if !want[ch.UID] {
			reordered = append(reordered, ch)
		}
	}

	for i := range reordered {
		reordered[i].Number = i + 1
	}

	byUID := make(map[uint32]int, len(reordered))
	for i, ch := range reordered {
		byUID[ch.UID] = i
	}

	l.byNumber = reordered
	l.byUID = byUID
	return nil
}
