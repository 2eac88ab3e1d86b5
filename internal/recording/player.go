package recording

import (
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/patpmt"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// packetsPerBlock/blockSize match getNextPacket's 20-TS-packet read unit.
const packetsPerBlock = 20
const blockSize = tspacket.Size * packetsPerBlock

// EventKind distinguishes the two item kinds GetPacket produces.
type EventKind int

const (
	EventPacket EventKind = iota
	EventStreamChange
)

// Event is one item produced by Player.GetPacket, stamped with the player's
// current position and the recording's total length for client-side scrub
// UI.
type Event struct {
	Kind   EventKind
	Packet demux.StreamPacket
	Bundle *streaminfo.Bundle

	Position    uint64
	TotalLength uint64
}

// Player replays a recording's TS segments through a PAT/PMT filter and
// demuxer bundle in 20-packet blocks, gating output on the first I-frame
// seen since construction or the last seek. Unlike the live streamer, it has
// no externally-supplied service ID: it bootstraps one from the recording's
// own embedded PAT the first time it sees one.
type Player struct {
	segments *Segments
	position int64
	block    []byte

	sidKnown  bool
	filter    *patpmt.Filter
	bundle    *demux.DemuxerBundle
	curBundle *streaminfo.Bundle

	streamChangePending bool
	firstKeyFrameSeen   bool

	pending []Event
}

// NewPlayer opens a recording directory's segment table and prepares it for
// playback from position 0.
func NewPlayer(dir string) (*Player, error) {
	segs, err := ScanSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Player{
		segments:            segs,
		block:               make([]byte, blockSize),
		bundle:              demux.NewDemuxerBundle(),
		streamChangePending: true,
	}, nil
}

// TotalLength is the recording's virtual length in bytes.
func (p *Player) TotalLength() int64 { return p.segments.TotalLength() }

// Position is the player's current virtual read position.
func (p *Player) Position() int64 { return p.position }

// Close releases the player's open segment file handle.
func (p *Player) Close() error { return p.segments.Close() }

// SendStreamPacket implements demux.Listener: queues one demultiplexed
// access unit, held back until the first I-frame has been seen since
// construction or the last seek.
func (p *Player) SendStreamPacket(pkt demux.StreamPacket) {
	if pkt.FrameType == esparser.FrameI {
		p.firstKeyFrameSeen = true
	}
	if !p.firstKeyFrameSeen {
		return
	}
	p.pending = append(p.pending, Event{
		Kind:        EventPacket,
		Packet:      pkt,
		Position:    uint64(p.position),
		TotalLength: uint64(p.segments.TotalLength()),
	})
}

// RequestStreamChange implements demux.Listener: arms the pending
// stream-change flag, picked up once the bundle is ready.
func (p *Player) RequestStreamChange() {
	p.streamChangePending = true
}

// scanPSI feeds one TS packet through the PAT/PMT filter, if it's on the PID
// the filter currently wants. The filter's expected service ID is
// bootstrapped from the first PAT section seen, since a recording carries
// no externally-known channel identity the way a live tune does.
func (p *Player) scanPSI(tp tspacket.Packet) {
	if len(tp.Payload) == 0 {
		return
	}

	if !p.sidKnown {
		if tp.PID != 0 {
			return
		}
		sid, err := patpmt.FirstServiceID(tp.Payload)
		if err != nil {
			return
		}
		p.filter = patpmt.NewFilter(sid)
		p.sidKnown = true
	}

	if tp.PID != p.filter.WantPID() {
		return
	}

	switch p.filter.State() {
	case patpmt.StateWaitingPAT:
		p.filter.FeedPAT(tp.Payload)
	case patpmt.StateHavePMT:
		bundle, err := p.filter.FeedPMT(tp.Payload)
		if err != nil || bundle == nil {
			// ErrVersionChanged resets the filter to StateWaitingPAT; the
			// next PAT-PID packet resumes the scan from there.
			return
		}
		p.applyBundle(bundle)
	}
}

// applyBundle rebuilds the demuxer bundle from a freshly parsed PMT,
// reusing already-parsed StreamInfo for unchanged streams, and skips the
// rebuild entirely if the new bundle is identical to the current one.
func (p *Player) applyBundle(bundle *streaminfo.Bundle) {
	if p.curBundle != nil && p.curBundle.Equal(bundle) {
		return
	}
	p.bundle = demux.UpdateFrom(bundle, p.bundle, p)
	p.curBundle = bundle
	p.streamChangePending = true
}

// getNextBlock reads and processes one 20-packet block, returning the next
// queued Event (if any resulted) and whether the recording is now at EOF. A
// short read (including a trailing partial block smaller than one full
// block) is treated as EOF rather than advancing partway through it.
func (p *Player) getNextBlock() (*Event, bool, error) {
	n, err := p.segments.Read(p.block, p.position)
	if err != nil {
		return nil, false, err
	}
	if n != blockSize {
		return nil, true, nil
	}
	p.position += int64(n)

	for i := 0; i < packetsPerBlock; i++ {
		raw := p.block[i*tspacket.Size : (i+1)*tspacket.Size]
		tp, err := tspacket.Parse(raw)
		if err != nil || !tp.Usable() {
			continue
		}
		p.scanPSI(tp)
		if p.bundle != nil {
			p.bundle.FeedTSPacket(tp)
		}
	}

	if p.streamChangePending && p.bundle != nil && p.bundle.IsReady() {
		p.streamChangePending = false
		return &Event{
			Kind:        EventStreamChange,
			Bundle:      p.curBundle,
			Position:    uint64(p.position),
			TotalLength: uint64(p.segments.TotalLength()),
		}, false, nil
	}

	if len(p.pending) == 0 {
		return nil, false, nil
	}
	ev := p.pending[0]
	p.pending = p.pending[1:]
	return &ev, false, nil
}

// GetPacket processes blocks until one Event drops out or the recording
// reaches EOF, in which case it returns (nil, nil).
func (p *Player) GetPacket() (*Event, error) {
	for p.position < p.segments.TotalLength() {
		ev, eof, err := p.getNextBlock()
		if err != nil {
			return nil, err
		}
		if eof {
			return nil, nil
		}
		if ev != nil {
			return ev, nil
		}
	}
	return nil, nil
}

// Seek rounds position down to a 188-byte boundary, resets the PAT/PMT scan
// and demuxer bundle, rearms the first-I-frame gate, and discards any queued
// packets. It reports false if position is at or past the recording's end.
func (p *Player) Seek(position uint64) (bool, error) {
	newPos := int64(position/uint64(tspacket.Size)) * int64(tspacket.Size)
	if newPos >= p.segments.TotalLength() {
		return false, nil
	}
	p.position = newPos

	p.sidKnown = false
	p.filter = nil
	p.curBundle = nil
	p.bundle = demux.NewDemuxerBundle()
	p.streamChangePending = true
	p.firstKeyFrameSeen = false
	p.pending = nil

	return true, nil
}
