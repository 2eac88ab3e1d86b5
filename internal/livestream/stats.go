package livestream

import "time"

// Stats is a point-in-time snapshot of one Streamer's delivery counters,
// mirroring the bitrate/dropped-byte/per-PID packet counts
// src/live/livestreamer.c keeps for its info() diagnostics.
type Stats struct {
	ChannelUID   uint32
	Attached     bool
	PacketsSent  uint64
	BytesSent    uint64
	BytesDropped uint64
	PIDPackets   map[uint16]uint64
	Since        time.Time
}

// Stats returns a snapshot of this Streamer's delivery counters since the
// current channel was attached.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	pidPackets := make(map[uint16]uint64, len(s.pidPackets))
	for pid, n := range s.pidPackets {
		pidPackets[pid] = n
	}

	var dropped uint64
	if s.ring != nil {
		dropped = s.ring.DroppedTotal()
	}

	return Stats{
		ChannelUID:   s.channelUID,
		Attached:     s.attached,
		PacketsSent:  s.packetsSent,
		BytesSent:    s.bytesSent,
		BytesDropped: dropped,
		PIDPackets:   pidPackets,
		Since:        s.attachedAt,
	}
}
