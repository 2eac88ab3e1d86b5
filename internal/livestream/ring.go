package livestream

import (
	"context"
	"sync"

	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// DefaultRingSize is the default ring buffer capacity (~10 MiB, rounded down
// to a whole number of 188-byte TS packets).
const DefaultRingSize = (10 << 20) / tspacket.Size * tspacket.Size

// RingBuffer is a byte-oriented circular buffer between the receiver
// callback (the producer, which must never block: it's invoked off-task by
// the host tuner subsystem) and the streamer's main loop (the consumer,
// which reads 188-byte-aligned windows and resyncs on any lost alignment).
type RingBuffer struct {
	mu     sync.Mutex
	notify chan struct{}
	closed bool

	buf   []byte
	write int
	avail int // bytes currently buffered

	droppedTotal uint64
}

// NewRingBuffer creates a ring buffer of the given capacity, rounded down to
// a multiple of 188 bytes (a capacity below one packet is rounded up to one).
func NewRingBuffer(capacity int) *RingBuffer {
	capacity = capacity / tspacket.Size * tspacket.Size
	if capacity < tspacket.Size {
		capacity = tspacket.Size
	}
	return &RingBuffer{
		buf:    make([]byte, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push appends data to the ring, overwriting the oldest bytes if the buffer
// doesn't have room. It returns the number of bytes dropped to make room.
// Push never blocks: it is called from the receiver callback, which the
// host's tuner subsystem requires to return immediately.
func (r *RingBuffer) Push(data []byte) (dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return len(data)
	}

	if len(data) > len(r.buf) {
		// Larger than the whole ring: keep only its tail.
		dropped += len(data) - len(r.buf)
		data = data[len(data)-len(r.buf):]
	}

	if r.avail+len(data) > len(r.buf) {
		dropped += r.avail + len(data) - len(r.buf)
		r.avail = len(r.buf) - len(data)
	}

	readPos := (r.write - r.avail + len(r.buf)) % len(r.buf)
	_ = readPos // retained for clarity of the invariant below

	for i := 0; i < len(data); i++ {
		r.buf[r.write] = data[i]
		r.write = (r.write + 1) % len(r.buf)
	}
	r.avail += len(data)
	r.droppedTotal += uint64(dropped)

	r.notifyLocked()
	return dropped
}

// DroppedTotal returns the cumulative number of bytes Push has discarded to
// make room since the ring was created.
func (r *RingBuffer) DroppedTotal() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.droppedTotal
}

func (r *RingBuffer) notifyLocked() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Close wakes any blocked reader with an error and disables further writes.
func (r *RingBuffer) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.notifyLocked()
}

// ReadPacket blocks until one 188-byte TS packet is available, resyncing to
// the next valid sync-byte pair if the buffered bytes have lost alignment
// (a dropped-bytes gap from Push's overwrite can shift the stream out of
// phase with packet boundaries).
func (r *RingBuffer) ReadPacket(ctx context.Context) ([]byte, error) {
	for {
		pkt, ok := r.tryRead()
		if ok {
			return pkt, nil
		}

		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return nil, context.Canceled
		}

		select {
		case <-r.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// tryRead attempts to pull and resync one packet without blocking.
func (r *RingBuffer) tryRead() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.avail < tspacket.Size {
		return nil, false
	}

	readPos := (r.write - r.avail + len(r.buf)) % len(r.buf)

	// Resync: the byte at readPos must be 0x47 and, if a second packet is
	// buffered, the byte 188 later must be 0x47 too.
	for r.avail >= tspacket.Size {
		if r.at(readPos) == tspacket.SyncByte {
			if r.avail < 2*tspacket.Size || r.at((readPos+tspacket.Size)%len(r.buf)) == tspacket.SyncByte {
				break
			}
		}
		readPos = (readPos + 1) % len(r.buf)
		r.avail--
	}

	if r.avail < tspacket.Size {
		return nil, false
	}

	out := make([]byte, tspacket.Size)
	for i := 0; i < tspacket.Size; i++ {
		out[i] = r.at((readPos + i) % len(r.buf))
	}
	r.avail -= tspacket.Size
	return out, true
}

func (r *RingBuffer) at(i int) byte {
	return r.buf[i]
}
