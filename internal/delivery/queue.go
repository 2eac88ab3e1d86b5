// Package delivery decouples a live streamer's real-time producer from a
// possibly slow or paused client socket: a bounded in-memory FIFO that can
// switch to a disk-backed ring for time-shift/pause.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// MaxLivePackets bounds the in-memory live queue; past this, the oldest
// packet is dropped rather than blocking the producer.
const MaxLivePackets = 100

// DefaultMaxDiskSize is the default time-shift ring file size before it
// wraps back to offset 0.
const DefaultMaxDiskSize = 1 << 30 // 1 GiB

// Heartbeat is how long Dequeue waits with nothing to send before returning
// a heartbeat wakeup, so a caller can service keepalive/shutdown checks
// without busy-looping.
const Heartbeat = 3 * time.Second

// diskPollInterval is how often Dequeue retries a disk read once in
// time-shift mode but not paused (draining the ring as it's written).
const diskPollInterval = 50 * time.Millisecond

// ErrAlreadyPaused is returned by Pause(true) when already paused.
var ErrAlreadyPaused = errors.New("delivery: already paused")

// Queue is one client's delivery queue. Once paused, it creates a disk ring
// file and stays in time-shift mode for the rest of its life — resuming
// clears the pause flag but packets keep flowing through the ring, matching
// the "paused || writer open" mode test.
type Queue struct {
	mu sync.Mutex

	memPackets [][]byte
	paused     bool
	ring       *diskRing

	dir         string
	sockID      int
	maxDiskSize int64
	heartbeat   time.Duration

	notify chan struct{}
	closed bool
}

// NewQueue creates a queue for one client socket. dir is the time-shift
// storage directory; sockID distinguishes this client's ring file name.
func NewQueue(dir string, sockID int, maxDiskSize int64) *Queue {
	if maxDiskSize <= 0 {
		maxDiskSize = DefaultMaxDiskSize
	}
	return &Queue{
		dir:         dir,
		sockID:      sockID,
		maxDiskSize: maxDiskSize,
		heartbeat:   Heartbeat,
		notify:      make(chan struct{}, 1),
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// ringPath is the time-shift ring file name for this queue's socket.
func (q *Queue) ringPath() string {
	return filepath.Join(q.dir, fmt.Sprintf("ring-%d.data", q.sockID))
}

// Push enqueues one already-framed packet. In time-shift mode it's appended
// to the disk ring; otherwise it's appended to the in-memory FIFO, dropping
// the oldest packet if that would exceed MaxLivePackets. Push never blocks
// on backpressure — it is called from the streamer's producer path.
func (q *Queue) Push(pkt []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	if q.ring != nil {
		if err := q.ring.Write(pkt); err != nil {
			return err
		}
		q.wake()
		return nil
	}

	q.memPackets = append(q.memPackets, pkt)
	if len(q.memPackets) > MaxLivePackets {
		q.memPackets = q.memPackets[len(q.memPackets)-MaxLivePackets:]
	}
	q.wake()
	return nil
}

// Pause switches the queue into time-shift mode, draining any queued
// in-memory packets to the disk ring first. Pause(false) clears the pause
// flag but — per TimeShiftMode's semantics — the queue keeps writing
// through the disk ring for the rest of its life once one has been opened.
func (q *Queue) Pause(on bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !on {
		q.paused = false
		q.wake()
		return nil
	}

	if q.paused {
		return ErrAlreadyPaused
	}

	if q.ring == nil {
		ring, err := newDiskRing(q.ringPath(), q.maxDiskSize)
		if err != nil {
			return err
		}
		q.ring = ring
	}

	q.paused = true
	for _, pkt := range q.memPackets {
		if err := q.ring.Write(pkt); err != nil {
			return err
		}
	}
	q.memPackets = nil
	return nil
}

// IsPaused reports whether the queue is currently paused.
func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// TimeShiftMode reports whether packets are currently flowing through the
// disk ring, whether paused or resumed-but-still-disk-backed.
func (q *Queue) TimeShiftMode() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused || q.ring != nil
}

// Dequeue blocks until one packet is available, a heartbeat interval has
// elapsed with nothing to send (heartbeat=true, pkt=nil), or ctx is done.
// While paused it blocks indefinitely (aside from ctx) since nothing should
// be sent to the client during time-shift recording.
func (q *Queue) Dequeue(ctx context.Context) (pkt []byte, heartbeat bool, err error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false, context.Canceled
		}

		if q.paused {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		if q.ring != nil {
			ring := q.ring
			q.mu.Unlock()
			out, ok, rerr := ring.Read()
			if rerr != nil {
				return nil, false, rerr
			}
			if ok {
				return out, false, nil
			}
			select {
			case <-q.notify:
				continue
			case <-time.After(diskPollInterval):
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		if len(q.memPackets) > 0 {
			out := q.memPackets[0]
			q.memPackets = q.memPackets[1:]
			q.mu.Unlock()
			return out, false, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
			continue
		case <-time.After(q.heartbeat):
			return nil, true, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Cleanup drops all queued in-memory packets without sending them.
func (q *Queue) Cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.memPackets = nil
}

// Close cleans up the queue and removes its disk ring file, if any. Safe to
// call once, typically on streamer/client destruction.
func (q *Queue) Close() error {
	q.mu.Lock()
	ring := q.ring
	q.ring = nil
	q.closed = true
	q.memPackets = nil
	q.mu.Unlock()

	q.wake()

	if ring != nil {
		return ring.Close()
	}
	return nil
}
