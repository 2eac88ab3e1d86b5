// Package channelcache persists, per channel, the StreamBundle last learned
// from its PMT: on the next tune, the demuxer bundle can be built from cache
// instead of waiting for a fresh PAT/PMT scan to complete.
package channelcache

import (
	"sync"

	"github.com/halvarsson/xvdrd/internal/crc32mpeg"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// uidSignMask clears the top bit of a CRC-32, keeping channel UIDs
// representable as a signed 32-bit value across language/ABI boundaries.
const uidSignMask = 0x7FFFFFFF

// UID hashes a channel's identity string (its VDR-style channel ID, or any
// other string that uniquely and stably names the channel) into a 31-bit
// cache key.
func UID(channelIdentity string) uint32 {
	return crc32mpeg.Compute([]byte(channelIdentity)) & uidSignMask
}

// Cache is the process-wide channel-to-StreamBundle map. All access is
// serialized by a single mutex, matching the "process-wide singleton behind
// one lock" shape the embedding layer is expected to provide.
type Cache struct {
	mu      sync.Mutex
	entries map[uint32]*streaminfo.Bundle
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[uint32]*streaminfo.Bundle)}
}

// Get returns a clone of the cached bundle for uid, if any.
func (c *Cache) Get(uid uint32) (*streaminfo.Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[uid]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Put stores a clone of bundle under uid. A zero uid is ignored: it marks an
// invalid/unidentifiable channel, never a real cache key.
func (c *Cache) Put(uid uint32, bundle *streaminfo.Bundle) {
	if uid == 0 || bundle == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uid] = bundle.Clone()
}

// Len reports how many channels are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// UIDs returns the cache's current key set, unordered.
func (c *Cache) UIDs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint32, 0, len(c.entries))
	for uid := range c.entries {
		out = append(out, uid)
	}
	return out
}

// GC drops every cached entry whose UID is no longer reported present by
// exists, matching the load-time garbage collection against the host's
// current channel list.
func (c *Cache) GC(exists func(uid uint32) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uid := range c.entries {
		if !exists(uid) {
			delete(c.entries, uid)
		}
	}
}
