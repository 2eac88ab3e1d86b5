package channelcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// fileMagic is the on-disk format sentinel. "V1" (pre-StreamInfo-rewrite
// format) is not recognized: an old cache file is silently treated as
// missing rather than partially decoded.
var fileMagic = [2]byte{'V', '2'}

// maxCachedChannels bounds the channel count accepted on Load as a sanity
// check against a corrupted or foreign file; Load treats a file name/count
// above this as corrupt and starts with an empty cache rather than risk
// runaway allocation.
const maxCachedChannels = 10000

// Save atomically writes the cache to path: the encoded data is written to
// path+".bak" first, then renamed into place, so a crash mid-write never
// leaves a truncated cache file where the real one used to be.
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	uids := make([]uint32, 0, len(c.entries))
	for uid := range c.entries {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var buf bytes.Buffer
	buf.Write(fileMagic[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(uids)))

	for _, uid := range uids {
		bundle := c.entries[uid]
		pids := bundle.PIDs()
		sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

		binary.Write(&buf, binary.BigEndian, uid)
		binary.Write(&buf, binary.BigEndian, uint32(len(pids)))
		for _, pid := range pids {
			info, _ := bundle.Get(pid)
			buf.Write(streaminfo.Marshal(info))
		}
	}
	c.mu.Unlock()

	bakPath := path + ".bak"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("channelcache: creating cache directory: %w", err)
	}
	if err := os.WriteFile(bakPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("channelcache: writing %s: %w", bakPath, err)
	}
	if err := os.Rename(bakPath, path); err != nil {
		return fmt.Errorf("channelcache: renaming %s to %s: %w", bakPath, path, err)
	}
	return nil
}

// Load replaces the cache's contents with the file at path. A missing file,
// a bad magic, or a channel count above maxCachedChannels all leave the
// cache empty rather than returning an error: a corrupted or absent cache
// file is never fatal to startup.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.mu.Lock()
		c.entries = make(map[uint32]*streaminfo.Bundle)
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("channelcache: reading %s: %w", path, err)
	}

	entries, ok := decode(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.entries = make(map[uint32]*streaminfo.Bundle)
		return nil
	}
	c.entries = entries
	return nil
}

// decode parses the on-disk record. It returns ok=false for any structural
// problem (bad magic, truncation, an over-large count): the caller treats
// that the same as "no cache file", never as a fatal error.
func decode(data []byte) (map[uint32]*streaminfo.Bundle, bool) {
	if len(data) < 6 || data[0] != fileMagic[0] || data[1] != fileMagic[1] {
		return nil, false
	}
	count := binary.BigEndian.Uint32(data[2:6])
	if count > maxCachedChannels {
		return nil, false
	}

	out := make(map[uint32]*streaminfo.Bundle, count)
	offset := 6

	for i := uint32(0); i < count; i++ {
		if offset+8 > len(data) {
			return nil, false
		}
		uid := binary.BigEndian.Uint32(data[offset : offset+4])
		streamCount := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		offset += 8

		bundle := streaminfo.NewBundle()
		for s := uint32(0); s < streamCount; s++ {
			info, n, err := streaminfo.Unmarshal(data[offset:])
			if err != nil {
				return nil, false
			}
			offset += n
			_ = bundle.Put(info)
		}

		if uid != 0 {
			out[uid] = bundle
		}
	}

	return out, true
}
