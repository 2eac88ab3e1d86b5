package delivery

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// diskRing is the on-disk time-shift buffer for one paused client: a
// length-prefixed packet log that wraps back to offset 0 once it reaches
// maxSize, rather than growing without bound. A lagging read cursor trails
// the write cursor; hitting EOF past the configured size is the signal to
// rewind the reader to the start.
type diskRing struct {
	path    string
	maxSize int64

	write *os.File
	read  *os.File
}

func newDiskRing(path string, maxSize int64) (*diskRing, error) {
	write, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("delivery: create ring file: %w", err)
	}
	read, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("delivery: open ring file for read: %w", err)
	}
	return &diskRing{path: path, maxSize: maxSize, write: write, read: read}, nil
}

// Write appends one length-prefixed packet, truncating and wrapping the
// write cursor back to offset 0 once the file reaches maxSize.
func (r *diskRing) Write(pkt []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(pkt)))

	if _, err := r.write.Write(header[:]); err != nil {
		return fmt.Errorf("delivery: write ring header: %w", err)
	}
	if _, err := r.write.Write(pkt); err != nil {
		return fmt.Errorf("delivery: write ring payload: %w", err)
	}

	pos, err := r.write.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("delivery: ring write offset: %w", err)
	}
	if pos >= r.maxSize {
		if err := r.write.Truncate(pos); err != nil {
			return fmt.Errorf("delivery: truncate ring: %w", err)
		}
		if _, err := r.write.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("delivery: rewind ring writer: %w", err)
		}
	}
	return nil
}

// Read returns the next queued packet, or ok=false if none is available
// yet. It rewinds the read cursor to offset 0 exactly once per call when it
// has already consumed past maxSize, mirroring the writer's wraparound.
func (r *diskRing) Read() (pkt []byte, ok bool, err error) {
	pkt, ok, err = r.readOnce()
	if ok || err != nil {
		return pkt, ok, err
	}

	pos, err := r.read.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, false, fmt.Errorf("delivery: ring read offset: %w", err)
	}
	if pos < r.maxSize {
		return nil, false, nil
	}
	if _, err := r.read.Seek(0, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("delivery: rewind ring reader: %w", err)
	}
	return r.readOnce()
}

func (r *diskRing) readOnce() ([]byte, bool, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.read, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("delivery: read ring header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	pkt := make([]byte, length)
	if _, err := io.ReadFull(r.read, pkt); err != nil {
		return nil, false, fmt.Errorf("delivery: read ring payload: %w", err)
	}
	return pkt, true, nil
}

// Close releases the ring's file handles and removes it from disk.
func (r *diskRing) Close() error {
	r.write.Close()
	r.read.Close()
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delivery: remove ring file: %w", err)
	}
	return nil
}
