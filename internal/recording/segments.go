// Package recording replays an on-disk TS recording through the same
// demuxer pipeline the live streamer uses, adding random-access seek over a
// multi-file segment layout.
package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxBlockRead caps a single getBlock call, mirroring cRecPlayer::getBlock's
// 256 KiB ceiling.
const maxBlockRead = 256 * 1024

// ErrLegacyFormat is returned by ScanSegments when a recording directory
// contains only legacy PES (NNN.vdr) files. Decision recorded in DESIGN.md:
// legacy PES recordings are out of scope.
var ErrLegacyFormat = errors.New("recording: legacy PES (.vdr) recordings are not supported")

// ErrNoSegments is returned when a recording directory names no TS segment
// files at all (not even a legacy one).
var ErrNoSegments = errors.New("recording: no segment files found")

// segment is one file's {start,end} byte range in the virtual linear
// recording address space.
type segment struct {
	start, end int64
	path       string
}

// Segments is the ordered, scanned set of files making up one recording,
// addressed as a single virtual byte stream.
type Segments struct {
	dir      string
	segments []segment
	total    int64

	openIdx int
	openF   *os.File
}

// fileNameForIndex returns the TS segment filename for a zero-based index,
// matching cRecPlayer::fileNameFromIndex's "%05i.ts" scheme (1-based on
// disk).
func fileNameForIndex(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%05d.ts", index+1))
}

// legacyFileNameForIndex returns the old PES naming scheme, used only to
// detect (and reject) legacy recordings.
func legacyFileNameForIndex(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%03d.vdr", index+1))
}

// ScanSegments stats successive 00001.ts, 00002.ts, ... files in dir,
// building the segment table. If no .ts files exist but a legacy .vdr
// recording is present, it returns ErrLegacyFormat rather than trying to
// read PES data as if it were TS.
func ScanSegments(dir string) (*Segments, error) {
	s := &Segments{dir: dir, openIdx: -1}

	for i := 0; ; i++ {
		info, err := os.Stat(fileNameForIndex(dir, i))
		if err != nil {
			break
		}
		seg := segment{start: s.total, path: fileNameForIndex(dir, i)}
		s.total += info.Size()
		seg.end = s.total
		s.segments = append(s.segments, seg)
	}

	if len(s.segments) > 0 {
		return s, nil
	}

	if _, err := os.Stat(legacyFileNameForIndex(dir, 0)); err == nil {
		return nil, ErrLegacyFormat
	}

	return nil, ErrNoSegments
}

// TotalLength is the virtual recording length in bytes.
func (s *Segments) TotalLength() int64 {
	return s.total
}

// Rescan re-stats the recording directory, picking up segments appended
// since the last scan (e.g. a recording still in progress). Safe to call
// while segments are being read.
func (s *Segments) Rescan() error {
	fresh, err := ScanSegments(s.dir)
	if err != nil {
		return err
	}
	s.segments = fresh.segments
	s.total = fresh.total
	return nil
}

// indexAt returns the segment index containing byte position, or -1.
func (s *Segments) indexAt(position int64) int {
	for i, seg := range s.segments {
		if position >= seg.start && position < seg.end {
			return i
		}
	}
	return -1
}

func (s *Segments) openSegment(idx int) (*os.File, error) {
	if idx == s.openIdx && s.openF != nil {
		return s.openF, nil
	}
	s.closeSegment()

	f, err := os.Open(s.segments[idx].path)
	if err != nil {
		return nil, err
	}
	s.openIdx = idx
	s.openF = f
	return f, nil
}

func (s *Segments) closeSegment() {
	if s.openF != nil {
		s.openF.Close()
		s.openF = nil
		s.openIdx = -1
	}
}

// Read fills buf (at most len(buf) bytes, and at most maxBlockRead) starting
// at virtual position, clamped to the recording's total length. It may span
// a segment boundary, recursing into the next segment the way getBlock's
// "divide and conquer" tail does. It returns the number of bytes filled.
func (s *Segments) Read(buf []byte, position int64) (int, error) {
	amount := len(buf)
	if amount > maxBlockRead {
		amount = maxBlockRead
	}
	if int64(amount) > s.total {
		amount = int(s.total)
	}
	if position >= s.total {
		return 0, nil
	}
	if position+int64(amount) > s.total {
		amount = int(s.total - position)
	}
	if amount <= 0 {
		return 0, nil
	}

	idx := s.indexAt(position)
	if idx == -1 {
		return 0, nil
	}

	f, err := s.openSegment(idx)
	if err != nil {
		return 0, nil
	}

	filePos := position - s.segments[idx].start
	if _, err := f.Seek(filePos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("recording: seek to %d in %s: %w", filePos, s.segments[idx].path, err)
	}

	n, err := f.Read(buf[:amount])
	if n <= 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, nil
	}

	if n < amount {
		more, err := s.Read(buf[n:amount], position+int64(n))
		if err != nil {
			return n, err
		}
		n += more
	}

	return n, nil
}

// Close releases the currently-open segment file handle, if any.
func (s *Segments) Close() error {
	s.closeSegment()
	return nil
}
