package recording

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegmentFile(t *testing.T, dir string, index int, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(fileNameForIndex(dir, index), data, 0o644))
}

func TestScanSegments_BuildsByteRangeTable(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, 0, make([]byte, 100))
	writeSegmentFile(t, dir, 1, make([]byte, 50))

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), segs.TotalLength())
	assert.Equal(t, 0, segs.indexAt(0))
	assert.Equal(t, 0, segs.indexAt(99))
	assert.Equal(t, 1, segs.indexAt(100))
	assert.Equal(t, 1, segs.indexAt(149))
	assert.Equal(t, -1, segs.indexAt(150))
}

func TestScanSegments_StopsAtFirstGap(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, 0, make([]byte, 10))
	writeSegmentFile(t, dir, 2, make([]byte, 10)) // gap at index 1

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(10), segs.TotalLength())
}

func TestScanSegments_NoFiles_ReturnsErrNoSegments(t *testing.T) {
	_, err := ScanSegments(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestScanSegments_LegacyOnly_ReturnsErrLegacyFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(legacyFileNameForIndex(dir, 0), make([]byte, 10), 0o644))

	_, err := ScanSegments(dir)
	assert.ErrorIs(t, err, ErrLegacyFormat)
}

func TestSegments_Read_SingleSegment(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	writeSegmentFile(t, dir, 0, data)

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	defer segs.Close()

	buf := make([]byte, 40)
	n, err := segs.Read(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[10:50], buf)
}

func TestSegments_Read_SpansSegmentBoundary(t *testing.T) {
	dir := t.TempDir()
	first := make([]byte, 10)
	for i := range first {
		first[i] = 0xAA
	}
	second := make([]byte, 10)
	for i := range second {
		second[i] = 0xBB
	}
	writeSegmentFile(t, dir, 0, first)
	writeSegmentFile(t, dir, 1, second)

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	defer segs.Close()

	buf := make([]byte, 6)
	n, err := segs.Read(buf, 7) // 3 bytes left in segment 0, 3 from segment 1
	require.NoError(t, err)
	require.Equal(t, 6, n)
	assert.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xBB, 0xBB, 0xBB}, buf)
}

func TestSegments_Read_ClampsAtTotalLength(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, 0, make([]byte, 10))

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	defer segs.Close()

	buf := make([]byte, 20)
	n, err := segs.Read(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSegments_Read_PastEnd_ReturnsZero(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, 0, make([]byte, 10))

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	defer segs.Close()

	buf := make([]byte, 10)
	n, err := segs.Read(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSegments_Rescan_PicksUpAppendedFile(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFile(t, dir, 0, make([]byte, 10))

	segs, err := ScanSegments(dir)
	require.NoError(t, err)
	defer segs.Close()
	assert.Equal(t, int64(10), segs.TotalLength())

	writeSegmentFile(t, dir, 1, make([]byte, 5))
	require.NoError(t, segs.Rescan())
	assert.Equal(t, int64(15), segs.TotalLength())
}

func TestFileNameForIndex_MatchesFiveDigitScheme(t *testing.T) {
	assert.Equal(t, filepath.Join("rec", "00001.ts"), fileNameForIndex("rec", 0))
	assert.Equal(t, filepath.Join("rec", "00042.ts"), fileNameForIndex("rec", 41))
}
