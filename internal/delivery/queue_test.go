package delivery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushDequeue_FIFO(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, 0)
	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, hb, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, hb)
	assert.Equal(t, "a", string(got))

	got, hb, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, hb)
	assert.Equal(t, "b", string(got))
}

func TestQueue_OverflowDropsOldest(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, 0)
	for i := 0; i < MaxLivePackets+10; i++ {
		require.NoError(t, q.Push([]byte{byte(i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(10), got[0])
}

func TestQueue_DequeueHeartbeatOnEmpty(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, 0)
	q.heartbeat = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, hb, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.True(t, hb)
}

func TestQueue_Pause_CreatesRingAndDrainsMemory(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(dir, 42, DefaultMaxDiskSize)

	require.NoError(t, q.Push([]byte("live-1")))
	require.NoError(t, q.Pause(true))

	_, err := os.Stat(filepath.Join(dir, "ring-42.data"))
	require.NoError(t, err)
	assert.True(t, q.TimeShiftMode())
	assert.True(t, q.IsPaused())

	require.NoError(t, q.Push([]byte("disk-1")))

	require.NoError(t, q.Pause(false))
	assert.False(t, q.IsPaused())
	assert.True(t, q.TimeShiftMode(), "stays disk-backed once a ring has been opened")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "live-1", string(got))

	got, _, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "disk-1", string(got))
}

func TestQueue_Pause_Twice_Errors(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, DefaultMaxDiskSize)
	require.NoError(t, q.Pause(true))
	assert.ErrorIs(t, q.Pause(true), ErrAlreadyPaused)
}

func TestQueue_DequeueBlocksWhilePaused(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, DefaultMaxDiskSize)
	require.NoError(t, q.Pause(true))
	require.NoError(t, q.Push([]byte("x")))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close_RemovesRingFile(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(dir, 7, DefaultMaxDiskSize)
	require.NoError(t, q.Pause(true))

	path := filepath.Join(dir, "ring-7.data")
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, q.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestQueue_Cleanup_DropsMemoryPackets(t *testing.T) {
	q := NewQueue(t.TempDir(), 1, 0)
	q.heartbeat = 20 * time.Millisecond
	require.NoError(t, q.Push([]byte("x")))
	q.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, hb, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.True(t, hb)
}
