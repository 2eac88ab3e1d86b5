package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordingsCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	uid, err := store.AddRecording(ctx, Recording{
		Path:        "/recordings/show1",
		Title:       "Show One",
		ChannelName: "BBC One",
	})
	require.NoError(t, err)
	assert.NotZero(t, uid)

	count, err := store.RecordingsCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	rec, err := store.RecordingByUID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Show One", rec.Title)

	require.NoError(t, store.RenameRecording(ctx, uid, "Show One (renamed)"))
	rec, err = store.RecordingByUID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Show One (renamed)", rec.Title)

	require.NoError(t, store.SetArtwork(ctx, uid, "/art/show1.jpg", "deadbeef"))
	rec, err = store.RecordingByUID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "/art/show1.jpg", rec.ArtworkPath)

	require.NoError(t, store.DeleteRecording(ctx, uid))
	_, err = store.RecordingByUID(ctx, uid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordingByUID_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))
	_, err := store.RecordingByUID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TimersCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	number, err := store.AddTimer(ctx, Timer{
		Active:     true,
		ChannelUID: 42,
		StartTime:  1000,
		StopTime:   2000,
		File:       "Show Two",
	})
	require.NoError(t, err)
	assert.NotZero(t, number)

	count, err := store.TimersCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	timer, err := store.TimerByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, "Show Two", timer.File)

	require.NoError(t, store.SetTimerActive(ctx, number, false))
	timer, err = store.TimerByNumber(ctx, number)
	require.NoError(t, err)
	assert.False(t, timer.Active)

	updated := timer
	updated.Priority = 99
	require.NoError(t, store.UpdateTimer(ctx, number, updated))
	timer, err = store.TimerByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, 99, timer.Priority)

	require.NoError(t, store.DeleteTimer(ctx, number, false))
	_, err = store.TimerByNumber(ctx, number)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AddTimer_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	_, err := store.AddTimer(ctx, Timer{Active: true, ChannelUID: 1, StartTime: 1000, StopTime: 2000})
	require.NoError(t, err)

	_, err = store.AddTimer(ctx, Timer{Active: true, ChannelUID: 1, StartTime: 1500, StopTime: 2500})
	assert.ErrorIs(t, err, ErrDuplicateTimer)
}

func TestStore_DeleteTimer_RunningRequiresForce(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	number, err := store.AddTimer(ctx, Timer{Active: true, ChannelUID: 1, StartTime: 1000, StopTime: 2000, Recording: true})
	require.NoError(t, err)

	err = store.DeleteTimer(ctx, number, false)
	assert.ErrorIs(t, err, ErrTimerRunning)

	require.NoError(t, store.DeleteTimer(ctx, number, true))
}

func TestComputeDiskSpace(t *testing.T) {
	ds := ComputeDiskSpace(1000*1<<20, 250*1<<20)
	assert.EqualValues(t, 1000, ds.TotalMB)
	assert.EqualValues(t, 250, ds.FreeMB)
	assert.EqualValues(t, 75, ds.PercentUsed)
}
