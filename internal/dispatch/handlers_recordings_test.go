package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

func seedRecording(t *testing.T, d *Dispatcher, title string) uint32 {
	t.Helper()
	dir := filepath.Join(t.TempDir(), title)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	uid, err := d.store.AddRecording(context.Background(), metadata.Recording{
		Path:        dir,
		Title:       title,
		ChannelName: "BBC One",
		StartTime:   time.Unix(1_700_000_000, 0).UTC(),
		Duration:    3600,
	})
	require.NoError(t, err)
	return uid
}

func TestHandleRecordingsGetCountAndList(t *testing.T) {
	d := newTestDispatcher(t)
	seedRecording(t, d, "Show One")

	countPayload, failure := handleRecordingsGetCount(context.Background(), d, nil, protocol.NewPayloadReader(nil))
	require.Nil(t, failure)
	r := protocol.NewPayloadReader(countPayload)
	count, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	listPayload, failure := handleRecordingsGetList(context.Background(), d, nil, protocol.NewPayloadReader(nil))
	require.Nil(t, failure)
	r = protocol.NewPayloadReader(listPayload)
	n, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestHandleRecordingsRename(t *testing.T) {
	d := newTestDispatcher(t)
	uid := seedRecording(t, d, "Old Title")

	req := protocol.NewPayloadWriter().U32(uid).String("New Title").Bytes()
	payload, failure := handleRecordingsRename(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)
	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindOK.Code(), code)

	rec, err := d.store.RecordingByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "New Title", rec.Title)
	_, statErr := os.Stat(rec.Path)
	assert.NoError(t, statErr)
}

func TestHandleRecordingsDelete(t *testing.T) {
	d := newTestDispatcher(t)
	uid := seedRecording(t, d, "Doomed")
	rec, err := d.store.RecordingByUID(context.Background(), uid)
	require.NoError(t, err)

	req := protocol.NewPayloadWriter().U32(uid).Bytes()
	payload, failure := handleRecordingsDelete(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)
	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindOK.Code(), code)

	_, statErr := os.Stat(rec.Path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = d.store.RecordingByUID(context.Background(), uid)
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestHandleRecordingsDelete_Unknown(t *testing.T) {
	d := newTestDispatcher(t)
	req := protocol.NewPayloadWriter().U32(999).Bytes()
	payload, failure := handleRecordingsDelete(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)
	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindDataUnknown.Code(), code)
}

func TestHandleRecordingsGetDiskSpace(t *testing.T) {
	d := newTestDispatcher(t)
	payload, failure := handleRecordingsGetDiskSpace(context.Background(), d, nil, protocol.NewPayloadReader(nil))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	total, err := r.U32()
	require.NoError(t, err)
	assert.NotZero(t, total)
}

func TestHandleRecordingsArtwork(t *testing.T) {
	d := newTestDispatcher(t)
	uid := seedRecording(t, d, "With Art")

	setReq := protocol.NewPayloadWriter().U32(uid).String("/art/p.jpg").String("abc123").Bytes()
	_, failure := handleRecordingsSetArtwork(context.Background(), d, nil, protocol.NewPayloadReader(setReq))
	require.Nil(t, failure)

	getReq := protocol.NewPayloadWriter().U32(uid).Bytes()
	payload, failure := handleRecordingsGetArtwork(context.Background(), d, nil, protocol.NewPayloadReader(getReq))
	require.Nil(t, failure)
	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindOK.Code(), code)
	path, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "/art/p.jpg", path)
}
