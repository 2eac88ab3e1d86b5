package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

func seedChannels(d *Dispatcher) {
	d.channels.Load([]channels.Channel{
		{UID: 1, Number: 1, Name: "One", SID: 101, VideoType: 27},
		{UID: 2, Number: 2, Name: "Two", SID: 102, VideoType: 27},
		{UID: 3, Number: 3, Name: "Radio One", SID: 103, Radio: true},
	})
}

func TestHandleChannelsGetCount(t *testing.T) {
	d := newTestDispatcher(t)
	seedChannels(d)

	req := protocol.NewPayloadWriter().U32(0).Bytes()
	payload, failure := handleChannelsGetCount(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	count, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestHandleChannelsGetChannels(t *testing.T) {
	d := newTestDispatcher(t)
	seedChannels(d)

	req := protocol.NewPayloadWriter().U32(0).Bytes()
	payload, failure := handleChannelsGetChannels(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	number, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, number)
	name, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "One", name)
}

func TestHandleChannelsReorder(t *testing.T) {
	d := newTestDispatcher(t)
	seedChannels(d)

	req := protocol.NewPayloadWriter().U32(2).U32(2).U32(1).Bytes()
	payload, failure := handleChannelsReorder(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindOK.Code(), code)

	ch, ok := d.channels.ByUID(2)
	require.True(t, ok)
	assert.Equal(t, 1, ch.Number)
}

func TestHandleChannelsReorder_UnknownUID(t *testing.T) {
	d := newTestDispatcher(t)
	seedChannels(d)

	req := protocol.NewPayloadWriter().U32(1).U32(999).Bytes()
	payload, failure := handleChannelsReorder(context.Background(), d, nil, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindDataUnknown.Code(), code)
}
