package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

func TestHandleLogin_OK(t *testing.T) {
	d := newTestDispatcher(t)
	sess := newTestSession(t)

	req := protocol.NewPayloadWriter().U32(protocol.ProtocolVersion).U8(0).String("test-client").Bytes()
	payload, failure := handleLogin(context.Background(), d, sess, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	version, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.ProtocolVersion, version)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Equal(t, "test-client", sess.clientName)
}

func TestHandleLogin_UnsupportedVersion(t *testing.T) {
	d := newTestDispatcher(t)
	sess := newTestSession(t)

	req := protocol.NewPayloadWriter().U32(protocol.ProtocolVersion + 1).U8(0).String("future-client").Bytes()
	payload, failure := handleLogin(context.Background(), d, sess, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindNotSupported.Code(), code)
}

func TestHandleGetTime(t *testing.T) {
	payload, failure := handleGetTime(context.Background(), nil, nil, protocol.NewPayloadReader(nil))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	_, err := r.U32()
	require.NoError(t, err)
	_, err = r.S32()
	require.NoError(t, err)
}

func TestHandleEnableStatistics(t *testing.T) {
	sess := newTestSession(t)
	req := protocol.NewPayloadWriter().U8(1).Bytes()
	payload, failure := handleEnableStatistics(context.Background(), nil, sess, protocol.NewPayloadReader(req))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindOK.Code(), code)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.True(t, sess.statusEnabled)
}
