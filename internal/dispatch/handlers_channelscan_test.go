package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

func TestHandleChannelscanNotSupported(t *testing.T) {
	payload, failure := handleChannelscanNotSupported(context.Background(), nil, nil, protocol.NewPayloadReader(nil))
	require.Nil(t, failure)

	r := protocol.NewPayloadReader(payload)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindNotSupported.Code(), code)
}
