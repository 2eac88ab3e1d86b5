package dispatch

import (
	"context"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleEpgGetForChannel implements OPCODE 120: U32 channelUID | U32
// startTime | U32 duration. Response: U32 eventCount, always 0. EPG
// ingestion is not part of this server; a client asking for guide data over
// this opcode gets an empty
// but well-formed answer rather than NOT_SUPPORTED, since an empty guide is
// a normal state a real host can be in too.
func handleEpgGetForChannel(_ context.Context, _ *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	if _, err := r.U32(); err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "epg get for channel: %w", err)
	}
	if _, err := r.U32(); err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "epg get for channel: %w", err)
	}
	if _, err := r.U32(); err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "epg get for channel: %w", err)
	}
	return protocol.NewPayloadWriter().U32(0).Bytes(), nil
}
