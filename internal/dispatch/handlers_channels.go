package dispatch

import (
	"context"
	"errors"

	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleChannelsGetCount implements OPCODE 61: U32 radio. Response: U32
// count, matching processCHANNELS_ChannelsCount's filtered count.
func handleChannelsGetCount(_ context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	radio, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "channels get count: %w", err)
	}
	count := d.channels.Count(radio != 0)
	return protocol.NewPayloadWriter().U32(uint32(count)).Bytes(), nil
}

// handleChannelsGetChannels implements OPCODE 63: U32 radio. Response, for
// each non-group-separator channel of the requested kind: U32 number |
// String name | U32 uid | U32 groupIndex | U32 ca | U32 videoType, the
// version-2 field order from processCHANNELS_GetChannels (v1's SID-keyed
// variant is out of scope).
func handleChannelsGetChannels(_ context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	radio, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "channels get channels: %w", err)
	}

	w := protocol.NewPayloadWriter()
	for _, ch := range d.channels.All(radio != 0) {
		w.U32(uint32(ch.Number)).
			String(ch.Name).
			U32(ch.UID).
			U32(uint32(ch.GroupIndex)).
			U32(ch.CA).
			U32(ch.VideoType)
	}
	return w.Bytes(), nil
}

// handleChannelsReorder implements the supplemental OPCODE 64: U32 count
// followed by count U32 UIDs giving the new channel order. cmdcontrol.c has
// no analogue — VDR itself owns channel ordering through its own channels
// editor — but a host driving this server through a headless tuner still
// needs some way to reorder its own list.
func handleChannelsReorder(_ context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	count, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "channels reorder: %w", err)
	}

	order := make([]uint32, count)
	for i := range order {
		uid, err := r.U32()
		if err != nil {
			return nil, protocol.NewError(protocol.KindDataInvalid, "channels reorder: %w", err)
		}
		order[i] = uid
	}

	if err := d.channels.Reorder(order); err != nil {
		if errors.Is(err, channels.ErrUnknownUID) {
			return codedReply(protocol.KindDataUnknown, nil), nil
		}
		return codedReply(protocol.KindDataInvalid, nil), nil
	}
	return codedReply(protocol.KindOK, nil), nil
}
