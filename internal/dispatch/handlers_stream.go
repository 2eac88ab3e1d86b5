package dispatch

import (
	"context"
	"errors"

	"github.com/halvarsson/xvdrd/internal/delivery"
	"github.com/halvarsson/xvdrd/internal/livestream"
	"github.com/halvarsson/xvdrd/internal/protocol"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// cmdcontrol.c has no handler for any of the live-streaming opcodes below:
// its own comment over the OPCODE 20-39 band says they're handled by
// cConnection::Action instead, and no connection.c-equivalent file made it
// into this rewrite's reference material. These handlers are therefore
// built directly from internal/livestream.Streamer's and
// internal/delivery.Queue's own public method set rather than transcribed
// from a missing original.

// handleStreamOpen implements OPCODE 20: U32 channelUID | U32 priority.
// Response: U32 code, with no further fields on success — the client's
// first MUXPKT/STREAM_CHANGE events arrive asynchronously over the
// session's delivery queue, not in this reply.
func handleStreamOpen(_ context.Context, d *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	channelUID, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "stream open: %w", err)
	}
	priority, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "stream open: %w", err)
	}

	ch, ok := d.channels.ByUID(channelUID)
	if !ok {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}

	sess.mu.Lock()
	if sess.streamer != nil {
		sess.streamer.Detach()
	}
	streamer := livestream.New(int(priority), d.cfg.Server.StreamTimeout(), d.cache, d.picker, sess)
	streamer.SetLanguage(d.cfg.Preferences.Language, streaminfo.CodecType(d.cfg.Preferences.AudioType))
	streamer.SetWaitForIFrame(true)
	sess.streamer = streamer
	sess.mu.Unlock()

	if err := streamer.Switch(ch.UID, ch.SID); err != nil {
		sess.mu.Lock()
		sess.streamer = nil
		sess.mu.Unlock()
		return codedReply(streamSwitchErrorKind(err), nil), nil
	}

	return codedReply(protocol.KindOK, nil), nil
}

// streamSwitchErrorKind maps one of livestream's classified Switch errors
// to the wire ResponseCode family closest to its meaning.
func streamSwitchErrorKind(err error) protocol.ErrorKind {
	switch {
	case errors.Is(err, livestream.ErrEncrypted):
		return protocol.KindEncrypted
	case errors.Is(err, livestream.ErrAllTunersBusy):
		return protocol.KindDataLocked
	case errors.Is(err, livestream.ErrRecordingBlocked):
		return protocol.KindRecRunning
	default:
		return protocol.KindError
	}
}

// handleStreamClose implements OPCODE 21: no request fields, detaches
// whatever streamer this session has open.
func handleStreamClose(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.mu.Lock()
	streamer := sess.streamer
	sess.streamer = nil
	sess.mu.Unlock()

	if streamer != nil {
		streamer.Detach()
	}
	return codedReply(protocol.KindOK, nil), nil
}

// handleStreamPause implements OPCODE 22: U8 paused. Switches the session's
// delivery queue into (or out of) time-shift mode; per Queue.Pause's own
// contract, once a client has paused once the queue keeps flowing through
// its disk ring for the rest of the connection even after resuming.
func handleStreamPause(_ context.Context, _ *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	paused, err := r.U8()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "stream pause: %w", err)
	}

	if pauseErr := sess.queue.Pause(paused != 0); pauseErr != nil && !errors.Is(pauseErr, delivery.ErrAlreadyPaused) {
		return nil, protocol.NewError(protocol.KindError, "stream pause: %w", pauseErr)
	}
	return codedReply(protocol.KindOK, nil), nil
}

// handleStreamSignal implements OPCODE 23: no request fields. Responds with
// a raw SIGNALINFO-shaped payload (no leading code, mirroring the
// stream-channel SIGNALINFO event's own field order) rather than waiting
// for the next asynchronous event.
func handleStreamSignal(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.mu.Lock()
	streamer := sess.streamer
	sess.mu.Unlock()
	if streamer == nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "stream signal: no stream open")
	}

	info := streamer.RequestSignalInfo()
	payload := protocol.NewPayloadWriter().
		String(info.Device).
		String(info.Status).
		U32(info.Strength).
		U32(info.Quality).
		U32(0).
		U32(0).
		String(info.Provider).
		String(info.Service).
		Bytes()
	return payload, nil
}

// handleStreamSeek implements OPCODE 24. internal/delivery.Queue is a
// sequential FIFO/disk-ring with no random-access read path (see its own
// Dequeue contract), so a seek within an already-buffered time-shift window
// has nothing to seek: NOT_SUPPORTED, the same code
// handleChannelscanNotSupported uses for a feature this build doesn't back.
func handleStreamSeek(context.Context, *Dispatcher, *Session, *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return codedReply(protocol.KindNotSupported, nil), nil
}

// handleStreamRequestBlock implements OPCODE 25. Streamer exposes no public
// hook to force a keyframe or resend the current stream description outside
// of its own gating logic (SendStreamPacket/RequestStreamChange are
// demux.Listener callbacks, not client-triggerable), so this is
// NOT_SUPPORTED rather than a no-op that would silently promise a refresh
// the server never delivers.
func handleStreamRequestBlock(context.Context, *Dispatcher, *Session, *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return codedReply(protocol.KindNotSupported, nil), nil
}

// handleStreamPoll implements OPCODE 26: no request fields, responds U8
// ready — whether the attached streamer has parsed every stream and
// delivered at least one packet.
func handleStreamPoll(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.mu.Lock()
	streamer := sess.streamer
	sess.mu.Unlock()

	var ready uint8
	if streamer != nil && streamer.IsReady() {
		ready = 1
	}
	return protocol.NewPayloadWriter().U8(ready).Bytes(), nil
}

// handleStreamGetStats implements the supplemental OPCODE 27: a raw
// delivery-counter snapshot, U32 channelUID | U8 attached | U64 packetsSent
// | U64 bytesSent | U64 bytesDropped | U32 sinceUnix | U32 pidCount |
// (U32 pid | U64 count)*.
func handleStreamGetStats(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.mu.Lock()
	streamer := sess.streamer
	sess.mu.Unlock()
	if streamer == nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "stream get stats: no stream open")
	}

	stats := streamer.Stats()
	var attached uint8
	if stats.Attached {
		attached = 1
	}

	w := protocol.NewPayloadWriter().
		U32(stats.ChannelUID).
		U8(attached).
		U64(stats.PacketsSent).
		U64(stats.BytesSent).
		U64(stats.BytesDropped).
		U32(uint32(stats.Since.Unix())).
		U32(uint32(len(stats.PIDPackets)))
	for pid, count := range stats.PIDPackets {
		w.U32(uint32(pid)).U64(count)
	}
	return w.Bytes(), nil
}
