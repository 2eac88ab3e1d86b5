package dispatch

import (
	"context"

	"github.com/halvarsson/xvdrd/internal/protocol"
	"github.com/halvarsson/xvdrd/internal/recording"
)

// processRecStream_* in cmdcontrol.c is grounded on cRecPlayer, a raw
// byte-block reader addressed through a separately maintained frame index
// (positionFromFrameNumber/frameNumberFromPosition/getNextIFrame). This
// rewrite's own internal/recording package never built that index — its
// Player instead demuxes a recording the same way the live path demuxes a
// channel, pushing MUXPKT/STREAM_CHANGE events rather than answering raw
// positional reads. OPCODE 42 (GETBLOCK) still needs raw bytes, so Open
// keeps a second, independent *recording.Segments purely for that: the
// Player and the Segments read the same files but never share state.

// handleRecStreamOpen implements OPCODE 40: U32 uid. Response: U32 code |
// U32 lengthFrames | U64 lengthBytes | U8 isPesRecording. lengthFrames is
// always 0 — no frame index exists to count them — which is the same value
// the original reports once its own m_RecPlayer has failed to build one.
// isPesRecording is always 0: ScanSegments refuses anything but TS segments.
func handleRecStreamOpen(ctx context.Context, d *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	uid, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recstream open: %w", err)
	}

	rec, err := d.store.RecordingByUID(ctx, uid)
	if err != nil {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}

	segs, err := recording.ScanSegments(rec.Path)
	if err != nil {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}
	player, err := recording.NewPlayer(rec.Path)
	if err != nil {
		segs.Close()
		return codedReply(protocol.KindDataUnknown, nil), nil
	}

	sess.closeRecStream()

	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sess.mu.Lock()
	sess.recUID = uid
	sess.recSegs = segs
	sess.recPlayer = player
	sess.recCancel = cancel
	sess.recDone = done
	sess.mu.Unlock()

	go sess.pumpRecStream(pumpCtx, player, done)

	payload := protocol.NewPayloadWriter().
		U32(uint32(protocol.KindOK.Code())).
		U32(0).
		U64(uint64(segs.TotalLength())).
		U8(0).
		Bytes()
	return payload, nil
}

// pumpRecStream drives a Player the same way livestream.Streamer drives a
// live demux, pushing its events onto the session's delivery queue until
// ctx is cancelled (handleRecStreamClose, a fresh Open, or Session.Close) or
// the recording runs out.
func (sess *Session) pumpRecStream(ctx context.Context, player *recording.Player, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev, err := player.GetPacket()
		if err != nil || ev == nil {
			return
		}
		switch ev.Kind {
		case recording.EventPacket:
			sess.SendPacket(ev.Packet)
		case recording.EventStreamChange:
			sess.SendStreamChange(ev.Bundle)
		}
	}
}

// handleRecStreamClose implements OPCODE 41: no request fields, U32 code
// response.
func handleRecStreamClose(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.closeRecStream()
	return codedReply(protocol.KindOK, nil), nil
}

// handleRecStreamGetBlock implements OPCODE 42: U64 position | U32 amount.
// Response is the raw bytes read, or a bare U32(0) if nothing was
// available — processRecStream_GetBlock's own fallback when getBlock
// returns no data, whether for EOF or no recording open.
func handleRecStreamGetBlock(_ context.Context, _ *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	position, err := r.U64()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recstream getblock: %w", err)
	}
	amount, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recstream getblock: %w", err)
	}

	sess.mu.Lock()
	segs := sess.recSegs
	sess.mu.Unlock()
	if segs == nil {
		return protocol.NewPayloadWriter().U32(0).Bytes(), nil
	}

	buf := make([]byte, amount)
	n, err := segs.Read(buf, int64(position))
	if err != nil || n == 0 {
		return protocol.NewPayloadWriter().U32(0).Bytes(), nil
	}
	return buf[:n], nil
}

// handleRecStreamPositionFromFrameNumber implements OPCODE 43: U32
// frameNumber. No frame index is kept, so this always answers U64(0), the
// same value process_RecStream_PositionFromFrameNumber reports when its own
// m_RecPlayer is absent.
func handleRecStreamPositionFromFrameNumber(_ context.Context, _ *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return protocol.NewPayloadWriter().U64(0).Bytes(), nil
}

// handleRecStreamFrameNumberFromPosition implements OPCODE 44: U64
// position, always answering U32(0) for the same reason as
// handleRecStreamPositionFromFrameNumber.
func handleRecStreamFrameNumberFromPosition(_ context.Context, _ *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return protocol.NewPayloadWriter().U32(0).Bytes(), nil
}

// handleRecStreamGetIFrame implements OPCODE 45: U32 frameNumber | U32
// direction, always answering U32(0) — no I-frame index exists to walk.
func handleRecStreamGetIFrame(_ context.Context, _ *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return protocol.NewPayloadWriter().U32(0).Bytes(), nil
}

// handleRecStreamUpdate implements the supplemental OPCODE 46: no request
// fields, rescans the open recording's segment table (for a recording still
// being written while a client plays it back) and reports its refreshed
// length the same shape as Open's trailing fields.
func handleRecStreamUpdate(_ context.Context, _ *Dispatcher, sess *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	sess.mu.Lock()
	segs := sess.recSegs
	sess.mu.Unlock()
	if segs == nil {
		return codedReply(protocol.KindDataInvalid, nil), nil
	}

	if err := segs.Rescan(); err != nil {
		return nil, protocol.NewError(protocol.KindError, "recstream update: %w", err)
	}

	payload := protocol.NewPayloadWriter().
		U32(uint32(protocol.KindOK.Code())).
		U32(0).
		U64(uint64(segs.TotalLength())).
		Bytes()
	return payload, nil
}
