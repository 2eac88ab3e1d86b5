package dispatch

import (
	"context"
	"time"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleLogin implements OPCODE 1: U32 protocolVersion | U8 (unused) |
// String clientName. A client asking for a newer protocol version than
// this server speaks gets KindNotSupported instead of process_Login's
// silent connection drop — cleaner to diagnose over this wire, same net
// effect of refusing to serve the session.
func handleLogin(_ context.Context, d *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	version, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "login: %w", err)
	}
	if _, err := r.U8(); err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "login: %w", err)
	}
	clientName, err := r.String()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "login: %w", err)
	}

	if version > protocol.ProtocolVersion {
		return codedReply(protocol.KindNotSupported, nil), nil
	}

	sess.mu.Lock()
	sess.clientName = clientName
	sess.mu.Unlock()

	now := time.Now()
	_, offset := now.Zone()

	payload := protocol.NewPayloadWriter().
		U32(protocol.ProtocolVersion).
		U32(uint32(now.Unix())).
		S32(int32(offset)).
		String(d.serverName).
		String(d.serverVersion).
		Bytes()
	return payload, nil
}

// handleGetTime implements OPCODE 2: U32 timeNow | S32 timeOffset.
func handleGetTime(context.Context, *Dispatcher, *Session, *protocol.PayloadReader) ([]byte, *protocol.Error) {
	now := time.Now()
	_, offset := now.Zone()
	payload := protocol.NewPayloadWriter().
		U32(uint32(now.Unix())).
		S32(int32(offset)).
		Bytes()
	return payload, nil
}

// handleEnableStatistics implements OPCODE 3, folding
// process_EnableStatusInterface and process_EnableOSDInterface's identical
// "U8 enabled -> U32 VDR_RET_OK" shape into one opcode: this rewrite has no
// separate OSD concept, so a single status-events flag covers both.
func handleEnableStatistics(_ context.Context, _ *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	enabled, err := r.U8()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "enable statistics: %w", err)
	}
	sess.mu.Lock()
	sess.statusEnabled = enabled != 0
	sess.mu.Unlock()
	return codedReply(protocol.KindOK, nil), nil
}
