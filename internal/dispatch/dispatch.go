package dispatch

import (
	"context"
	"log/slog"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handlerFunc processes one decoded request's payload and returns the
// response body to write back under the same opcode/requestID. Handlers
// that mirror a cmdcontrol.c function prefixing its own reply with a
// VDR_RET_* code build that prefix themselves via codedReply and never
// return a non-nil *protocol.Error for the expected failure paths (unknown
// id, conflict, recording in progress, ...) — a returned error is reserved
// for failures no cmdcontrol.c reply shape anticipates (a database error,
// an unparseable payload), which the dispatcher turns into a single-word
// coded reply of its own.
type handlerFunc func(ctx context.Context, d *Dispatcher, sess *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error)

// table maps each implemented Opcode to its handler. Built once in init so
// Dispatch itself stays a single map lookup, the Go analogue of
// cCmdControl::processPacket's big switch.
var table map[protocol.Opcode]handlerFunc

func init() {
	table = map[protocol.Opcode]handlerFunc{
		protocol.OpLogin:            handleLogin,
		protocol.OpGetTime:          handleGetTime,
		protocol.OpEnableStatistics: handleEnableStatistics,

		protocol.OpStreamOpen:         handleStreamOpen,
		protocol.OpStreamClose:        handleStreamClose,
		protocol.OpStreamPause:        handleStreamPause,
		protocol.OpStreamSignal:       handleStreamSignal,
		protocol.OpStreamSeek:         handleStreamSeek,
		protocol.OpStreamRequestBlock: handleStreamRequestBlock,
		protocol.OpStreamPoll:         handleStreamPoll,
		protocol.OpStreamGetStats:     handleStreamGetStats,

		protocol.OpRecStreamOpen:                    handleRecStreamOpen,
		protocol.OpRecStreamClose:                   handleRecStreamClose,
		protocol.OpRecStreamGetBlock:                handleRecStreamGetBlock,
		protocol.OpRecStreamPositionFromFrameNumber: handleRecStreamPositionFromFrameNumber,
		protocol.OpRecStreamFrameNumberFromPosition: handleRecStreamFrameNumberFromPosition,
		protocol.OpRecStreamGetIFrame:                handleRecStreamGetIFrame,
		protocol.OpRecStreamUpdate:                   handleRecStreamUpdate,

		protocol.OpChannelsGetCount:    handleChannelsGetCount,
		protocol.OpChannelsGetChannels: handleChannelsGetChannels,
		protocol.OpChannelsReorder:     handleChannelsReorder,

		protocol.OpTimerGetCount: handleTimerGetCount,
		protocol.OpTimerGet:      handleTimerGet,
		protocol.OpTimerGetList:  handleTimerGetList,
		protocol.OpTimerAdd:      handleTimerAdd,
		protocol.OpTimerDelete:   handleTimerDelete,
		protocol.OpTimerUpdate:   handleTimerUpdate,

		protocol.OpRecordingsGetDiskSpace: handleRecordingsGetDiskSpace,
		protocol.OpRecordingsGetCount:     handleRecordingsGetCount,
		protocol.OpRecordingsGetList:      handleRecordingsGetList,
		protocol.OpRecordingsRename:       handleRecordingsRename,
		protocol.OpRecordingsDelete:       handleRecordingsDelete,
		protocol.OpRecordingsGetArtwork:   handleRecordingsGetArtwork,
		protocol.OpRecordingsSetArtwork:   handleRecordingsSetArtwork,

		protocol.OpEpgGetForChannel: handleEpgGetForChannel,

		protocol.OpChannelscanSupported: handleChannelscanNotSupported,
		protocol.OpChannelscanStart:     handleChannelscanNotSupported,
		protocol.OpChannelscanStop:      handleChannelscanNotSupported,

		protocol.OpSystemStats: handleSystemStats,
	}
}

// codedReply builds a response whose first word is kind's wire
// ResponseCode, followed by extra (nil for a bare code reply), the shape
// every Add/Delete/Update/Rename/EnableStatistics/RecStream_Open reply
// uses in cmdcontrol.c.
func codedReply(kind protocol.ErrorKind, extra []byte) []byte {
	return protocol.NewPayloadWriter().U32(uint32(kind.Code())).Raw(extra).Bytes()
}

// Dispatch routes one decoded request to its handler and returns the reply
// payload to write back under the request's own opcode and request id
// (cCmdControl never changes the opcode between request and reply). An
// unregistered opcode gets a bare NOT_SUPPORTED code, the same shape
// handleChannelscanNotSupported uses for the scan opcodes this server never
// implements a tuner-scan backend for.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, req protocol.Request) []byte {
	fn, ok := table[req.Opcode]
	if !ok {
		d.log.Warn("unhandled opcode", slog.Any("opcode", req.Opcode), slog.String("session", sess.ID.String()))
		return codedReply(protocol.KindNotSupported, nil)
	}

	payload, failure := fn(ctx, d, sess, protocol.NewPayloadReader(req.Payload))
	if failure != nil {
		d.log.Error("request failed", slog.Any("opcode", req.Opcode), slog.String("error", failure.Error()))
		return codedReply(failure.Kind, nil)
	}
	return payload
}
