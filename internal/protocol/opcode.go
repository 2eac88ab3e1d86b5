// Package protocol implements the length-prefixed, dual-channel TCP wire
// format clients speak: a request/response channel for commands and a
// stream channel for muxed access units, STREAM_CHANGE notices and status
// events, both optionally raw-deflate compressed.
package protocol

// Channel identifies which of the two logical channels a frame belongs to.
// The high bit is reserved to mark a compressed payload and is never part
// of a Channel constant itself.
type Channel uint32

const (
	ChannelRequestResponse Channel = 1
	ChannelStream          Channel = 2
)

// compressedFlag is OR'd into the wire channel field when the payload that
// follows is raw-deflate compressed, prefixed by a 4-byte original size.
const compressedFlag uint32 = 0x80000000

// Opcode identifies a request/response command, banded by subsystem the way
// cmdcontrol.c numbers them (1-19 general, 20-39 live streaming, 40-59
// recording streaming, 60-79 channels, 80-99 timers, 100-119 recordings,
// 120-139 EPG, 140-159 channel scanning). Bands with no implemented opcode
// are left with gaps rather than renumbered, so the values stay stable if a
// dropped command is added back later.
type Opcode uint32

const (
	OpLogin             Opcode = 1
	OpGetTime           Opcode = 2
	OpEnableStatistics  Opcode = 3

	OpStreamOpen         Opcode = 20
	OpStreamClose        Opcode = 21
	OpStreamPause        Opcode = 22
	OpStreamSignal       Opcode = 23
	OpStreamSeek         Opcode = 24
	OpStreamRequestBlock Opcode = 25
	OpStreamPoll         Opcode = 26
	OpStreamGetStats     Opcode = 27 // supplemental: internal/livestream.Stats snapshot

	OpRecStreamOpen                     Opcode = 40
	OpRecStreamClose                    Opcode = 41
	OpRecStreamGetBlock                 Opcode = 42
	OpRecStreamPositionFromFrameNumber  Opcode = 43
	OpRecStreamFrameNumberFromPosition  Opcode = 44
	OpRecStreamGetIFrame                Opcode = 45
	OpRecStreamUpdate                   Opcode = 46

	OpChannelsGetCount    Opcode = 61
	OpChannelsGetChannels Opcode = 63
	OpChannelsReorder     Opcode = 64 // supplemental: channel-list reorder (cmdcontrol.c has no analogue)

	OpTimerGetCount Opcode = 80
	OpTimerGet      Opcode = 81
	OpTimerGetList  Opcode = 82
	OpTimerAdd      Opcode = 83
	OpTimerDelete   Opcode = 84
	OpTimerUpdate   Opcode = 85

	OpRecordingsGetDiskSpace Opcode = 100
	OpRecordingsGetCount     Opcode = 101
	OpRecordingsGetList      Opcode = 102
	OpRecordingsRename       Opcode = 103
	OpRecordingsDelete       Opcode = 104
	OpRecordingsGetArtwork   Opcode = 105 // supplemental: internal/metadata artwork path/hash
	OpRecordingsSetArtwork   Opcode = 106

	OpEpgGetForChannel Opcode = 120

	OpChannelscanSupported Opcode = 140
	OpChannelscanStart     Opcode = 143
	OpChannelscanStop      Opcode = 144

	OpSystemStats Opcode = 160 // supplemental: gopsutil host CPU/mem/disk snapshot
)

// StreamOpcode identifies a stream-channel event, carried with
// Channel = ChannelStream.
type StreamOpcode uint32

const (
	OpStreamMuxPkt     StreamOpcode = 1
	OpStreamChange     StreamOpcode = 2
	OpStreamStatus     StreamOpcode = 3
	OpStreamSignalInfo StreamOpcode = 4
	OpStreamDetach     StreamOpcode = 5
)

// Status opcode values for OpStreamStatus's single uint32 code field.
const (
	StatusSignalLost     uint32 = 1
	StatusSignalRestored uint32 = 2
)

func (o StreamOpcode) String() string {
	switch o {
	case OpStreamMuxPkt:
		return "MUXPKT"
	case OpStreamChange:
		return "STREAM_CHANGE"
	case OpStreamStatus:
		return "STATUS"
	case OpStreamSignalInfo:
		return "SIGNALINFO"
	case OpStreamDetach:
		return "DETACH"
	default:
		return "OPCODE"
	}
}
