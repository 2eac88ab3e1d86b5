package protocol

import (
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// WriteMuxPkt writes one demultiplexed access unit as a MUXPKT stream
// frame. pkt.PID and pkt.FrameType are packed into the streamId word per
// PackStreamID; pkt.DTS/PTS/Duration are already in the wire's microsecond
// clock (see internal/demux's rescaleBase).
func (w *Writer) WriteMuxPkt(pkt demux.StreamPacket) error {
	return w.WriteStream(StreamFrame{
		Opcode:   OpStreamMuxPkt,
		StreamID: PackStreamID(pkt.PID, uint16(pkt.FrameType)),
		Duration: uint32(pkt.Duration),
		PTS:      pkt.PTS,
		DTS:      pkt.DTS,
		Payload:  pkt.Data,
	})
}

// WriteStreamChange writes one STREAM_CHANGE event describing bundle's
// current stream order.
func (w *Writer) WriteStreamChange(bundle *demux.DemuxerBundle) error {
	return w.WriteStream(StreamFrame{
		Opcode:  OpStreamChange,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: BuildStreamChange(bundle),
	})
}

// WriteStatus writes a STATUS event carrying one of the Status* codes.
func (w *Writer) WriteStatus(code uint32) error {
	return w.WriteStream(StreamFrame{
		Opcode:  OpStreamStatus,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: NewPayloadWriter().U32(code).Bytes(),
	})
}

// SignalInfo is one receiver tuning-quality snapshot, mirroring
// cLiveStreamer::sendSignalInfo's field list.
type SignalInfo struct {
	Device      string
	Status      string
	StrengthQ16 uint32
	QualityQ16  uint32
	Provider    string
	Service     string
}

// WriteSignalInfo writes a SIGNALINFO event.
func (w *Writer) WriteSignalInfo(info SignalInfo) error {
	payload := NewPayloadWriter().
		String(info.Device).
		String(info.Status).
		U32(info.StrengthQ16).
		U32(info.QualityQ16).
		U32(0).
		U32(0).
		String(info.Provider).
		String(info.Service).
		Bytes()
	return w.WriteStream(StreamFrame{
		Opcode:  OpStreamSignalInfo,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: payload,
	})
}

// WriteDetach writes a DETACH event, telling the client this stream session
// has ended.
func (w *Writer) WriteDetach() error {
	return w.WriteStream(StreamFrame{
		Opcode: OpStreamDetach,
		PTS:    NoPTS,
		DTS:    NoPTS,
	})
}

// EncodeMuxPkt serializes one MUXPKT stream frame the way WriteMuxPkt would,
// for a caller (internal/dispatch) that queues pre-framed bytes through
// internal/delivery rather than writing straight to the connection.
func EncodeMuxPkt(pkt demux.StreamPacket, compressionLevel int) []byte {
	return EncodeStream(StreamFrame{
		Opcode:   OpStreamMuxPkt,
		StreamID: PackStreamID(pkt.PID, uint16(pkt.FrameType)),
		Duration: uint32(pkt.Duration),
		PTS:      pkt.PTS,
		DTS:      pkt.DTS,
		Payload:  pkt.Data,
	}, compressionLevel)
}

// EncodeStreamChange serializes one STREAM_CHANGE event the way
// WriteStreamChange would.
func EncodeStreamChange(bundle *demux.DemuxerBundle, compressionLevel int) []byte {
	return EncodeStream(StreamFrame{
		Opcode:  OpStreamChange,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: BuildStreamChange(bundle),
	}, compressionLevel)
}

// EncodeStreamChangeInfo serializes one STREAM_CHANGE event from an
// immutable streaminfo.Bundle snapshot, the type internal/livestream's
// Listener and internal/recording's Player hand the dispatcher.
func EncodeStreamChangeInfo(bundle *streaminfo.Bundle, compressionLevel int) []byte {
	return EncodeStream(StreamFrame{
		Opcode:  OpStreamChange,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: BuildStreamChangeInfo(bundle),
	}, compressionLevel)
}

// EncodeStatus serializes one STATUS event the way WriteStatus would.
func EncodeStatus(code uint32, compressionLevel int) []byte {
	return EncodeStream(StreamFrame{
		Opcode:  OpStreamStatus,
		PTS:     NoPTS,
		DTS:     NoPTS,
		Payload: NewPayloadWriter().U32(code).Bytes(),
	}, compressionLevel)
}

// EncodeDetach serializes one DETACH event the way WriteDetach would.
func EncodeDetach(compressionLevel int) []byte {
	return EncodeStream(StreamFrame{
		Opcode: OpStreamDetach,
		PTS:    NoPTS,
		DTS:    NoPTS,
	}, compressionLevel)
}
