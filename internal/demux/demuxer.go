// Package demux turns routed transport-stream packets into parsed access
// units: a per-PID Demuxer owns one elementary stream's StreamInfo and
// codec parser, and a DemuxerBundle holds the ordered set of demuxers for
// one program.
package demux

import (
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// rescaleBase is the wire clock StreamPacket timestamps are rescaled to:
// 90 kHz PES ticks become 1 MHz (microsecond) ticks, matching DVD_TIME_BASE
// in the parser this package is modeled on.
const rescaleBase = 1000000

// NoPTS marks a StreamPacket timestamp field as absent.
const NoPTS = tspacket.NoPTS

// StreamPacket is one demultiplexed, codec-parsed access unit.
type StreamPacket struct {
	PID       uint16
	Content   streaminfo.Content
	CodecType streaminfo.CodecType
	FrameType esparser.FrameType

	DTS, PTS       int64
	RawDTS, RawPTS int64
	Duration       int64

	Data []byte
}

// Listener receives demultiplexed packets and stream-change requests from
// one Demuxer. A Demuxer never holds a reference to its bundle or to the
// live streamer; it only ever talks through this interface, breaking what
// would otherwise be a demuxer -> bundle -> streamer -> demuxer cycle.
type Listener interface {
	SendStreamPacket(pkt StreamPacket)
	RequestStreamChange()
}

type demuxMode int

const (
	modeFramed demuxMode = iota // MPEG2 audio, AC3, EAC3, AAC-ADTS: rolling byte buffer
	modePES                     // MPEG2 video, H264, H265, LATM, DVB sub, teletext: whole PES buffer
)

// Demuxer parses the elementary stream carried by one PID.
type Demuxer struct {
	info     streaminfo.StreamInfo
	listener Listener
	mode     demuxMode

	buf     []byte
	startup bool
	pesLen  int // declared PES packet_length; 0 means unbounded

	curDTS, curPTS int64
	ptsDtsOffset    int64 // last observed pts-dts, used to extrapolate MPEG2 video PTS

	latmCfg esparser.LATMConfig
}

// New creates a Demuxer for pid with a fresh StreamInfo of the given codec.
func New(listener Listener, pid uint16, codec streaminfo.CodecType) *Demuxer {
	return NewFromInfo(listener, streaminfo.New(pid, codec))
}

// NewFromInfo creates a Demuxer seeded from a previously-known StreamInfo,
// used when a PMT change reuses parameters already learned about a stream
// that kept its PID and codec type.
func NewFromInfo(listener Listener, info streaminfo.StreamInfo) *Demuxer {
	d := &Demuxer{
		info:     info,
		listener: listener,
		curDTS:   tspacket.NoPTS,
		curPTS:   tspacket.NoPTS,
	}
	switch info.CodecType {
	case streaminfo.CodecMPEG2Audio, streaminfo.CodecAC3, streaminfo.CodecEAC3, streaminfo.CodecAAC:
		d.mode = modeFramed
	default:
		d.mode = modePES
		d.startup = true
	}
	if info.CodecType == streaminfo.CodecTeletext {
		d.info.Parsed = true
	}
	return d
}

func (d *Demuxer) PID() uint16                     { return d.info.PID }
func (d *Demuxer) Content() streaminfo.Content     { return d.info.Content }
func (d *Demuxer) CodecType() streaminfo.CodecType { return d.info.CodecType }
func (d *Demuxer) Language() string                { return d.info.Language }
func (d *Demuxer) AudioType() int                  { return d.info.AudioType }
func (d *Demuxer) IsParsed() bool                  { return d.info.Parsed }
func (d *Demuxer) Info() streaminfo.StreamInfo      { return d.info }

// SetLanguage sets the ISO-639 language code and audio type.
func (d *Demuxer) SetLanguage(lang string, audioType int) {
	d.info.SetLanguage(lang, audioType)
}

// SetSubtitling sets DVB subtitle parameters.
func (d *Demuxer) SetSubtitling(sub streaminfo.SubtitleInfo) {
	d.info.SetSubtitling(sub)
}

// setVideoInfo applies a video-parameter update, firing RequestStreamChange
// on the first update that makes this stream's info complete, or on any
// later update that actually changes it.
func (d *Demuxer) setVideoInfo(v streaminfo.VideoInfo) {
	if d.info.SetVideoInfo(v) {
		d.info.Parsed = true
		d.listener.RequestStreamChange()
	}
}

func (d *Demuxer) setAudioInfo(a streaminfo.AudioInfo) {
	if d.info.SetAudioInfo(a) {
		d.info.Parsed = true
		d.listener.RequestStreamChange()
	}
}

// Feed processes one already-decoded TS packet belonging to this PID. It
// returns false if the packet was discarded (scrambled, transport error, or
// no payload) per the routing invariant that such packets never reach
// parse_payload.
func (d *Demuxer) Feed(pkt tspacket.Packet) bool {
	if !pkt.Usable() {
		return false
	}
	pusi := pkt.PayloadUnitStartIndicator
	if d.mode == modeFramed {
		d.feedFramed(pkt.Payload, pusi)
	} else {
		d.feedPES(pkt.Payload, pusi)
	}
	return true
}

// rescale converts a 90 kHz tick value to the wire clock, passing NoPTS
// through unchanged.
func rescale(v int64) int64 {
	if v == tspacket.NoPTS {
		return v
	}
	return v * rescaleBase / 90000
}

// emit stamps pid/type/content and rescales timestamps before forwarding to
// the listener, mirroring cTSDemuxer::SendPacket.
func (d *Demuxer) emit(data []byte, frameType esparser.FrameType, dts, pts, duration int64) {
	pkt := StreamPacket{
		PID:       d.info.PID,
		Content:   d.info.Content,
		CodecType: d.info.CodecType,
		FrameType: frameType,
		RawDTS:    dts,
		RawPTS:    pts,
		DTS:       rescale(dts),
		PTS:       rescale(pts),
		Duration:  rescale(duration),
		Data:      data,
	}
	d.listener.SendStreamPacket(pkt)
}
