package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// NoPTS marks a stream frame timestamp as absent, matching demux.NoPTS.
const NoPTS int64 = -1

// Request is one decoded request/response-channel command from a client.
type Request struct {
	Opcode    Opcode
	RequestID uint32
	Payload   []byte
}

// StreamFrame is one decoded stream-channel event, server to client only.
type StreamFrame struct {
	Opcode   StreamOpcode
	StreamID uint32
	Duration uint32
	PTS, DTS int64
	Payload  []byte
}

// PackStreamID folds a PID and frame type into the stream channel's 32-bit
// streamId word: PID in the high 16 bits, frame type in the low 16 bits.
// This is the rewrite's take on the original plugin's "clientId" field,
// repurposed the same way (see DESIGN.md open question (c)): the low half
// carries frame type and nothing else.
func PackStreamID(pid uint16, frameType uint16) uint32 {
	return uint32(pid)<<16 | uint32(frameType)
}

// UnpackStreamID splits a streamId word back into PID and frame type.
func UnpackStreamID(streamID uint32) (pid uint16, frameType uint16) {
	return uint16(streamID >> 16), uint16(streamID)
}

// compressionThreshold is the smallest uncompressed payload size a Writer
// will bother deflating; small control responses never benefit.
const compressionThreshold = 256

// Writer serializes frames onto one underlying connection. A single mutex
// guards every write the way cSocketLock serialized concurrent writers on
// one socket fd in the original plugin: writes from multiple goroutines
// (the dispatcher replying to a request, the streamer pushing MUXPKTs)
// never interleave their bytes.
type Writer struct {
	mu               sync.Mutex
	w                io.Writer
	compressionLevel int // flate.NoCompression disables compression
}

// NewWriter returns a Writer over w. A compressionLevel of
// flate.NoCompression (0) disables compression entirely.
func NewWriter(w io.Writer, compressionLevel int) *Writer {
	return &Writer{w: w, compressionLevel: compressionLevel}
}

// WriteResponse writes one request/response-channel reply.
func (w *Writer) WriteResponse(opcode Opcode, requestID uint32, payload []byte) error {
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(opcode))
	binary.BigEndian.PutUint32(header[4:8], requestID)
	return w.writeFrame(uint32(ChannelRequestResponse), header, payload)
}

// WriteStream writes one stream-channel event.
func (w *Writer) WriteStream(f StreamFrame) error {
	header := make([]byte, 28)
	binary.BigEndian.PutUint32(header[0:4], uint32(f.Opcode))
	binary.BigEndian.PutUint32(header[4:8], f.StreamID)
	binary.BigEndian.PutUint32(header[8:12], f.Duration)
	binary.BigEndian.PutUint64(header[12:20], uint64(f.PTS))
	binary.BigEndian.PutUint64(header[20:28], uint64(f.DTS))
	return w.writeFrame(uint32(ChannelStream), header, f.Payload)
}

// WriteRaw writes an already-framed packet (as produced by EncodeStream and
// friends) under the same lock as WriteResponse/WriteStream, so bytes a
// delivery goroutine dequeues from internal/delivery never interleave with a
// concurrent reply on the wire.
func (w *Writer) WriteRaw(pkt []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(pkt)
	return err
}

// writeFrame writes channel|header|payloadLen|payload as one locked write,
// compressing (raw deflate, 4-byte original-size header, high bit of
// channel set) when compression is enabled and the payload is worth it.
func (w *Writer) writeFrame(channel uint32, header []byte, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(encodeFrame(channel, header, payload, w.compressionLevel))
	return err
}

// EncodeStream serializes a stream-channel frame exactly as WriteStream
// would, without writing it anywhere. internal/dispatch uses this to hand
// internal/delivery's Queue a pre-framed packet it can push through the
// live/time-shift pipeline independently of the connection's own Writer,
// which stays dedicated to request/response replies and out-of-band events.
func EncodeStream(f StreamFrame, compressionLevel int) []byte {
	header := make([]byte, 28)
	binary.BigEndian.PutUint32(header[0:4], uint32(f.Opcode))
	binary.BigEndian.PutUint32(header[4:8], f.StreamID)
	binary.BigEndian.PutUint32(header[8:12], f.Duration)
	binary.BigEndian.PutUint64(header[12:20], uint64(f.PTS))
	binary.BigEndian.PutUint64(header[20:28], uint64(f.DTS))
	return encodeFrame(uint32(ChannelStream), header, f.Payload, compressionLevel)
}

// encodeFrame builds the full wire representation of one frame: channel word
// (with compressed flag if applied), header, payload length, payload.
func encodeFrame(channel uint32, header []byte, payload []byte, compressionLevel int) []byte {
	if compressionLevel > flate.NoCompression && len(payload) >= compressionThreshold {
		compressed, ok := deflate(payload, compressionLevel)
		if ok {
			channel |= compressedFlag
			sized := make([]byte, 4, 4+len(compressed))
			binary.BigEndian.PutUint32(sized, uint32(len(payload)))
			payload = append(sized, compressed...)
		}
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, channel)
	buf.Write(header)
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// deflate raw-deflates src at level, returning ok=false if compression made
// no sense to attempt (flate never fails on valid input, but the caller
// still wants a single success/failure signal to decide whether to fall
// back to sending uncompressed).
func deflate(src []byte, level int) ([]byte, bool) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, false
	}
	if _, err := fw.Write(src); err != nil {
		return nil, false
	}
	if err := fw.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// inflate expands a raw-deflate stream to exactly originalSize bytes.
func inflate(src []byte, originalSize uint32) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(src))
	defer fr.Close()
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("protocol: inflating payload: %w", err)
	}
	return out, nil
}

// Reader decodes frames off one connection, transparently decompressing
// payloads marked with the high channel bit.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) readUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (r *Reader) readPayload(compressed bool) ([]byte, error) {
	payloadLen, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("protocol: reading payload length: %w", err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("protocol: reading payload: %w", err)
	}
	if !compressed {
		return payload, nil
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("protocol: compressed payload shorter than its size header")
	}
	originalSize := binary.BigEndian.Uint32(payload[:4])
	return inflate(payload[4:], originalSize)
}

// ReadRequest reads one request/response-channel frame. It is an error for
// the frame to name any other channel: a Reader is dedicated to decoding
// client requests, not the server's own stream-channel output.
func (r *Reader) ReadRequest() (Request, error) {
	channelWord, err := r.readUint32()
	if err != nil {
		return Request{}, err
	}
	compressed := channelWord&compressedFlag != 0
	channel := Channel(channelWord &^ compressedFlag)
	if channel != ChannelRequestResponse {
		return Request{}, fmt.Errorf("protocol: expected request/response channel, got %d", channel)
	}

	opcodeWord, err := r.readUint32()
	if err != nil {
		return Request{}, err
	}
	requestID, err := r.readUint32()
	if err != nil {
		return Request{}, err
	}
	payload, err := r.readPayload(compressed)
	if err != nil {
		return Request{}, err
	}

	return Request{Opcode: Opcode(opcodeWord), RequestID: requestID, Payload: payload}, nil
}

// ReadStream reads one stream-channel frame. Only tests and non-Go clients
// exercise this path; the server itself only ever writes this channel.
func (r *Reader) ReadStream() (StreamFrame, error) {
	channelWord, err := r.readUint32()
	if err != nil {
		return StreamFrame{}, err
	}
	compressed := channelWord&compressedFlag != 0
	channel := Channel(channelWord &^ compressedFlag)
	if channel != ChannelStream {
		return StreamFrame{}, fmt.Errorf("protocol: expected stream channel, got %d", channel)
	}

	opcodeWord, err := r.readUint32()
	if err != nil {
		return StreamFrame{}, err
	}
	streamID, err := r.readUint32()
	if err != nil {
		return StreamFrame{}, err
	}
	duration, err := r.readUint32()
	if err != nil {
		return StreamFrame{}, err
	}
	var ptsBuf, dtsBuf [8]byte
	if _, err := io.ReadFull(r.r, ptsBuf[:]); err != nil {
		return StreamFrame{}, err
	}
	if _, err := io.ReadFull(r.r, dtsBuf[:]); err != nil {
		return StreamFrame{}, err
	}
	payload, err := r.readPayload(compressed)
	if err != nil {
		return StreamFrame{}, err
	}

	return StreamFrame{
		Opcode:   StreamOpcode(opcodeWord),
		StreamID: streamID,
		Duration: duration,
		PTS:      int64(binary.BigEndian.Uint64(ptsBuf[:])),
		DTS:      int64(binary.BigEndian.Uint64(dtsBuf[:])),
		Payload:  payload,
	}, nil
}
