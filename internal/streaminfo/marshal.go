package streaminfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// magic is the sentinel written at the start of every marshaled StreamInfo,
// used by Unmarshal to detect corruption or format drift.
var magic = [4]byte{'X', 'V', 'I', '2'}

// ErrBadMagic is returned by Unmarshal when the sentinel doesn't match.
var ErrBadMagic = fmt.Errorf("streaminfo: bad magic sentinel")

// Marshal encodes one StreamInfo as a fixed-plus-variable binary record:
// magic, then every field in declaration order, with SPS/PPS/VPS as
// length-prefixed byte slices.
func Marshal(s StreamInfo) []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])

	binary.Write(&buf, binary.BigEndian, s.PID)
	binary.Write(&buf, binary.BigEndian, int32(s.Content))
	binary.Write(&buf, binary.BigEndian, int32(s.CodecType))

	writeLangString(&buf, s.Language)
	binary.Write(&buf, binary.BigEndian, int32(s.AudioType))

	binary.Write(&buf, binary.BigEndian, int32(s.Video.FPSScale))
	binary.Write(&buf, binary.BigEndian, int32(s.Video.FPSRate))
	binary.Write(&buf, binary.BigEndian, int32(s.Video.Width))
	binary.Write(&buf, binary.BigEndian, int32(s.Video.Height))
	binary.Write(&buf, binary.BigEndian, s.Video.DisplayAspect)
	writeBytes(&buf, s.Video.SPS)
	writeBytes(&buf, s.Video.PPS)
	writeBytes(&buf, s.Video.VPS)

	binary.Write(&buf, binary.BigEndian, int32(s.Audio.Channels))
	binary.Write(&buf, binary.BigEndian, int32(s.Audio.SampleRate))
	binary.Write(&buf, binary.BigEndian, int32(s.Audio.BitRate))
	binary.Write(&buf, binary.BigEndian, int32(s.Audio.BitsPerSample))
	binary.Write(&buf, binary.BigEndian, int32(s.Audio.BlockAlign))

	buf.WriteByte(s.Subtitle.SubtitlingType)
	binary.Write(&buf, binary.BigEndian, s.Subtitle.CompositionPageID)
	binary.Write(&buf, binary.BigEndian, s.Subtitle.AncillaryPageID)

	if s.Parsed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// Unmarshal decodes a record produced by Marshal, returning the StreamInfo
// and the number of bytes consumed.
func Unmarshal(data []byte) (StreamInfo, int, error) {
	var s StreamInfo
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := r.Read(gotMagic[:]); err != nil {
		return s, 0, fmt.Errorf("streaminfo: reading magic: %w", err)
	}
	if gotMagic != magic {
		return s, 0, ErrBadMagic
	}

	binary.Read(r, binary.BigEndian, &s.PID)
	var content, codec int32
	binary.Read(r, binary.BigEndian, &content)
	binary.Read(r, binary.BigEndian, &codec)
	s.Content = Content(content)
	s.CodecType = CodecType(codec)

	lang, err := readLangString(r)
	if err != nil {
		return s, 0, err
	}
	s.Language = lang
	var audioType int32
	binary.Read(r, binary.BigEndian, &audioType)
	s.AudioType = int(audioType)

	var fpsScale, fpsRate, width, height int32
	binary.Read(r, binary.BigEndian, &fpsScale)
	binary.Read(r, binary.BigEndian, &fpsRate)
	binary.Read(r, binary.BigEndian, &width)
	binary.Read(r, binary.BigEndian, &height)
	s.Video.FPSScale = int(fpsScale)
	s.Video.FPSRate = int(fpsRate)
	s.Video.Width = int(width)
	s.Video.Height = int(height)
	binary.Read(r, binary.BigEndian, &s.Video.DisplayAspect)

	if s.Video.SPS, err = readBytes(r); err != nil {
		return s, 0, err
	}
	if s.Video.PPS, err = readBytes(r); err != nil {
		return s, 0, err
	}
	if s.Video.VPS, err = readBytes(r); err != nil {
		return s, 0, err
	}

	var channels, sampleRate, bitRate, bitsPerSample, blockAlign int32
	binary.Read(r, binary.BigEndian, &channels)
	binary.Read(r, binary.BigEndian, &sampleRate)
	binary.Read(r, binary.BigEndian, &bitRate)
	binary.Read(r, binary.BigEndian, &bitsPerSample)
	binary.Read(r, binary.BigEndian, &blockAlign)
	s.Audio = AudioInfo{
		Channels:      int(channels),
		SampleRate:    int(sampleRate),
		BitRate:       int(bitRate),
		BitsPerSample: int(bitsPerSample),
		BlockAlign:    int(blockAlign),
	}

	subType, err := r.ReadByte()
	if err != nil {
		return s, 0, fmt.Errorf("streaminfo: reading subtitling type: %w", err)
	}
	s.Subtitle.SubtitlingType = subType
	binary.Read(r, binary.BigEndian, &s.Subtitle.CompositionPageID)
	binary.Read(r, binary.BigEndian, &s.Subtitle.AncillaryPageID)

	parsedByte, err := r.ReadByte()
	if err != nil {
		return s, 0, fmt.Errorf("streaminfo: reading parsed flag: %w", err)
	}
	s.Parsed = parsedByte != 0

	consumed := len(data) - r.Len()
	return s, consumed, nil
}

func writeLangString(buf *bytes.Buffer, lang string) {
	buf.WriteByte(byte(len(lang)))
	buf.WriteString(lang)
}

func readLangString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("streaminfo: reading language length: %w", err)
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", fmt.Errorf("streaminfo: reading language: %w", err)
	}
	return string(b), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	b = ClampDecoderBytes(b)
	buf.WriteByte(byte(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("streaminfo: reading byte-slice length: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, fmt.Errorf("streaminfo: reading byte slice: %w", err)
	}
	return b, nil
}
