package channels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/halvarsson/xvdrd/internal/channelcache"
)

// ParseConfFile loads a VDR-style channels.conf file: one channel per line,
// Name:Frequency:Parameters:Source:Srate:Vpid:Apid:Tpid:CA:Sid:Nid:Tid:Rid,
// plus group separator lines of the form ":Group Name" (cChannel::Save's own
// format, since channel-list ingestion from the host PVR is an external
// collaborator this package only needs to be able to read, not write).
func ParseConfFile(path string) ([]Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening channels file: %w", err)
	}
	defer f.Close()

	chans, err := ParseConf(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return chans, nil
}

// ParseConf parses r's content as a channels.conf stream.
func ParseConf(r io.Reader) ([]Channel, error) {
	var out []Channel
	groupIndex := 0
	number := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			groupIndex++
			continue
		}

		ch, err := parseChannelLine(line)
		if err != nil {
			return nil, err
		}
		number++
		ch.Number = number
		ch.GroupIndex = groupIndex
		out = append(out, ch)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading channels: %w", err)
	}
	return out, nil
}

// parseChannelLine decodes one cChannel::Save line. Vpid/Apid carry
// optional ":"-free type suffixes (e.g. "101=27") and comma-separated
// multi-track lists in the original; this rewrite only needs to know
// whether a video PID is present at all, to tell a TV channel from radio.
func parseChannelLine(line string) (Channel, error) {
	fields := strings.Split(line, ":")
	const minFields = 13
	if len(fields) < minFields {
		return Channel{}, fmt.Errorf("channels: malformed line (want %d fields, got %d): %q", minFields, len(fields), line)
	}

	name := fields[0]
	source := fields[3]
	vpid := firstPid(fields[5])
	sid, err := strconv.ParseUint(fields[9], 10, 16)
	if err != nil {
		return Channel{}, fmt.Errorf("channels: invalid sid %q: %w", fields[9], err)
	}
	nid, err := strconv.ParseUint(fields[10], 10, 32)
	if err != nil {
		return Channel{}, fmt.Errorf("channels: invalid nid %q: %w", fields[10], err)
	}
	tid, err := strconv.ParseUint(fields[11], 10, 32)
	if err != nil {
		return Channel{}, fmt.Errorf("channels: invalid tid %q: %w", fields[11], err)
	}
	rid := "0"
	if len(fields) > 12 && fields[12] != "" {
		rid = fields[12]
	}

	ca := parseCA(fields[8])
	identity := fmt.Sprintf("%s-%d-%d-%d-%s", source, nid, tid, sid, rid)

	return Channel{
		UID:         channelcache.UID(identity),
		Name:        name,
		SID:         uint16(sid),
		Source:      encodeSource(source),
		Transponder: uint32(tid),
		CA:          ca,
		VideoType:   videoTypeFor(fields[5]),
		Radio:       vpid == 0,
	}, nil
}

// firstPid extracts the leading numeric PID from a field that may carry a
// "=streamtype" suffix and further ","-separated alternates.
func firstPid(field string) int {
	field = strings.SplitN(field, ",", 2)[0]
	field = strings.SplitN(field, "=", 2)[0]
	pid, _ := strconv.Atoi(field)
	return pid
}

// videoTypeFor mirrors cChannel::Vtype(): the stream type suffix on the
// video PID field, defaulting to MPEG-2 (2) when absent, matching the
// original's behavior for legacy channels.conf entries with no suffix.
func videoTypeFor(field string) uint32 {
	field = strings.SplitN(field, ",", 2)[0]
	parts := strings.SplitN(field, "=", 2)
	if len(parts) != 2 {
		return 2
	}
	vtype, err := strconv.Atoi(parts[1])
	if err != nil {
		return 2
	}
	return uint32(vtype)
}

// parseCA returns the first CA system ID listed in the channel's CA field
// (0 when it is free-to-air), the value processCHANNELS_GetChannels reports
// as the CA column.
func parseCA(field string) uint32 {
	first := strings.SplitN(field, ",", 2)[0]
	ca, _ := strconv.Atoi(first)
	return uint32(ca)
}

// encodeSource folds a VDR source letter-code ("S19.2E", "C", "T") into the
// small integer cChannel::Source() uses internally: high byte a type tag,
// low bytes an orbital position for satellite sources. Channels outside
// satellite/cable/terrestrial (the three this server actually tunes) fall
// back to 0, matching FindChannelByUID's tolerance for unknown sources.
func encodeSource(code string) uint32 {
	if code == "" {
		return 0
	}
	switch code[0] {
	case 'S':
		pos, _ := strconv.Atoi(strings.TrimRight(code[1:], "EW"))
		if strings.HasSuffix(code, "W") {
			pos = -pos
		}
		return (uint32('S') << 24) | uint32(int32(pos))
	case 'C':
		return uint32('C') << 24
	case 'T':
		return uint32('T') << 24
	default:
		return 0
	}
}
