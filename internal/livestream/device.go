package livestream

import "fmt"

// SignalInfo is a snapshot of tuner signal quality, pulled on demand rather
// than pushed continuously.
type SignalInfo struct {
	Device   string
	Status   string
	Strength uint32 // Q16 fixed point, 0..1<<16
	Quality  uint32 // Q16 fixed point, 0..4<<16
	Provider string
	Service  string
}

// Status is a STATUS stream-channel opcode payload.
type Status int

const (
	StatusSignalLost Status = iota
	StatusSignalRestored
)

// Device is the host tuner this streamer is attached to: an external
// collaborator injected at construction (spec's "process-wide singletons"
// note — no global tuner registry inside this package). The embedding layer
// implements it against its real device/CAM stack.
//
// Tuning and PID-filter attachment are modeled as separate steps because a
// PMT version change mid-stream only needs to re-attach the receiver's PID
// filter, not retune the whole device.
type Device interface {
	// CanDecrypt reports whether this device can currently decrypt
	// channelUID, for channels that are encrypted.
	CanDecrypt(channelUID uint32) bool
	// Tune switches the device to channelUID and begins delivering raw TS
	// bytes to the given RingBuffer via its Push method. It returns an
	// error classified as one of ErrAllTunersBusy, ErrRecordingBlocked, or
	// ErrTuneFailed.
	Tune(channelUID uint32, ring *RingBuffer) error
	// Attach (re)enables the receiver's PID filter for the PIDs most
	// recently set with SetPIDs. It may fail transiently (e.g. a busy
	// demux) and is safe to retry.
	Attach() error
	// Detach disables the receiver's PID filter and releases the device.
	Detach()
	// SetPIDs updates the set of elementary-stream PIDs the receiver
	// should deliver, in addition to the PAT/PMT PIDs the caller manages
	// separately.
	SetPIDs(pids []uint16)
	// SignalInfo returns a snapshot of current signal quality.
	SignalInfo() SignalInfo
}

// Errors classifying a failed channel switch, per spec §4.6.
var (
	ErrEncrypted        = fmt.Errorf("livestream: no CAM can decrypt this channel")
	ErrAllTunersBusy    = fmt.Errorf("livestream: all tuners busy")
	ErrRecordingBlocked = fmt.Errorf("livestream: blocked by a running recording")
	ErrTuneFailed       = fmt.Errorf("livestream: tune failed")
)

// DevicePicker selects the best available device for a channel, given a set
// of candidates the embedding layer maintains (device priority, current
// load, CAM assignment, ...). Like Device, this is an external collaborator;
// the core only asks "give me one that works" and reacts to the outcome.
type DevicePicker interface {
	PickDevice(channelUID uint32, priority int) (Device, error)
}
