package patpmt

import (
	"fmt"

	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// State is the PAT/PMT filter's current phase.
type State int

const (
	// StateWaitingPAT is waiting for a PAT section naming the tuned
	// channel's PMT PID.
	StateWaitingPAT State = iota
	// StateHavePMT has a known PMT PID and is waiting for (or processing)
	// PMT sections on it.
	StateHavePMT
)

// ErrVersionChanged is returned by FeedPMT when a PMT's version_number differs
// from the one last seen: the filter resets to StateWaitingPAT, forcing a
// fresh PAT scan, since a PMT version bump on VDR/DVB streams can also mean
// the PMT moved to a different PID.
var ErrVersionChanged = fmt.Errorf("patpmt: PMT version changed, rescanning PAT")

// ErrWrongService is returned when a PAT/PMT section describes a different
// service than the one this filter is tracking; the caller should ignore it.
var ErrWrongService = fmt.Errorf("patpmt: section names a different service")

// Filter implements the WAITING_PAT/HAVE_PMT state machine described for
// one tuned channel: it turns PAT/PMT sections for that channel's service ID
// into an up-to-date StreamBundle.
type Filter struct {
	expectedSID uint16
	pmtPID      uint16
	pmtSID      uint16
	versionSeen bool
	version     byte
	state       State
}

// NewFilter creates a filter waiting for the PAT association that names
// expectedSID (the tuned channel's service/program ID).
func NewFilter(expectedSID uint16) *Filter {
	return &Filter{expectedSID: expectedSID, state: StateWaitingPAT}
}

// State reports the filter's current phase.
func (f *Filter) State() State {
	return f.state
}

// WantPID returns the PID the caller should be subscribed to right now: PID
// 0 (PAT) while waiting, or the learned PMT PID once known.
func (f *Filter) WantPID() uint16 {
	if f.state == StateWaitingPAT {
		return 0x00
	}
	return f.pmtPID
}

// WantTableID returns the table_id the caller should filter for at WantPID.
func (f *Filter) WantTableID() byte {
	if f.state == StateWaitingPAT {
		return tableIDPAT
	}
	return tableIDPMT
}

// FeedPAT processes one PAT section's payload (with pointer_field intact, as
// delivered straight from a TS packet's payload). It returns true if the PMT
// PID was newly learned or changed, meaning the caller must resubscribe to
// WantPID()/WantTableID().
func (f *Filter) FeedPAT(payload []byte) (bool, error) {
	section, err := extractSection(payload, tableIDPAT)
	if err != nil {
		return false, err
	}
	assocs, err := parsePAT(section)
	if err != nil {
		return false, err
	}

	for _, a := range assocs {
		if a.ServiceID != f.expectedSID {
			continue
		}
		if a.PMTPID == 0 {
			return false, fmt.Errorf("patpmt: PAT association for service %d has no PMT PID", a.ServiceID)
		}
		prevPID := f.pmtPID
		f.pmtPID = a.PMTPID
		f.pmtSID = a.ServiceID
		if f.pmtPID != prevPID {
			f.versionSeen = false
			f.state = StateHavePMT
			return true, nil
		}
		return false, nil
	}

	return false, ErrWrongService
}

// FeedPMT processes one PMT section's payload. On a version change it resets
// to StateWaitingPAT and returns ErrVersionChanged; the caller must
// unsubscribe from the old PMT PID and resume polling WantPID()/WantTableID().
// Otherwise it returns the StreamBundle the section describes.
func (f *Filter) FeedPMT(payload []byte) (*streaminfo.Bundle, error) {
	section, err := extractSection(payload, tableIDPMT)
	if err != nil {
		return nil, err
	}
	pmt, err := parsePMT(section)
	if err != nil {
		return nil, err
	}
	if pmt.ServiceID != f.pmtSID {
		return nil, ErrWrongService
	}

	if f.versionSeen && f.version != pmt.Version {
		f.state = StateWaitingPAT
		f.pmtPID = 0
		f.versionSeen = false
		return nil, ErrVersionChanged
	}
	f.versionSeen = true
	f.version = pmt.Version

	return BuildBundle(pmt), nil
}

// FirstServiceID extracts a PAT section's payload and returns the first
// program (non-NIT) service ID it associates with a PMT PID. Used where no
// expected service ID is known ahead of time, such as scanning a recording
// whose channel isn't otherwise tracked.
func FirstServiceID(payload []byte) (uint16, error) {
	section, err := extractSection(payload, tableIDPAT)
	if err != nil {
		return 0, err
	}
	assocs, err := parsePAT(section)
	if err != nil {
		return 0, err
	}
	if len(assocs) == 0 {
		return 0, fmt.Errorf("patpmt: PAT section names no program")
	}
	return assocs[0].ServiceID, nil
}

// Reset returns the filter to StateWaitingPAT, as if freshly constructed for
// the same expected service ID. Used when a channel switch reuses a filter
// instance instead of allocating a new one.
func (f *Filter) Reset() {
	f.pmtPID = 0
	f.pmtSID = 0
	f.versionSeen = false
	f.version = 0
	f.state = StateWaitingPAT
}
