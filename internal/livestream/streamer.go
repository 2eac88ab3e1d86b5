// Package livestream owns the live-channel streaming pipeline: a ring
// buffer fed by the host tuner's receiver callback, the PAT/PMT filter, the
// per-PID demuxer bundle, and the startup/I-frame/signal-loss gating that
// decides what actually reaches the client.
package livestream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/esparser"
	"github.com/halvarsson/xvdrd/internal/patpmt"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
	"github.com/halvarsson/xvdrd/internal/tspacket"
)

// Listener receives everything a Streamer produces for delivery to a
// client: muxed packets, stream-change descriptions, status events, and
// signal info. Concrete wire encoding is the caller's concern (internal/
// protocol); Streamer only deals in domain types.
type Listener interface {
	SendPacket(pkt demux.StreamPacket)
	SendStreamChange(bundle *streaminfo.Bundle)
	SendStatus(status Status)
	SendDetach()
}

// attachRetries/attachBackoff govern the mid-stream PID-filter reattach
// after a PMT-driven demuxer rebuild (spec: "retry up to 3x with 100ms
// backoff; on failure signal detach").
const (
	attachRetries = 3
	attachBackoff = 100 * time.Millisecond
)

// switchRetryInterval governs the initial channel-switch attach retry loop,
// which keeps trying for up to the streamer's configured timeout.
const switchRetryInterval = 10 * time.Millisecond

// Streamer drives one client's live channel: one ring buffer, one device
// attachment, one DemuxerBundle, and the gating logic described in spec
// §4.6. It implements demux.Listener so its DemuxerBundle's individual
// Demuxers can call back into it directly (spec §9's no-back-references
// rule: the demuxer only ever sees this narrow interface).
type Streamer struct {
	mu sync.Mutex

	channelUID uint32
	expectedSID uint16
	priority    int
	timeout     time.Duration

	preferredLang string
	preferredType streaminfo.CodecType
	waitForIFrame bool

	ring   *RingBuffer
	device Device
	picker DevicePicker
	cache  *channelcache.Cache
	listener Listener

	filter        *patpmt.Filter
	demuxers      *demux.DemuxerBundle
	currentBundle *streaminfo.Bundle

	attached      bool
	startupGate   bool
	firstAVSeen   bool
	iframeSeen    bool
	signalLost    bool
	lastData      time.Time
	streamChangePending bool

	attachedAt  time.Time
	packetsSent uint64
	bytesSent   uint64
	pidPackets  map[uint16]uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Streamer for one client. cache and picker are external
// collaborators injected by the server, per spec §9.
func New(priority int, timeout time.Duration, cache *channelcache.Cache, picker DevicePicker, listener Listener) *Streamer {
	return &Streamer{
		priority:      priority,
		timeout:       timeout,
		cache:         cache,
		picker:        picker,
		listener:      listener,
		preferredType: streaminfo.CodecAC3,
	}
}

// SetLanguage sets the preferred audio language and stream type used by the
// demuxer-bundle reorder.
func (s *Streamer) SetLanguage(lang string, preferredType streaminfo.CodecType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferredLang = lang
	s.preferredType = preferredType
	if s.demuxers != nil {
		s.demuxers.Reorder(s.languageMatches, s.preferredType)
	}
}

// SetWaitForIFrame toggles the post-attach/post-stream-change I-frame gate.
func (s *Streamer) SetWaitForIFrame(wait bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitForIFrame = wait
}

func (s *Streamer) languageMatches(lang string) bool {
	return s.preferredLang != "" && lang == s.preferredLang
}

// IsReady reports whether the current demuxer bundle has parsed every
// stream's parameters and at least one A/V packet has been delivered.
func (s *Streamer) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demuxers != nil && s.demuxers.IsReady() && s.firstAVSeen
}

// RequestSignalInfo returns a snapshot of the attached device's signal
// quality, or the zero value if no device is attached.
func (s *Streamer) RequestSignalInfo() SignalInfo {
	s.mu.Lock()
	dev := s.device
	s.mu.Unlock()
	if dev == nil {
		return SignalInfo{}
	}
	return dev.SignalInfo()
}

// Switch tears down any existing attachment and tunes to channelUID/
// expectedSID, starting the streamer's main loop. It retries the receiver
// attach at 10ms intervals up to the streamer's configured timeout before
// giving up with one of ErrEncrypted/ErrAllTunersBusy/ErrRecordingBlocked/
// ErrTuneFailed.
func (s *Streamer) Switch(channelUID uint32, expectedSID uint16) error {
	s.detachLocked()

	dev, err := s.picker.PickDevice(channelUID, s.priority)
	if err != nil {
		return err
	}
	if !dev.CanDecrypt(channelUID) {
		return ErrEncrypted
	}

	ring := NewRingBuffer(DefaultRingSize)
	if err := dev.Tune(channelUID, ring); err != nil {
		return err
	}

	s.mu.Lock()
	s.channelUID = channelUID
	s.expectedSID = expectedSID
	s.device = dev
	s.ring = ring
	s.filter = patpmt.NewFilter(expectedSID)
	s.currentBundle = nil
	s.demuxers = demux.NewDemuxerBundle()
	s.startupGate = true
	s.firstAVSeen = false
	s.iframeSeen = false
	s.signalLost = false
	s.lastData = time.Now()
	s.attachedAt = time.Now()
	s.packetsSent = 0
	s.bytesSent = 0
	s.pidPackets = make(map[uint16]uint64)

	if cached, ok := s.cache.Get(channelUID); ok {
		s.applyBundleLocked(cached, false)
	}
	dev.SetPIDs(s.wantedPIDsLocked())
	s.mu.Unlock()

	deadline := time.Now().Add(s.timeout)
	var attachErr error
	for {
		if attachErr = dev.Attach(); attachErr == nil {
			break
		}
		if time.Now().After(deadline) {
			dev.Detach()
			s.mu.Lock()
			s.device = nil
			s.ring = nil
			s.mu.Unlock()
			return ErrTuneFailed
		}
		time.Sleep(switchRetryInterval)
	}

	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, ring)

	return nil
}

// Detach stops the main loop and releases the device.
func (s *Streamer) Detach() {
	s.detachLocked()
}

func (s *Streamer) detachLocked() {
	s.mu.Lock()
	cancel := s.cancel
	ring := s.ring
	dev := s.device
	done := s.done
	s.cancel = nil
	s.ring = nil
	s.device = nil
	s.attached = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ring != nil {
		ring.Close()
	}
	if done != nil {
		<-done
	}
	if dev != nil {
		dev.Detach()
	}
}

// run is the streamer's main loop: pull 188-byte packets, feed the PAT/PMT
// filter or route to the demuxer bundle, and apply signal-loss timeouts.
func (s *Streamer) run(ctx context.Context, ring *RingBuffer) {
	defer close(s.done)

	for {
		readCtx, cancel := context.WithTimeout(ctx, s.timeout)
		raw, err := ring.ReadPacket(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.handleTimeout()
			continue
		}

		tp, err := tspacket.Parse(raw)
		if err != nil || !tp.Usable() {
			continue
		}

		s.mu.Lock()
		s.lastData = time.Now()
		wasLost := s.signalLost
		s.signalLost = false
		s.mu.Unlock()
		if wasLost {
			s.listener.SendStatus(StatusSignalRestored)
		}

		s.handlePacket(tp)
	}
}

func (s *Streamer) handleTimeout() {
	s.mu.Lock()
	lost := time.Since(s.lastData) >= s.timeout && !s.signalLost
	if lost {
		s.signalLost = true
	}
	s.mu.Unlock()
	if lost {
		s.listener.SendStatus(StatusSignalLost)
	}
}

func (s *Streamer) handlePacket(tp tspacket.Packet) {
	s.mu.Lock()
	filter := s.filter
	wantPID := filter.WantPID()
	s.mu.Unlock()

	if tp.PID == wantPID {
		s.feedFilter(tp)
		return
	}

	s.mu.Lock()
	demuxers := s.demuxers
	s.mu.Unlock()
	if demuxers == nil {
		return
	}
	demuxers.FeedTSPacket(tp)
}

func (s *Streamer) feedFilter(tp tspacket.Packet) {
	s.mu.Lock()
	filter := s.filter
	state := filter.State()
	s.mu.Unlock()

	if state == patpmt.StateWaitingPAT {
		filter.FeedPAT(tp.Payload)
		return
	}

	bundle, err := filter.FeedPMT(tp.Payload)
	if errors.Is(err, patpmt.ErrVersionChanged) {
		return
	}
	if err != nil || bundle == nil {
		return
	}

	s.mu.Lock()
	s.applyBundleLocked(bundle, true)
	s.mu.Unlock()
}

// wantedPIDsLocked returns the PID set the device's receiver should deliver:
// every elementary stream PID in the current bundle plus whichever PSI PID
// the filter still needs. Caller must hold s.mu.
func (s *Streamer) wantedPIDsLocked() []uint16 {
	pids := []uint16{0}
	if s.filter != nil {
		if want := s.filter.WantPID(); want != 0 {
			pids = append(pids, want)
		}
	}
	if s.demuxers != nil {
		for _, d := range s.demuxers.Streams() {
			pids = append(pids, d.PID())
		}
	}
	return pids
}

// applyBundleLocked implements spec §4.3's cache-commit and rebuild rule.
// Caller must hold s.mu. reattachOnChange is false during the initial
// Switch, where the caller performs its own attach loop afterward.
func (s *Streamer) applyBundleLocked(bundle *streaminfo.Bundle, reattachOnChange bool) {
	if prev, ok := s.cache.Get(s.channelUID); !ok || !prev.IsMetaOf(bundle) {
		s.cache.Put(s.channelUID, bundle)
	}

	if s.currentBundle != nil && s.currentBundle.Equal(bundle) {
		return
	}

	s.demuxers = demux.UpdateFrom(bundle, s.demuxers, s)
	s.demuxers.Reorder(s.languageMatches, s.preferredType)
	s.currentBundle = bundle
	s.startupGate = true
	s.firstAVSeen = false
	s.iframeSeen = false
	s.streamChangePending = true

	if reattachOnChange && s.device != nil {
		dev := s.device
		pids := s.wantedPIDsLocked()
		go s.reattach(dev, pids)
	}
}

// reattach implements the mid-stream retry/backoff rule from spec §4.3: on
// a PMT-driven rebuild, detach, update the PID filter, then retry attach up
// to attachRetries times before giving up and signaling detach to the
// client.
func (s *Streamer) reattach(dev Device, pids []uint16) {
	dev.Detach()
	dev.SetPIDs(pids)
	for i := 0; i < attachRetries; i++ {
		if err := dev.Attach(); err == nil {
			return
		}
		time.Sleep(attachBackoff)
	}
	s.listener.SendDetach()
}

// SendStreamPacket implements demux.Listener: a demuxer calls this with one
// parsed access unit. It applies the startup and I-frame gates before
// forwarding to the Listener.
func (s *Streamer) SendStreamPacket(pkt demux.StreamPacket) {
	s.mu.Lock()
	ready := s.demuxers != nil && s.demuxers.IsReady()
	gateOpen := !s.startupGate || ready
	if gateOpen {
		s.startupGate = false
		s.firstAVSeen = true
	}
	needChange := s.streamChangePending && gateOpen
	if needChange {
		s.streamChangePending = false
	}
	waitIframe := s.waitForIFrame && !s.iframeSeen
	isIframe := pkt.FrameType == esparser.FrameI
	if isIframe {
		s.iframeSeen = true
	}
	bundle := s.currentBundle
	s.mu.Unlock()

	if !gateOpen {
		return
	}
	if needChange && bundle != nil {
		s.listener.SendStreamChange(bundle)
	}
	if waitIframe && !isIframe {
		return
	}

	s.mu.Lock()
	s.packetsSent++
	s.bytesSent += uint64(len(pkt.Data))
	if s.pidPackets != nil {
		s.pidPackets[pkt.PID]++
	}
	s.mu.Unlock()

	s.listener.SendPacket(pkt)
}

// RequestStreamChange implements demux.Listener: a demuxer calls this when
// it has learned or changed its parsed StreamInfo (new video dimensions,
// audio parameters, ...), which should be announced before further packets.
func (s *Streamer) RequestStreamChange() {
	s.mu.Lock()
	s.streamChangePending = true
	bundle := s.currentBundle
	s.mu.Unlock()
	if bundle != nil {
		s.listener.SendStreamChange(bundle)
	}
}
