package livestream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

type fakeListener struct {
	mu            sync.Mutex
	packets       int
	changes       []*streaminfo.Bundle
	statuses      []Status
	detachCount   int
}

func (l *fakeListener) SendPacket(pkt demux.StreamPacket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.packets++
}

func (l *fakeListener) SendStreamChange(bundle *streaminfo.Bundle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, bundle)
}

func (l *fakeListener) SendStatus(status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
}

func (l *fakeListener) SendDetach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detachCount++
}

func (l *fakeListener) statusCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.statuses)
}

func newTestStreamer(dev Device) (*Streamer, *channelcache.Cache, *fakeListener) {
	cache := channelcache.New()
	listener := &fakeListener{}
	picker := &fakePicker{device: dev}
	s := New(5, 200*time.Millisecond, cache, picker, listener)
	return s, cache, listener
}

func TestStreamer_Switch_Succeeds(t *testing.T) {
	dev := &fakeDevice{decryptable: true}
	s, _, _ := newTestStreamer(dev)

	err := s.Switch(0x1234, 1)
	require.NoError(t, err)
	defer s.Detach()

	assert.Equal(t, 1, dev.attachCount)
	assert.Contains(t, dev.lastPIDs, uint16(0))
}

func TestStreamer_Switch_RejectsUndecryptable(t *testing.T) {
	dev := &fakeDevice{decryptable: false}
	s, _, _ := newTestStreamer(dev)

	err := s.Switch(0x1234, 1)
	assert.ErrorIs(t, err, ErrEncrypted)
}

func TestStreamer_Switch_PickerError(t *testing.T) {
	cache := channelcache.New()
	listener := &fakeListener{}
	picker := &fakePicker{err: ErrAllTunersBusy}
	s := New(5, 200*time.Millisecond, cache, picker, listener)

	err := s.Switch(0x1234, 1)
	assert.ErrorIs(t, err, ErrAllTunersBusy)
}

func TestStreamer_Switch_TuneFails(t *testing.T) {
	dev := &fakeDevice{decryptable: true, tuneErr: ErrTuneFailed}
	s, _, _ := newTestStreamer(dev)

	err := s.Switch(0x1234, 1)
	assert.ErrorIs(t, err, ErrTuneFailed)
}

func TestStreamer_Switch_AttachRetriesThenFails(t *testing.T) {
	dev := &fakeDevice{decryptable: true, attachErr: fmt.Errorf("busy")}
	s, _, _ := newTestStreamer(dev)
	s.timeout = 30 * time.Millisecond

	err := s.Switch(0x1234, 1)
	assert.ErrorIs(t, err, ErrTuneFailed)
	assert.Greater(t, dev.attachCount, 1)
}

func TestStreamer_NotReadyBeforeFirstPacket(t *testing.T) {
	dev := &fakeDevice{decryptable: true}
	s, _, _ := newTestStreamer(dev)

	require.NoError(t, s.Switch(0x1234, 1))
	defer s.Detach()

	assert.False(t, s.IsReady())
}

func TestStreamer_SignalLossReportedAfterTimeout(t *testing.T) {
	dev := &fakeDevice{decryptable: true}
	s, _, listener := newTestStreamer(dev)
	s.timeout = 30 * time.Millisecond

	require.NoError(t, s.Switch(0x1234, 1))
	defer s.Detach()

	require.Eventually(t, func() bool {
		return listener.statusCount() > 0
	}, time.Second, 10*time.Millisecond)

	listener.mu.Lock()
	first := listener.statuses[0]
	listener.mu.Unlock()
	assert.Equal(t, StatusSignalLost, first)
}

func TestStreamer_RequestSignalInfo_NoDevice(t *testing.T) {
	dev := &fakeDevice{}
	s, _, _ := newTestStreamer(dev)
	assert.Equal(t, SignalInfo{}, s.RequestSignalInfo())
}

func TestStreamer_RequestSignalInfo_AfterSwitch(t *testing.T) {
	dev := &fakeDevice{decryptable: true, signal: SignalInfo{Strength: 1 << 16}}
	s, _, _ := newTestStreamer(dev)

	require.NoError(t, s.Switch(0x1234, 1))
	defer s.Detach()

	assert.Equal(t, uint32(1<<16), s.RequestSignalInfo().Strength)
}

func TestStreamer_Detach_ReleasesDevice(t *testing.T) {
	dev := &fakeDevice{decryptable: true}
	s, _, _ := newTestStreamer(dev)

	require.NoError(t, s.Switch(0x1234, 1))
	s.Detach()

	assert.Equal(t, 1, dev.detachCount)
}

func TestStreamer_SetLanguage_NoDemuxersYet(t *testing.T) {
	dev := &fakeDevice{decryptable: true}
	s, _, _ := newTestStreamer(dev)
	s.SetLanguage("eng", streaminfo.CodecAC3)
	assert.Equal(t, "eng", s.preferredLang)
}
