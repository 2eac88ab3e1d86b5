// Package dispatch routes decoded request/response frames to the handler
// for their opcode and turns internal/livestream and internal/recording
// output into stream-channel events, the Go equivalent of cCmdControl's
// opcode switch plus cConnection's per-client stream plumbing.
package dispatch

import (
	"compress/flate"
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/config"
	"github.com/halvarsson/xvdrd/internal/delivery"
	"github.com/halvarsson/xvdrd/internal/demux"
	"github.com/halvarsson/xvdrd/internal/livestream"
	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/protocol"
	"github.com/halvarsson/xvdrd/internal/recording"
	"github.com/halvarsson/xvdrd/internal/streaminfo"
)

// Session is one client connection's state: the wire Writer it shares with
// the request/response reply path and the delivery-queue drain goroutine,
// plus whichever of a live Streamer or a recording Player it currently has
// open. A client has at most one of the two open at a time, mirroring
// cClient's single m_Streamer/m_RecPlayer fields.
type Session struct {
	ID   uuid.UUID
	Conn net.Conn

	writer           *protocol.Writer
	compressionLevel int
	log              *slog.Logger

	mu            sync.Mutex
	clientName    string
	statusEnabled bool
	osdEnabled    bool

	queue    *delivery.Queue
	streamer *livestream.Streamer

	recUID    uint32
	recSegs   *recording.Segments
	recPlayer *recording.Player
	recCancel context.CancelFunc
	recDone   chan struct{}
}

// NewSession wraps one accepted connection. sockID distinguishes this
// client's time-shift ring file from every other connected client's.
func NewSession(conn net.Conn, sockID int, cfg config.TimeshiftConfig, compressionLevel int, log *slog.Logger) *Session {
	return &Session{
		ID:               uuid.New(),
		Conn:             conn,
		writer:           protocol.NewWriter(conn, compressionLevel),
		compressionLevel: compressionLevel,
		log:              log,
		queue:            delivery.NewQueue(cfg.Dir, sockID, int64(cfg.MaxBytes)),
	}
}

// Close tears down any open streamer/player and the delivery queue. Safe to
// call once per session, typically when the accept loop's per-client
// goroutine exits.
func (sess *Session) Close() {
	sess.mu.Lock()
	streamer := sess.streamer
	sess.streamer = nil
	sess.mu.Unlock()

	if streamer != nil {
		streamer.Detach()
	}
	sess.closeRecStream()
	sess.queue.Close()
}

// closeRecStream tears down whatever recording playback this session has
// open, stopping its delivery goroutine first so it never touches a closed
// Player. Safe to call when nothing is open.
func (sess *Session) closeRecStream() {
	sess.mu.Lock()
	cancel := sess.recCancel
	done := sess.recDone
	player := sess.recPlayer
	segs := sess.recSegs
	sess.recCancel = nil
	sess.recDone = nil
	sess.recPlayer = nil
	sess.recSegs = nil
	sess.recUID = 0
	sess.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if player != nil {
		player.Close()
	}
	if segs != nil {
		segs.Close()
	}
}

// WriteResponse writes one request/response reply frame, serialized against
// RunDelivery's stream-channel writes by Writer's own internal lock.
func (sess *Session) WriteResponse(opcode protocol.Opcode, requestID uint32, payload []byte) error {
	return sess.writer.WriteResponse(opcode, requestID, payload)
}

// RunDelivery drains sess's delivery queue onto the wire until ctx is done
// or the queue is closed. It is meant to run in its own goroutine for the
// lifetime of the connection, parallel to the request/response read loop;
// Writer.WriteRaw's shared lock keeps its writes from interleaving with a
// concurrent reply.
func (sess *Session) RunDelivery(ctx context.Context) {
	for {
		pkt, heartbeat, err := sess.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if heartbeat {
			continue
		}
		if err := sess.writer.WriteRaw(pkt); err != nil {
			return
		}
	}
}

// SendPacket implements livestream.Listener: encodes one MUXPKT frame and
// pushes it through the delivery queue rather than writing it directly, so
// a paused/time-shifting client still buffers it to disk.
func (sess *Session) SendPacket(pkt demux.StreamPacket) {
	sess.queue.Push(protocol.EncodeMuxPkt(pkt, sess.compressionLevel))
}

// SendStreamChange implements livestream.Listener.
func (sess *Session) SendStreamChange(bundle *streaminfo.Bundle) {
	sess.queue.Push(protocol.EncodeStreamChangeInfo(bundle, sess.compressionLevel))
}

// SendStatus implements livestream.Listener, translating the domain
// livestream.Status into the wire's Status* code.
func (sess *Session) SendStatus(status livestream.Status) {
	code := protocol.StatusSignalLost
	if status == livestream.StatusSignalRestored {
		code = protocol.StatusSignalRestored
	}
	sess.queue.Push(protocol.EncodeStatus(code, sess.compressionLevel))
}

// SendDetach implements livestream.Listener.
func (sess *Session) SendDetach() {
	sess.queue.Push(protocol.EncodeDetach(sess.compressionLevel))
}

// Dispatcher holds the collaborators shared by every connected Session and
// routes each decoded Request to its handler, the Go equivalent of
// cCmdControl's opcode switch in cmdcontrol.c.
type Dispatcher struct {
	cfg      *config.Config
	channels *channels.List
	store    *metadata.Store
	cache    *channelcache.Cache
	picker   livestream.DevicePicker
	log      *slog.Logger

	serverName, serverVersion string
}

// New returns a Dispatcher wired to the shared collaborators the server
// constructs once at startup.
func New(cfg *config.Config, chList *channels.List, store *metadata.Store, cache *channelcache.Cache, picker livestream.DevicePicker, serverName, serverVersion string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:           cfg,
		channels:      chList,
		store:         store,
		cache:         cache,
		picker:        picker,
		serverName:    serverName,
		serverVersion: serverVersion,
		log:           log,
	}
}

// compressionLevelFor returns the flate level a Dispatcher's sessions
// compress stream-channel payloads with. Fixed at BestSpeed, the fastest
// flate level (least CPU per payload, at the cost of compression ratio);
// there is no configuration knob for it.
func compressionLevelFor(*config.Config) int {
	return flate.BestSpeed
}
