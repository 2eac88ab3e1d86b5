// Package pvrserver is the TCP accept loop: the Go analogue of cServer,
// the piece of cmdcontrol.c's embedding layer that owns the listening
// socket, screens each new connection against the allowed-hosts ACL, and
// hands accepted connections off to one internal/dispatch.Session apiece.
package pvrserver

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halvarsson/xvdrd/internal/config"
	"github.com/halvarsson/xvdrd/internal/dispatch"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

// Server accepts client connections, checks them against the configured
// ACL, and runs one Session per connection until Shutdown is called.
type Server struct {
	cfg    *config.Config
	disp   *dispatch.Dispatcher
	acl    *acl
	log    *slog.Logger
	listen func(network, address string) (net.Listener, error)

	mu        sync.Mutex
	listener  net.Listener
	nextSock  int
	sessions  map[*dispatch.Session]struct{}
}

// New returns a Server ready to Run. The Dispatcher must already be wired
// to its collaborators (channel list, metadata store, channel cache,
// device picker).
func New(cfg *config.Config, disp *dispatch.Dispatcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		disp:     disp,
		acl:      newACL(cfg.ACL.AllowedHosts),
		log:      log,
		listen:   net.Listen,
		sessions: make(map[*dispatch.Session]struct{}),
	}
}

// Run binds the configured address and serves connections until ctx is
// canceled, then waits up to Server.ShutdownTimeout for in-flight sessions
// to finish, mirroring tvarr's ListenAndServe/Shutdown split generalized
// from an http.Server to a raw net.Listener.
func (s *Server) Run(ctx context.Context) error {
	listener, err := s.listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Address(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("pvrserver listening", slog.String("address", s.cfg.Server.Address()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.acceptLoop(gctx, listener)
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// acceptLoop accepts connections until the listener is closed by shutdown,
// spawning one goroutine per accepted connection. An Accept timeout is
// retried without logging; a closed listener (the signal shutdown sends)
// ends the loop cleanly, and any other Accept error ends it with that error.
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.acl.allows(conn.RemoteAddr()) {
			s.log.Warn("connection rejected by acl", slog.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		go s.handleConn(ctx, conn)
	}
}

// handleConn runs one client connection to completion: a request/response
// read loop on the foreground, a delivery-queue drain loop in the
// background, the same split cClient keeps between its own request thread
// and its detached streamer/timeshift threads.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	sockID := s.nextSock
	s.nextSock++
	s.mu.Unlock()

	sess := dispatch.NewSession(conn, sockID, s.cfg.Timeshift, flate.BestSpeed, s.log.With(slog.String("remote", conn.RemoteAddr().String())))

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	defer func() {
		sess.Close()
		conn.Close()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go sess.RunDelivery(connCtx)

	reader := protocol.NewReader(conn)
	for {
		req, err := reader.ReadRequest()
		if err != nil {
			return
		}

		reply := s.disp.Dispatch(connCtx, sess, req)
		if err := sess.WriteResponse(req.Opcode, req.RequestID, reply); err != nil {
			return
		}
	}
}

// shutdown closes the listener, interrupting Accept, and waits (bounded by
// Server.ShutdownTimeout) for every in-flight session to close its own
// connection, mirroring tvarr's context.WithTimeout shutdown shape.
func (s *Server) shutdown() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}

	deadline := time.After(s.cfg.Server.ShutdownTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		remaining := len(s.sessions)
		s.mu.Unlock()
		if remaining == 0 {
			return nil
		}

		select {
		case <-deadline:
			s.log.Warn("shutdown timed out with sessions still open", slog.Int("remaining", remaining))
			s.closeAllSessions()
			return nil
		case <-ticker.C:
		}
	}
}

// closeAllSessions force-closes every still-open connection once the
// shutdown grace period has elapsed.
func (s *Server) closeAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.Conn.Close()
	}
}

// acl implements the allowed-hosts check from config.ACLConfig: an empty
// list permits every host, matching spec.md's allowedHosts documented
// behavior.
type acl struct {
	nets []*net.IPNet
	ips  []net.IP
}

func newACL(entries []string) *acl {
	a := &acl{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			a.nets = append(a.nets, ipnet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			a.ips = append(a.ips, ip)
		}
	}
	return a
}

func (a *acl) allows(addr net.Addr) bool {
	if len(a.nets) == 0 && len(a.ips) == 0 {
		return true
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, allowed := range a.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, ipnet := range a.nets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
