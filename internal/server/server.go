// Package server contains the TCP acceptor and the per-frame protocol
// handlers of the chat service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"parley/internal/config"
	"parley/internal/hub"
	"parley/internal/observability"
	"parley/internal/protocol"
	"parley/internal/service"
)

// readBufferSize is the size of the per-connection read buffer.
const readBufferSize = 4096

// Server accepts connections, spawns one worker goroutine per connection and
// routes decoded frames through the dispatch table.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	accounts *service.AccountService
	messages *service.MessageService

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
	log     *observability.ConnLogger
}

// NewServer wires the acceptor to its collaborators. The account and message
// services are injected so tests can substitute in-memory stores.
func NewServer(cfg *config.Config, h *hub.Hub, accounts *service.AccountService, messages *service.MessageService) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		accounts: accounts,
		messages: messages,
		log:      observability.NewConnLogger("tcp"),
	}
}

// Start binds the listen socket and launches the accept loop. Port 0 binds
// an ephemeral port, which Addr exposes for tests.
func (s *Server) Start() error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen failed on port %d: %w", s.cfg.Port, err)
	}
	s.ln = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	observability.GlobalLogger.Info("server started",
		"addr", ln.Addr().String(),
		"max_clients", s.cfg.MaxClients)
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Hub exposes the router for the status API.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Stop closes the listener, shuts down every session and joins all workers.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.hub.Shutdown()
	s.wg.Wait()
	observability.GlobalLogger.Info("server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			observability.GlobalLogger.Warn("accept error", "error", err.Error())
			continue
		}

		if s.hub.ClientCount() >= s.cfg.MaxClients {
			observability.GlobalLogger.Warn("max clients reached, rejecting connection",
				"addr", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}

		sess := s.hub.NewSession(conn)
		s.wg.Add(1)
		go s.serve(sess, conn)
	}
}

// serve is the per-connection worker: it pumps bytes into the session's
// framing buffer and dispatches complete frames until the peer goes away or
// the session is deactivated.
func (s *Server) serve(sess *hub.Session, conn net.Conn) {
	defer s.wg.Done()

	go sess.WritePump()
	s.log.LogConnect(context.Background(), sess.ID, sess.Addr)

	buf := make([]byte, readBufferSize)
	for s.running.Load() && sess.Active() {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
		sess.Buffer.Append(buf[:n])
		s.drainFrames(sess)
	}

	s.teardown(sess)
}

// drainFrames dispatches every complete frame currently buffered. Framing
// errors are reported to the session without closing the connection.
func (s *Server) drainFrames(sess *hub.Session) {
	for {
		msg, err := sess.Buffer.Next()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrFrameTooLarge):
				sess.Send(protocol.NewError("Message too large or invalid"))
			case errors.Is(err, protocol.ErrMalformedFrame):
				sess.Send(protocol.NewError("Invalid message format"))
			}
			continue
		}
		if msg == nil {
			return
		}
		s.dispatch(sess, *msg)
	}
}

// teardown unwinds the indexes after the read loop exits: offline broadcast
// for authenticated sessions (excluding the leaving socket), username
// deregistration and socket index removal.
func (s *Server) teardown(sess *hub.Session) {
	username := sess.Username()
	if username != "" {
		s.hub.Broadcast(protocol.NewUserStatus(username, false), sess.ID)
		s.hub.UnregisterUser(username)
	}
	s.hub.RemoveSession(sess.ID)
	sess.Close()
	s.log.LogDisconnect(context.Background(), sess.ID, sess.Addr, username)
}
