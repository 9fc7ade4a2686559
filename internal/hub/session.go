// Package hub routes frames between live sessions. It owns the process-wide
// socket and username indexes and the per-connection session state.
package hub

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"parley/internal/observability"
	"parley/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Outbound queue capacity per session. Overflow drops the frame rather
	// than stalling the fan-out.
	sendQueueSize = 256

	// Chat frames allowed per rate-limit window.
	rateLimitMaxMessages = 10
	rateLimitWindow      = time.Second
)

// Session is the per-connection authoritative state on the server side. The
// session owns its connection; the hub holds it by socket id and, once
// authenticated, by username.
type Session struct {
	ID   uint64
	Addr string

	conn net.Conn

	// Inbound framing buffer, touched only by the read loop.
	Buffer protocol.FrameBuffer

	send      chan []byte
	closeOnce sync.Once
	active    atomic.Bool

	mu            sync.Mutex
	username      string
	displayName   string
	authenticated bool

	rlMu        sync.Mutex
	windowStart time.Time
	windowCount int
}

func newSession(id uint64, conn net.Conn) *Session {
	s := &Session{
		ID:          id,
		Addr:        conn.RemoteAddr().String(),
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		windowStart: time.Now(),
	}
	s.active.Store(true)
	return s
}

// Active reports whether the session should keep serving. Cleared on kick,
// close and server shutdown; the read loop observes it after every read.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Username returns the authenticated username, empty while anonymous.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// DisplayName returns the cached display name of the authenticated user.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// Authenticated reports whether the session has completed LOGIN.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// SetAuthenticated transitions the session to the Authenticated state.
func (s *Session) SetAuthenticated(username, displayName string) {
	s.mu.Lock()
	s.username = username
	s.displayName = displayName
	s.authenticated = true
	s.mu.Unlock()
}

// ClearAuthentication transitions the session back to Anonymous.
func (s *Session) ClearAuthentication() {
	s.mu.Lock()
	s.username = ""
	s.displayName = ""
	s.authenticated = false
	s.mu.Unlock()
}

// AllowChat applies the per-session chat window: at most
// rateLimitMaxMessages user chat frames per rolling window. The counter
// resets when the window elapses; an over-limit frame is counted and
// rejected, not delayed.
func (s *Session) AllowChat() bool {
	s.rlMu.Lock()
	defer s.rlMu.Unlock()

	now := time.Now()
	if now.Sub(s.windowStart) >= rateLimitWindow {
		s.windowStart = now
		s.windowCount = 1
		return true
	}
	s.windowCount++
	return s.windowCount <= rateLimitMaxMessages
}

// Send encodes and queues one frame for delivery. Frames from one session
// are written in queue order; a full queue drops the frame.
func (s *Session) Send(msg protocol.Message) bool {
	frame, err := protocol.Encode(msg)
	if err != nil {
		observability.GlobalLogger.Error("frame encode failed",
			slog.Uint64("session_id", s.ID),
			slog.String("error", err.Error()))
		return false
	}
	return s.trySend(frame)
}

// trySend queues raw bytes, handling a closed channel and a full queue.
func (s *Session) trySend(frame []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			// Send raced with Close; the session is going away.
			observability.FramesDroppedTotal.WithLabelValues("closed").Inc()
			ok = false
		}
	}()

	if !s.active.Load() {
		observability.FramesDroppedTotal.WithLabelValues("inactive").Inc()
		return false
	}

	select {
	case s.send <- frame:
		return true
	default:
		observability.FramesDroppedTotal.WithLabelValues("full").Inc()
		observability.GlobalLogger.Warn("send queue full, frame dropped",
			slog.Uint64("session_id", s.ID),
			slog.String("addr", s.Addr))
		return false
	}
}

// WritePump drains the outbound queue onto the connection. It exits when
// Close is called, after flushing whatever was queued first, and then closes
// the underlying connection, which unblocks the read loop.
func (s *Session) WritePump() {
	defer func() {
		_ = s.conn.Close()
	}()

	for frame := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := s.conn.Write(frame); err != nil {
			// Peer is gone; keep draining so senders never block.
			continue
		}
	}
}

// Close marks the session inactive and closes the outbound queue. Queued
// frames (for example a KICKED notice) are still flushed by WritePump before
// the connection is torn down. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.active.Store(false)
		close(s.send)
	})
}
