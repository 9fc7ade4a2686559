package hub

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"parley/internal/observability"
	"parley/internal/protocol"
)

// PresenceTracker mirrors online/offline transitions to an external store.
// Implementations must tolerate being called from hub lock scopes, so they
// must not call back into the hub.
type PresenceTracker interface {
	Register(ctx context.Context, username string)
	Unregister(ctx context.Context, username string)
}

// SessionInfo is one row of the status snapshot consumed by the operator
// console.
type SessionInfo struct {
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	Addr          string `json:"addr"`
	Authenticated bool   `json:"authenticated"`
	Role          int    `json:"role"`
}

// Hub owns the two process-wide indexes: socket-id to session (owning) and
// username to socket-id (lookup). Lock order is clients before users; the
// reverse is never taken.
type Hub struct {
	clientsMu sync.RWMutex
	clients   map[uint64]*Session

	usersMu sync.RWMutex
	users   map[string]uint64

	nextID   atomic.Uint64
	presence PresenceTracker
}

// NewHub creates an empty hub. presence may be nil.
func NewHub(presence PresenceTracker) *Hub {
	return &Hub{
		clients:  make(map[uint64]*Session),
		users:    make(map[string]uint64),
		presence: presence,
	}
}

// NewSession wraps an accepted connection in a Session and installs it in
// the socket index.
func (h *Hub) NewSession(conn net.Conn) *Session {
	s := newSession(h.nextID.Add(1), conn)

	h.clientsMu.Lock()
	h.clients[s.ID] = s
	h.clientsMu.Unlock()

	observability.ConnectionsActive.Inc()
	return s
}

// RemoveSession drops the session from the socket index. The caller is
// responsible for having unregistered any username first.
func (h *Hub) RemoveSession(id uint64) {
	h.clientsMu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.clientsMu.Unlock()

	if ok {
		observability.ConnectionsActive.Dec()
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// RegisterUser binds an authenticated username to the session's socket id.
// At most one live session per username is maintained by the LOGIN handler's
// duplicate check.
func (h *Hub) RegisterUser(username string, s *Session) {
	h.usersMu.Lock()
	h.users[username] = s.ID
	h.usersMu.Unlock()

	observability.SessionsAuthenticated.Inc()
	if h.presence != nil {
		h.presence.Register(context.Background(), username)
	}
}

// UnregisterUser removes the username binding, if present.
func (h *Hub) UnregisterUser(username string) {
	h.usersMu.Lock()
	_, ok := h.users[username]
	delete(h.users, username)
	h.usersMu.Unlock()

	if ok {
		observability.SessionsAuthenticated.Dec()
		if h.presence != nil {
			h.presence.Unregister(context.Background(), username)
		}
	}
}

// IsUserOnline reports whether the username has a live authenticated session.
func (h *Hub) IsUserOnline(username string) bool {
	h.usersMu.RLock()
	defer h.usersMu.RUnlock()
	_, ok := h.users[username]
	return ok
}

// OnlineUsers snapshots the username index keys.
func (h *Hub) OnlineUsers() []string {
	h.usersMu.RLock()
	defer h.usersMu.RUnlock()
	users := make([]string, 0, len(h.users))
	for username := range h.users {
		users = append(users, username)
	}
	return users
}

// Broadcast fans one frame out to every authenticated session except the
// excluded socket id (0 excludes nothing). The fan-out covers the snapshot
// of sessions at the moment the lock is taken; per-recipient ordering is the
// session queue order, cross-session ordering is unspecified.
func (h *Hub) Broadcast(msg protocol.Message, excludeID uint64) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return
	}

	observability.BroadcastsTotal.Inc()

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for id, s := range h.clients {
		if id != excludeID && s.Authenticated() {
			s.trySend(frame)
		}
	}
}

// SendToUser delivers one frame to whichever session is authenticated under
// the username. Returns false when the user is not online or the session has
// gone away.
func (h *Hub) SendToUser(username string, msg protocol.Message) bool {
	h.usersMu.RLock()
	id, ok := h.users[username]
	h.usersMu.RUnlock()
	if !ok {
		return false
	}

	h.clientsMu.RLock()
	s, ok := h.clients[id]
	h.clientsMu.RUnlock()
	if !ok {
		return false
	}
	return s.Send(msg)
}

// KickUser removes the username from the user index, clears the target
// session's authentication and closes it. Queued frames (such as a KICKED
// notice sent just before) are flushed before the connection drops.
func (h *Hub) KickUser(username string) {
	h.usersMu.Lock()
	id, ok := h.users[username]
	delete(h.users, username)
	h.usersMu.Unlock()
	if !ok {
		return
	}

	observability.SessionsAuthenticated.Dec()
	if h.presence != nil {
		h.presence.Unregister(context.Background(), username)
	}

	h.clientsMu.RLock()
	s, found := h.clients[id]
	h.clientsMu.RUnlock()
	if found {
		s.ClearAuthentication()
		s.Close()
	}
}

// Snapshot returns the connected-session view for the status API. Role
// resolution against the account store is the caller's concern.
func (h *Hub) Snapshot() []SessionInfo {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	infos := make([]SessionInfo, 0, len(h.clients))
	for _, s := range h.clients {
		infos = append(infos, SessionInfo{
			Username:      s.Username(),
			DisplayName:   s.DisplayName(),
			Addr:          s.Addr,
			Authenticated: s.Authenticated(),
		})
	}
	return infos
}

// Shutdown closes every session and clears both indexes.
func (h *Hub) Shutdown() {
	h.clientsMu.Lock()
	sessions := make([]*Session, 0, len(h.clients))
	for _, s := range h.clients {
		sessions = append(sessions, s)
	}
	h.clients = make(map[uint64]*Session)
	h.clientsMu.Unlock()

	h.usersMu.Lock()
	h.users = make(map[string]uint64)
	h.usersMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	observability.ConnectionsActive.Set(0)
	observability.SessionsAuthenticated.Set(0)
}
