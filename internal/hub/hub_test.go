package hub

import (
	"context"
	"net"
	"sync"
	"testing"

	"parley/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTracker captures presence transitions for assertions.
type recordingTracker struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (r *recordingTracker) Register(_ context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, username)
}

func (r *recordingTracker) Unregister(_ context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, username)
}

// newTestSession creates a session on a pipe; the far end is returned so
// tests can exercise WritePump when needed.
func newTestSession(t *testing.T, h *Hub) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return h.NewSession(server), client
}

// drainOne pops the next queued frame off the session without running the
// write pump.
func drainOne(t *testing.T, s *Session) protocol.Message {
	t.Helper()
	select {
	case frame := <-s.send:
		msg, err := protocol.Decode(frame[4:])
		require.NoError(t, err)
		return msg
	default:
		t.Fatal("no frame queued")
		return protocol.Message{}
	}
}

func TestNewSessionAssignsUniqueIDs(t *testing.T) {
	h := NewHub(nil)
	s1, _ := newTestSession(t, h)
	s2, _ := newTestSession(t, h)

	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, 2, h.ClientCount())
}

func TestRemoveSession(t *testing.T) {
	h := NewHub(nil)
	s, _ := newTestSession(t, h)

	h.RemoveSession(s.ID)
	assert.Equal(t, 0, h.ClientCount())

	// Removing twice is harmless.
	h.RemoveSession(s.ID)
	assert.Equal(t, 0, h.ClientCount())
}

func TestRegisterUnregisterUser(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewHub(tracker)
	s, _ := newTestSession(t, h)

	assert.False(t, h.IsUserOnline("alice"))

	s.SetAuthenticated("alice", "Alice")
	h.RegisterUser("alice", s)

	assert.True(t, h.IsUserOnline("alice"))
	assert.Equal(t, []string{"alice"}, h.OnlineUsers())
	assert.Equal(t, []string{"alice"}, tracker.registered)

	h.UnregisterUser("alice")
	assert.False(t, h.IsUserOnline("alice"))
	assert.Empty(t, h.OnlineUsers())
	assert.Equal(t, []string{"alice"}, tracker.unregistered)

	// Unregistering an unknown user does not reach the tracker again.
	h.UnregisterUser("alice")
	assert.Len(t, tracker.unregistered, 1)
}

func TestBroadcastOnlyAuthenticatedSessions(t *testing.T) {
	h := NewHub(nil)
	authed, _ := newTestSession(t, h)
	anon, _ := newTestSession(t, h)

	authed.SetAuthenticated("alice", "Alice")
	h.RegisterUser("alice", authed)

	h.Broadcast(protocol.NewGlobalMessage("alice", "hi"), 0)

	msg := drainOne(t, authed)
	assert.Equal(t, protocol.TypeMsgGlobal, msg.Type)
	assert.Equal(t, "hi", msg.Content)

	select {
	case <-anon.send:
		t.Fatal("anonymous session must not receive broadcasts")
	default:
	}
}

func TestBroadcastExcludesSocketID(t *testing.T) {
	h := NewHub(nil)
	a, _ := newTestSession(t, h)
	b, _ := newTestSession(t, h)
	a.SetAuthenticated("alice", "Alice")
	b.SetAuthenticated("bob", "Bob")
	h.RegisterUser("alice", a)
	h.RegisterUser("bob", b)

	h.Broadcast(protocol.NewUserStatus("alice", false), a.ID)

	msg := drainOne(t, b)
	assert.Equal(t, protocol.TypeUserStatus, msg.Type)
	assert.Equal(t, "offline", msg.Content)

	select {
	case <-a.send:
		t.Fatal("excluded session must not receive the broadcast")
	default:
	}
}

func TestSendToUser(t *testing.T) {
	h := NewHub(nil)
	s, _ := newTestSession(t, h)
	s.SetAuthenticated("bob", "Bob")
	h.RegisterUser("bob", s)

	assert.False(t, h.SendToUser("nobody", protocol.NewError("x")))

	require.True(t, h.SendToUser("bob", protocol.NewPrivateMessage("alice", "bob", "psst")))
	msg := drainOne(t, s)
	assert.Equal(t, protocol.TypeMsgPrivate, msg.Type)
	assert.Equal(t, "psst", msg.Content)
}

func TestKickUser(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewHub(tracker)
	s, _ := newTestSession(t, h)
	s.SetAuthenticated("bob", "Bob")
	h.RegisterUser("bob", s)

	h.KickUser("bob")

	assert.False(t, h.IsUserOnline("bob"))
	assert.False(t, s.Authenticated())
	assert.False(t, s.Active())
	assert.Equal(t, []string{"bob"}, tracker.unregistered)

	// Kicking an offline user is a no-op.
	h.KickUser("bob")
	assert.Len(t, tracker.unregistered, 1)
}

func TestKickFlushesQueuedFrames(t *testing.T) {
	h := NewHub(nil)
	s, far := newTestSession(t, h)
	s.SetAuthenticated("bob", "Bob")
	h.RegisterUser("bob", s)

	go s.WritePump()

	require.True(t, h.SendToUser("bob", protocol.Message{
		Type:      protocol.TypeKicked,
		Content:   "You have been kicked by admin",
		Timestamp: protocol.Now(),
	}))
	h.KickUser("bob")

	// The queued KICKED frame arrives before the connection closes.
	var buf protocol.FrameBuffer
	chunk := make([]byte, 4096)
	for {
		n, err := far.Read(chunk)
		if n > 0 {
			buf.Append(chunk[:n])
		}
		if buf.HasCompleteFrame() || err != nil {
			break
		}
	}
	msg, err := buf.Next()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, protocol.TypeKicked, msg.Type)
	assert.Equal(t, "You have been kicked by admin", msg.Content)
}

func TestShutdownClosesEverything(t *testing.T) {
	h := NewHub(nil)
	s1, _ := newTestSession(t, h)
	s2, _ := newTestSession(t, h)
	s1.SetAuthenticated("alice", "Alice")
	h.RegisterUser("alice", s1)

	h.Shutdown()

	assert.Equal(t, 0, h.ClientCount())
	assert.Empty(t, h.OnlineUsers())
	assert.False(t, s1.Active())
	assert.False(t, s2.Active())
}

func TestSnapshot(t *testing.T) {
	h := NewHub(nil)
	s, _ := newTestSession(t, h)
	s.SetAuthenticated("alice", "Alice A")
	h.RegisterUser("alice", s)

	infos := h.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, "alice", infos[0].Username)
	assert.Equal(t, "Alice A", infos[0].DisplayName)
	assert.True(t, infos[0].Authenticated)
	assert.NotEmpty(t, infos[0].Addr)
}
