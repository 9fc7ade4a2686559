package server

import (
	"context"

	"parley/internal/hub"
	"parley/internal/observability"
	"parley/internal/protocol"
)

// serverSender is the sender name stamped on operator-originated messages.
const serverSender = "[SERVER]"

// ConnectedClients snapshots every open session for the operator console,
// resolving the stored role for authenticated ones.
func (s *Server) ConnectedClients() []hub.SessionInfo {
	infos := s.hub.Snapshot()
	for i := range infos {
		if infos[i].Authenticated && infos[i].Username != "" {
			role, err := s.accounts.Role(context.Background(), infos[i].Username)
			if err == nil {
				infos[i].Role = role
			}
		}
	}
	return infos
}

// BroadcastServerMessage injects an operator global message through the
// normal fan-out.
func (s *Server) BroadcastServerMessage(content string) {
	s.hub.Broadcast(protocol.NewGlobalMessage(serverSender, content), 0)
	observability.GlobalLogger.Info("server broadcast", "content", content)
}

// SendServerMessageToUser injects an operator private message. Returns false
// when the user is not online.
func (s *Server) SendServerMessageToUser(username, content string) bool {
	sent := s.hub.SendToUser(username, protocol.NewPrivateMessage(serverSender, username, content))
	if sent {
		observability.GlobalLogger.Info("server message",
			"username", username, "content", content)
	}
	return sent
}
