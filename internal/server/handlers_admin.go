package server

import (
	"context"
	"encoding/json"

	"parley/internal/hub"
	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/protocol"
)

// requireAdmin enforces the shared admin precondition: the session must be
// authenticated and the account must currently hold the admin role. The
// violation is reported to the session; the returned username is valid only
// when ok is true.
func (s *Server) requireAdmin(sess *hub.Session) (string, bool) {
	if !sess.Authenticated() {
		sess.Send(protocol.NewError("Must be logged in"))
		return "", false
	}
	username := sess.Username()

	admin, err := s.accounts.IsAdmin(context.Background(), username)
	if err != nil {
		s.fail(sess, err)
		return "", false
	}
	if !admin {
		sess.Send(protocol.NewError("Admin privileges required"))
		return "", false
	}
	return username, true
}

// adminTarget extracts and checks the target username carried in receiver.
func adminTarget(sess *hub.Session, msg protocol.Message) (string, bool) {
	if msg.Receiver == "" {
		sess.Send(protocol.NewError("Target user not specified"))
		return "", false
	}
	return msg.Receiver, true
}

// requireExists reports StateError when the target account is unknown.
func (s *Server) requireExists(sess *hub.Session, target string) bool {
	exists, err := s.accounts.UserExists(context.Background(), target)
	if err != nil {
		s.fail(sess, err)
		return false
	}
	if !exists {
		sess.Send(protocol.NewError("User not found: " + target))
		return false
	}
	return true
}

func (s *Server) handleKickUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if target == admin {
		sess.Send(protocol.NewError("Cannot kick yourself"))
		return
	}
	if !s.hub.IsUserOnline(target) {
		sess.Send(protocol.NewError("User not online: " + target))
		return
	}

	s.hub.SendToUser(target, protocol.Message{
		Type:      protocol.TypeKicked,
		Content:   "You have been kicked by " + admin,
		Timestamp: protocol.Now(),
	})
	s.hub.KickUser(target)

	observability.GlobalLogger.Info("user kicked", "username", target, "by", admin)
	sess.Send(protocol.NewOK("User kicked: "+target, ""))

	s.hub.Broadcast(protocol.NewUserStatus(target, false), 0)
}

func (s *Server) handleBanUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if target == admin {
		sess.Send(protocol.NewError("Cannot ban yourself"))
		return
	}

	ctx := context.Background()
	targetAdmin, err := s.accounts.IsAdmin(ctx, target)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if targetAdmin {
		sess.Send(protocol.NewError("Cannot ban an admin"))
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	if err := s.accounts.Ban(ctx, target); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user banned", "username", target, "by", admin)

	// A ban composes with a kick when the target is online.
	if s.hub.IsUserOnline(target) {
		s.hub.SendToUser(target, protocol.Message{
			Type:      protocol.TypeBanned,
			Content:   "You have been banned by " + admin,
			Timestamp: protocol.Now(),
		})
		s.hub.KickUser(target)
		s.hub.Broadcast(protocol.NewUserStatus(target, false), 0)
	}

	sess.Send(protocol.NewOK("User banned: "+target, ""))
}

func (s *Server) handleUnbanUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	if err := s.accounts.Unban(context.Background(), target); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user unbanned", "username", target, "by", admin)
	sess.Send(protocol.NewOK("User unbanned: "+target, ""))
}

func (s *Server) handleMuteUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if target == admin {
		sess.Send(protocol.NewError("Cannot mute yourself"))
		return
	}

	ctx := context.Background()
	targetAdmin, err := s.accounts.IsAdmin(ctx, target)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if targetAdmin {
		sess.Send(protocol.NewError("Cannot mute an admin"))
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	if err := s.accounts.Mute(ctx, target); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user muted", "username", target, "by", admin)

	if s.hub.IsUserOnline(target) {
		s.hub.SendToUser(target, protocol.Message{
			Type:      protocol.TypeMuted,
			Content:   "You have been muted by " + admin,
			Timestamp: protocol.Now(),
		})
	}
	sess.Send(protocol.NewOK("User muted: "+target, ""))
}

func (s *Server) handleUnmuteUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	if err := s.accounts.Unmute(context.Background(), target); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user unmuted", "username", target, "by", admin)

	if s.hub.IsUserOnline(target) {
		s.hub.SendToUser(target, protocol.Message{
			Type:      protocol.TypeUnmuted,
			Content:   "You have been unmuted by " + admin,
			Timestamp: protocol.Now(),
		})
	}
	sess.Send(protocol.NewOK("User unmuted: "+target, ""))
}

func (s *Server) handlePromoteUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	ctx := context.Background()
	targetAdmin, err := s.accounts.IsAdmin(ctx, target)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if targetAdmin {
		sess.Send(protocol.NewError("User is already an admin"))
		return
	}

	if err := s.accounts.SetRole(ctx, target, models.RoleAdmin); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user promoted", "username", target, "by", admin)
	sess.Send(protocol.NewOK("User promoted to admin: "+target, ""))
}

func (s *Server) handleDemoteUser(sess *hub.Session, msg protocol.Message) {
	admin, ok := s.requireAdmin(sess)
	if !ok {
		return
	}
	target, ok := adminTarget(sess, msg)
	if !ok {
		return
	}
	if target == admin {
		sess.Send(protocol.NewError("Cannot demote yourself"))
		return
	}
	if !s.requireExists(sess, target) {
		return
	}

	ctx := context.Background()
	targetAdmin, err := s.accounts.IsAdmin(ctx, target)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if !targetAdmin {
		sess.Send(protocol.NewError("User is not an admin"))
		return
	}

	if err := s.accounts.SetRole(ctx, target, models.RoleMember); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user demoted", "username", target, "by", admin)
	sess.Send(protocol.NewOK("User demoted from admin: "+target, ""))
}

func (s *Server) handleGetAllUsers(sess *hub.Session) {
	if _, ok := s.requireAdmin(sess); !ok {
		return
	}

	users, err := s.accounts.AllUsers(context.Background())
	if err != nil {
		s.fail(sess, err)
		return
	}

	infos := make([]models.UserInfo, 0, len(users))
	for i := range users {
		info := users[i].Info()
		info.IsOnline = s.hub.IsUserOnline(info.Username)
		infos = append(infos, info)
	}

	extra, err := json.Marshal(infos)
	if err != nil {
		s.fail(sess, models.NewInternalError(err))
		return
	}
	sess.Send(protocol.Message{Type: protocol.TypeGetAllUsers, Extra: string(extra), Timestamp: protocol.Now()})
}

func (s *Server) handleGetBannedList(sess *hub.Session) {
	if _, ok := s.requireAdmin(sess); !ok {
		return
	}
	s.sendUsernameList(sess, protocol.TypeGetBannedList, s.accounts.BannedUsernames)
}

func (s *Server) handleGetMutedList(sess *hub.Session) {
	if _, ok := s.requireAdmin(sess); !ok {
		return
	}
	s.sendUsernameList(sess, protocol.TypeGetMutedList, s.accounts.MutedUsernames)
}

func (s *Server) sendUsernameList(sess *hub.Session, t protocol.MessageType, query func(context.Context) ([]string, error)) {
	names, err := query(context.Background())
	if err != nil {
		s.fail(sess, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	extra, err := json.Marshal(names)
	if err != nil {
		s.fail(sess, models.NewInternalError(err))
		return
	}
	sess.Send(protocol.Message{Type: t, Extra: string(extra), Timestamp: protocol.Now()})
}
