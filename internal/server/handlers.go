package server

import (
	"context"
	"encoding/json"
	"errors"

	"parley/internal/hub"
	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/protocol"
	"parley/internal/service"
)

// credentials is the content payload of REGISTER and LOGIN frames.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// passwordChange is the content payload of CHANGE_PASSWORD frames.
type passwordChange struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// loginExtra is the extra payload of a successful LOGIN reply.
type loginExtra struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        int    `json:"role"`
	IsMuted     bool   `json:"isMuted"`
}

// dispatch routes one decoded frame to its handler. A handler panic is
// confined here: it is logged, answered with a generic error and never
// unwinds into the read loop.
func (s *Server) dispatch(sess *hub.Session, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.LogError(context.Background(), sess.ID,
				errors.New("panic in handler"), msg.Type.String())
			sess.Send(protocol.NewError("Internal server error"))
		}
	}()

	s.log.LogFrame(context.Background(), sess.ID, msg.Type.String())

	switch msg.Type {
	case protocol.TypeRegister:
		s.handleRegister(sess, msg)
	case protocol.TypeLogin:
		s.handleLogin(sess, msg)
	case protocol.TypeLogout:
		s.handleLogout(sess)
	case protocol.TypeChangePassword:
		s.handleChangePassword(sess, msg)
	case protocol.TypeMsgGlobal:
		s.handleGlobalMessage(sess, msg)
	case protocol.TypeMsgPrivate:
		s.handlePrivateMessage(sess, msg)
	case protocol.TypePing:
		sess.Send(protocol.Message{Type: protocol.TypePong, Timestamp: protocol.Now()})
	case protocol.TypeUserInfo:
		s.handleUserInfo(sess, msg)
	case protocol.TypeKickUser:
		s.handleKickUser(sess, msg)
	case protocol.TypeBanUser:
		s.handleBanUser(sess, msg)
	case protocol.TypeUnbanUser:
		s.handleUnbanUser(sess, msg)
	case protocol.TypeMuteUser:
		s.handleMuteUser(sess, msg)
	case protocol.TypeUnmuteUser:
		s.handleUnmuteUser(sess, msg)
	case protocol.TypePromoteUser:
		s.handlePromoteUser(sess, msg)
	case protocol.TypeDemoteUser:
		s.handleDemoteUser(sess, msg)
	case protocol.TypeGetAllUsers:
		s.handleGetAllUsers(sess)
	case protocol.TypeGetBannedList:
		s.handleGetBannedList(sess)
	case protocol.TypeGetMutedList:
		s.handleGetMutedList(sess)
	default:
		sess.Send(protocol.NewError("Unknown command"))
	}
}

// fail converts a service error into one ERROR frame. Internal causes are
// logged and masked.
func (s *Server) fail(sess *hub.Session, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == models.CodeInternal {
			s.log.LogError(context.Background(), sess.ID, err, "handler")
		}
		sess.Send(protocol.NewError(appErr.UserMessage()))
		return
	}
	s.log.LogError(context.Background(), sess.ID, err, "handler")
	sess.Send(protocol.NewError("Internal server error"))
}

func (s *Server) handleRegister(sess *hub.Session, msg protocol.Message) {
	var creds credentials
	if err := json.Unmarshal([]byte(msg.Content), &creds); err != nil {
		sess.Send(protocol.NewError("Invalid request format"))
		return
	}
	if creds.Username == "" || creds.Password == "" {
		sess.Send(protocol.NewError("Username and password are required"))
		return
	}
	if err := service.ValidateUsername(creds.Username); err != nil {
		s.fail(sess, err)
		return
	}
	if err := service.ValidatePassword(creds.Password); err != nil {
		s.fail(sess, err)
		return
	}

	if err := s.accounts.Register(context.Background(), creds.Username, creds.Password, ""); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("user registered", "username", creds.Username)
	sess.Send(protocol.NewOK("Registration successful", ""))
}

func (s *Server) handleLogin(sess *hub.Session, msg protocol.Message) {
	if sess.Authenticated() {
		sess.Send(protocol.NewError("Already logged in"))
		return
	}

	var creds credentials
	if err := json.Unmarshal([]byte(msg.Content), &creds); err != nil {
		sess.Send(protocol.NewError("Invalid request format"))
		return
	}

	ctx := context.Background()

	if s.hub.IsUserOnline(creds.Username) {
		observability.AuthFailuresTotal.WithLabelValues("duplicate_session").Inc()
		sess.Send(protocol.NewError("User already logged in from another location"))
		return
	}

	banned, err := s.accounts.IsBanned(ctx, creds.Username)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if banned {
		observability.AuthFailuresTotal.WithLabelValues("banned").Inc()
		sess.Send(protocol.NewError("Your account has been banned"))
		return
	}

	ok, err := s.accounts.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		s.fail(sess, err)
		return
	}
	if !ok {
		observability.AuthFailuresTotal.WithLabelValues("wrong_credentials").Inc()
		sess.Send(protocol.NewError("Invalid username or password"))
		return
	}

	user, err := s.accounts.User(ctx, creds.Username)
	if err != nil || user == nil {
		s.fail(sess, models.NewInternalError(err))
		return
	}

	sess.SetAuthenticated(user.Username, user.DisplayName)
	s.hub.RegisterUser(user.Username, sess)

	observability.GlobalLogger.Info("user logged in",
		"username", user.Username, "addr", sess.Addr)

	extra, _ := json.Marshal(loginExtra{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		IsMuted:     user.IsMuted,
	})
	sess.Send(protocol.NewOK("Login successful", string(extra)))

	s.hub.Broadcast(protocol.NewUserStatus(user.Username, true), 0)

	if list, err := protocol.NewOnlineList(s.hub.OnlineUsers()); err == nil {
		sess.Send(list)
	}
}

func (s *Server) handleLogout(sess *hub.Session) {
	if !sess.Authenticated() {
		sess.Send(protocol.NewError("Not logged in"))
		return
	}

	username := sess.Username()
	observability.GlobalLogger.Info("user logged out", "username", username)

	s.hub.Broadcast(protocol.NewUserStatus(username, false), sess.ID)
	s.hub.UnregisterUser(username)
	sess.ClearAuthentication()

	// The "Logged out" prefix is recognized by clients.
	sess.Send(protocol.NewOK("Logged out successfully", ""))
}

func (s *Server) handleChangePassword(sess *hub.Session, msg protocol.Message) {
	if !sess.Authenticated() {
		sess.Send(protocol.NewError("Must be logged in to change password"))
		return
	}

	var change passwordChange
	if err := json.Unmarshal([]byte(msg.Content), &change); err != nil {
		sess.Send(protocol.NewError("Invalid request format"))
		return
	}
	if len(change.NewPassword) < service.MinPasswordLen {
		sess.Send(protocol.NewError("New password must be at least 4 characters"))
		return
	}

	username := sess.Username()
	if err := s.accounts.ChangePassword(context.Background(), username, change.OldPassword, change.NewPassword); err != nil {
		s.fail(sess, err)
		return
	}
	observability.GlobalLogger.Info("password changed", "username", username)
	sess.Send(protocol.NewOK("Password changed successfully", ""))
}

// checkChatPreconditions applies the shared precondition ladder for chat
// frames: authenticated, not muted, within the rate window. It reports the
// violation itself and returns false when the frame must not proceed.
func (s *Server) checkChatPreconditions(sess *hub.Session) (string, bool) {
	if !sess.Authenticated() {
		sess.Send(protocol.NewError("Must be logged in to send messages"))
		return "", false
	}
	username := sess.Username()

	muted, err := s.accounts.IsMuted(context.Background(), username)
	if err != nil {
		s.fail(sess, err)
		return "", false
	}
	if muted {
		sess.Send(protocol.NewError("You are muted and cannot send messages"))
		return "", false
	}

	if !sess.AllowChat() {
		observability.RateLimitedTotal.Inc()
		sess.Send(protocol.NewError("Rate limit exceeded. Please wait before sending more messages."))
		return "", false
	}
	return username, true
}

func (s *Server) handleGlobalMessage(sess *hub.Session, msg protocol.Message) {
	username, ok := s.checkChatPreconditions(sess)
	if !ok {
		return
	}
	if msg.Content == "" {
		return
	}

	if err := s.messages.Log(context.Background(), username, "", msg.Content, models.KindGlobal); err != nil {
		s.fail(sess, err)
		return
	}

	// The sender receives the authoritative copy through the broadcast.
	s.hub.Broadcast(protocol.NewGlobalMessage(username, msg.Content), 0)
}

func (s *Server) handlePrivateMessage(sess *hub.Session, msg protocol.Message) {
	sender, ok := s.checkChatPreconditions(sess)
	if !ok {
		return
	}

	receiver := msg.Receiver
	if receiver == "" {
		sess.Send(protocol.NewError("Receiver not specified"))
		return
	}
	if msg.Content == "" {
		return
	}
	if receiver == sender {
		sess.Send(protocol.NewError("Cannot send message to yourself"))
		return
	}

	// Presence is checked before the log append so a rejected message leaves
	// no row behind.
	if !s.hub.IsUserOnline(receiver) {
		sess.Send(protocol.NewError("User not online: " + receiver))
		return
	}

	if err := s.messages.Log(context.Background(), sender, receiver, msg.Content, models.KindPrivate); err != nil {
		s.fail(sess, err)
		return
	}

	private := protocol.NewPrivateMessage(sender, receiver, msg.Content)
	if !s.hub.SendToUser(receiver, private) {
		sess.Send(protocol.NewError("User not online: " + receiver))
		return
	}
	// Copy to the sender so both sides render the same history.
	sess.Send(private)
}

func (s *Server) handleUserInfo(sess *hub.Session, msg protocol.Message) {
	if !sess.Authenticated() {
		sess.Send(protocol.NewError("Must be logged in"))
		return
	}

	target := msg.Receiver
	if target == "" {
		target = sess.Username()
	}

	info, err := s.accounts.Info(context.Background(), target)
	if err != nil {
		s.fail(sess, err)
		return
	}
	info.IsOnline = s.hub.IsUserOnline(info.Username)

	extra, err := json.Marshal(info)
	if err != nil {
		s.fail(sess, models.NewInternalError(err))
		return
	}
	sess.Send(protocol.Message{Type: protocol.TypeUserInfo, Extra: string(extra), Timestamp: protocol.Now()})
}
