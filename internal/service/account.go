// Package service implements the business logic between the protocol
// handlers and the repositories.
package service

import (
	"context"

	"parley/internal/auth"
	"parley/internal/models"
	"parley/internal/repository"
)

// Account validation bounds. Enforced before touching the store.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
	MinPasswordLen = 4
)

// ValidateUsername checks registration username bounds.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return models.NewValidationError("Username must be 3-20 characters")
	}
	return nil
}

// ValidatePassword checks password length for REGISTER and the new password
// of CHANGE_PASSWORD.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return models.NewValidationError("Password must be at least 4 characters")
	}
	return nil
}

// AccountService owns account lifecycle and moderation flags.
type AccountService struct {
	users  repository.UserRepository
	hasher auth.Hasher
}

// NewAccountService creates an AccountService backed by the given repository
// and password hasher.
func NewAccountService(users repository.UserRepository, hasher auth.Hasher) *AccountService {
	return &AccountService{users: users, hasher: hasher}
}

// Register creates a new account with member role and clear moderation
// flags. The display name defaults to the username.
func (s *AccountService) Register(ctx context.Context, username, password, displayName string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return models.NewInternalError(err)
	}
	if displayName == "" {
		displayName = username
	}
	return s.users.Create(ctx, &models.User{
		Username:    username,
		Password:    hashed,
		DisplayName: displayName,
		Role:        models.RoleMember,
	})
}

// Authenticate reports whether the credentials match a stored account. It
// does not disclose whether the username exists.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return s.hasher.Verify(user.Password, password), nil
}

// ChangePassword re-verifies the old password before storing the new one.
func (s *AccountService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	ok, err := s.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("Incorrect old password")
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, username, hashed)
}

// User returns the stored account, or nil when unknown.
func (s *AccountService) User(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// UserExists reports whether the username is registered.
func (s *AccountService) UserExists(ctx context.Context, username string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	return user != nil, err
}

// IsBanned reports the banned flag; unknown users are not banned.
func (s *AccountService) IsBanned(ctx context.Context, username string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return false, err
	}
	return user.IsBanned, nil
}

// IsMuted reports the muted flag; unknown users are not muted.
func (s *AccountService) IsMuted(ctx context.Context, username string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return false, err
	}
	return user.IsMuted, nil
}

// IsAdmin reports whether the username holds the admin role.
func (s *AccountService) IsAdmin(ctx context.Context, username string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// Role returns the stored role, defaulting to member for unknown users.
func (s *AccountService) Role(ctx context.Context, username string) (int, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return models.RoleMember, err
	}
	return user.Role, nil
}

// DisplayName returns the display name, or the username itself when the
// account is unknown.
func (s *AccountService) DisplayName(ctx context.Context, username string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return username, err
	}
	return user.DisplayName, nil
}

// Ban sets the banned flag.
func (s *AccountService) Ban(ctx context.Context, username string) error {
	return s.users.SetBanned(ctx, username, true)
}

// Unban clears the banned flag.
func (s *AccountService) Unban(ctx context.Context, username string) error {
	return s.users.SetBanned(ctx, username, false)
}

// Mute sets the muted flag.
func (s *AccountService) Mute(ctx context.Context, username string) error {
	return s.users.SetMuted(ctx, username, true)
}

// Unmute clears the muted flag.
func (s *AccountService) Unmute(ctx context.Context, username string) error {
	return s.users.SetMuted(ctx, username, false)
}

// SetRole updates the stored role.
func (s *AccountService) SetRole(ctx context.Context, username string, role int) error {
	if role != models.RoleMember && role != models.RoleAdmin {
		return models.NewValidationError("Invalid role")
	}
	return s.users.SetRole(ctx, username, role)
}

// SetDisplayName updates the display name.
func (s *AccountService) SetDisplayName(ctx context.Context, username, displayName string) error {
	return s.users.SetDisplayName(ctx, username, displayName)
}

// Info returns the wire representation of a stored account, or NOT_FOUND.
// The caller fills in the online bit.
func (s *AccountService) Info(ctx context.Context, username string) (*models.UserInfo, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User not found: " + username)
	}
	info := user.Info()
	return &info, nil
}

// AllUsers returns every stored account ordered by username.
func (s *AccountService) AllUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// BannedUsernames returns the usernames with the banned flag set.
func (s *AccountService) BannedUsernames(ctx context.Context) ([]string, error) {
	return s.users.UsernamesWhere(ctx, "is_banned", true)
}

// MutedUsernames returns the usernames with the muted flag set.
func (s *AccountService) MutedUsernames(ctx context.Context) ([]string, error) {
	return s.users.UsernamesWhere(ctx, "is_muted", true)
}
