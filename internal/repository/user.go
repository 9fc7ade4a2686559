// Package repository implements the data access layer for the chat service.
package repository

import (
	"context"
	"errors"
	"strings"

	"parley/internal/models"
	"parley/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePassword(ctx context.Context, username, hashed string) error
	SetBanned(ctx context.Context, username string, banned bool) error
	SetMuted(ctx context.Context, username string, muted bool) error
	SetRole(ctx context.Context, username string, role int) error
	SetDisplayName(ctx context.Context, username, displayName string) error
	List(ctx context.Context) ([]models.User, error)
	UsernamesWhere(ctx context.Context, column string, value bool) ([]string, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "get_by_username")
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, username, hashed string) error {
	return r.updateColumn(ctx, username, "password", hashed, "update_password")
}

func (r *userRepository) SetBanned(ctx context.Context, username string, banned bool) error {
	return r.updateColumn(ctx, username, "is_banned", banned, "set_banned")
}

func (r *userRepository) SetMuted(ctx context.Context, username string, muted bool) error {
	return r.updateColumn(ctx, username, "is_muted", muted, "set_muted")
}

func (r *userRepository) SetRole(ctx context.Context, username string, role int) error {
	return r.updateColumn(ctx, username, "role", role, "set_role")
}

func (r *userRepository) SetDisplayName(ctx context.Context, username, displayName string) error {
	return r.updateColumn(ctx, username, "display_name", displayName, "set_display_name")
}

// updateColumn performs a single-column update and reports NOT_FOUND when no
// row matched.
func (r *userRepository) updateColumn(ctx context.Context, username, column string, value interface{}, op string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update(column, value)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, op)
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User not found: " + username)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) UsernamesWhere(ctx context.Context, column string, value bool) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where(column+" = ?", value).
		Order("username ASC").
		Pluck("username", &names).Error; err != nil {
		r.log.LogError(ctx, err, "usernames_where")
		return nil, models.NewInternalError(err)
	}
	return names, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505, sqlite "UNIQUE constraint failed"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
