// Package models contains data structures for the chat service's domain.
package models

import "time"

// Role values stored on a user row.
const (
	RoleMember = 0
	RoleAdmin  = 1
)

// User represents a registered chat account.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null;size:20" json:"username"`
	Password    string    `gorm:"not null" json:"-"`
	DisplayName string    `json:"displayName"`
	Role        int       `gorm:"default:0" json:"role"`
	IsBanned    bool      `gorm:"default:false" json:"isBanned"`
	IsMuted     bool      `gorm:"default:false" json:"isMuted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserInfo is the record shape sent to clients in USER_INFO and
// GET_ALL_USERS replies. CreatedAt is formatted server-side; IsOnline is
// resolved against the hub at reply time, not stored.
type UserInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        int    `json:"role"`
	IsBanned    bool   `json:"isBanned"`
	IsMuted     bool   `json:"isMuted"`
	CreatedAt   string `json:"createdAt"`
	IsOnline    bool   `json:"isOnline"`
}

// Info converts a stored user into its wire representation. The online bit
// is left false for the caller to fill in.
func (u *User) Info() UserInfo {
	return UserInfo{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsBanned:    u.IsBanned,
		IsMuted:     u.IsMuted,
		CreatedAt:   u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
