// Package domain contains entities without logic, just meta-data
// and the legal state transitions of the system.
package domain

import (
	"errors"
	"time"
)

const (
	MaxUsernameLen = 36
	MaxAboutLen    = 140
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

type User struct {
	ID       UserID    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Avatar   string    `json:"avatar,omitempty"`
	About    string    `json:"about,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}

// Profile is a read-only view safe to relay to other users
// (no email, no auth fields).
type Profile struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// Presence is what gets broadcast on every online/offline flip.
type Presence struct {
	UserID   UserID    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}
