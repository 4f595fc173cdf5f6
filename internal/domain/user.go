package domain

import (
	"time"

	"github.com/totegamma/memorial"
)

// User is an account as stored, including its credential hash.
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	IsAdmin       bool
	CreatedAt     time.Time
}

func (u User) Public() memorial.User {
	return memorial.User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		IsAdmin:       u.IsAdmin,
	}
}

func (u User) Requester() Requester {
	return Requester{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		IsAdmin: u.IsAdmin,
	}
}
