package auth

import (
	"errors"
	"time"

	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

// ErrInvalidCredentials is returned for unknown users, inactive accounts and
// wrong passwords alike.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrNotFound indicates that no user matches the lookup.
var ErrNotFound = errors.New("auth: user not found")

// User represents an account allowed to call the gateway.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal converts the user into the caller identity used by the guard.
func (u *User) Principal() *rbac.Principal {
	return &rbac.Principal{
		ID:            u.ID,
		Username:      u.Username,
		IsSuperuser:   u.IsSuperuser,
		Authenticated: true,
	}
}
