// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	FirstName             string     `db:"first_name"`
	LastName              string     `db:"last_name"`
	Role                  string     `db:"role"`
	RefreshTokenHash      *string    `db:"refresh_token_hash"`
	RefreshTokenExpiresAt *time.Time `db:"refresh_token_expires_at"`
	ResetTokenHash        *string    `db:"reset_token_hash"`
	ResetTokenExpiresAt   *time.Time `db:"reset_token_expires_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (u *User) RefreshTokenExpired() bool {
	return u.RefreshTokenExpiresAt == nil ||
		time.Now().After(*u.RefreshTokenExpiresAt)
}

func (u *User) ResetTokenExpired() bool {
	return u.ResetTokenExpiresAt == nil ||
		time.Now().After(*u.ResetTokenExpiresAt)
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
