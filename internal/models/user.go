package models

import "time"

// User is an account. Password holds the bcrypt hash and never leaves the process.
type User struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	Password               string     `json:"-"`
	PasswordResetToken     *string    `json:"-"`
	PasswordTokenExpiresAt *time.Time `json:"-"`
	PasswordLastChanged    *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"-"`
}

// PasswordChangedSince reports whether the password was changed at or after
// issuedAt (unix seconds). Tokens issued before the change must be rejected.
func (u *User) PasswordChangedSince(issuedAt int64) bool {
	if u.PasswordLastChanged == nil {
		return false
	}
	return u.PasswordLastChanged.Unix() >= issuedAt
}

// Author is the public projection of a user embedded in posts.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BlacklistedToken is an auth token revoked by logout.
type BlacklistedToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    *string   `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
