package entity

import "time"

// User is an account holder. PasswordHash is a bcrypt hash and must never
// leave the service, so it carries the "-" JSON tag.
type User struct {
	ID            int64     `json:"id,string"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
