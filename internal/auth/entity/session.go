package entity

import "time"

// Session is one authenticated browser or API client. The token doubles as
// the storage key and the cookie value.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId,string"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
