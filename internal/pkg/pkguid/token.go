package pkguid

import (
	"crypto/rand"
	"encoding/base64"
)

// Token generates opaque high-entropy string tokens suitable for session
// and verification credentials.
type Token struct {
	bytes int
}

// NewToken returns a token generator producing the given number of random
// bytes per token (minimum 32).
func NewToken(bytes int) *Token {
	if bytes < 32 {
		bytes = 32
	}
	return &Token{bytes: bytes}
}

// Generate returns a new URL-safe random token.
func (t *Token) Generate() string {
	buf := make([]byte, t.bytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
