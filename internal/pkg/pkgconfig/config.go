package pkgconfig

import "time"

// Config is the read-only view of application configuration.
//
// Implementations may be backed by files, environment variables, or both.
// Keys use dot notation ("auth.session.ttl").
type Config interface {
	GetInt(key string) int64
	GetBool(key string) bool
	GetFloat(key string) float64
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetBinary(key string) []byte
	GetArray(key string) []string
	GetMap(key string) map[string]string
	Close() error
}
