package entity

import "time"

// Audit event kinds emitted by the account lifecycle.
const (
	EventSignedUp       = "user.signed_up"
	EventSignedIn       = "user.signed_in"
	EventPasswordReset  = "user.password_reset"
	EventUserDeleted    = "user.deleted"
	EventSessionRevoked = "session.revoked"
)

// AuditEvent records a security-relevant account action for the audit
// trail consumer.
type AuditEvent struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id,string"`
	IPAddress string    `json:"ip_address,omitempty"`
	At        time.Time `json:"at"`
}
