package entity

import "time"

// VerificationPurpose states what a verification token is allowed to do.
type VerificationPurpose string

const (
	PurposePasswordReset VerificationPurpose = "PASSWORD_RESET"
	PurposeEmailVerify   VerificationPurpose = "EMAIL_VERIFY"
)

// Verification is a single-use, expiring token bound to a user, issued for
// password resets and e-mail verification.
type Verification struct {
	Token     string
	UserID    int64
	Purpose   VerificationPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}
