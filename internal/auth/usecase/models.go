package usecase

import "github.com/nalonix/better-auth/internal/auth/entity"

type SignUpInput struct {
	Email    string
	Password string
	Name     string

	IPAddress string
	UserAgent string
}

type SignInInput struct {
	Email    string
	Password string

	IPAddress string
	UserAgent string
}

type SessionResult struct {
	User    entity.User
	Session entity.Session
}

type ForgetPasswordInput struct {
	Email string
}

type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

type ChangePasswordInput struct {
	SessionToken    string
	CurrentPassword string
	NewPassword     string
	RevokeOthers    bool
}

type DeleteUserInput struct {
	SessionToken string
	Password     string
}
