package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("an account with this email already exists")

	// ErrCodeInvalid covers both a wrong code and an expired one. The two
	// cases must stay indistinguishable to callers.
	ErrCodeInvalid = errors.New("code is invalid or expired")

	ErrRegistrationExpired = errors.New("registration expired, sign up again")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTokenInvalid        = errors.New("token is invalid or expired")
	ErrUnauthorized        = errors.New("unauthorized")
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingRegistration is an unconfirmed sign-up staged in the cache. It exists
// only between submission and either OTP verification (promoted into a User,
// then discarded) or natural expiry. Password is stored hashed, never raw.
type PendingRegistration struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenPair is issued on login, email verification and refresh rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
