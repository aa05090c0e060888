package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/abakirov/taskhub/internal/domain"
	"github.com/abakirov/taskhub/internal/email"
	"github.com/abakirov/taskhub/internal/metrics"
	"github.com/abakirov/taskhub/internal/otp"
	"github.com/abakirov/taskhub/internal/repository"
)

// Narrow interfaces over the concrete cache/otp/token services, defined at
// point of use so tests can inject fakes.

type pendingStore interface {
	Stage(ctx context.Context, email, rawPassword, name string) error
	Fetch(ctx context.Context, email string) (*domain.PendingRegistration, error)
	Discard(ctx context.Context, email string) error
	Exists(ctx context.Context, email string) (bool, error)
}

type otpService interface {
	Issue(ctx context.Context, purpose otp.Purpose, email string) (string, error)
	Verify(ctx context.Context, purpose otp.Purpose, email, submitted string) (bool, error)
}

type tokenService interface {
	IssuePair(ctx context.Context, userID, email string) (*domain.TokenPair, error)
	Rotate(ctx context.Context, userID, presented, email string) (*domain.TokenPair, error)
	ParseRefresh(tokenString string) (string, error)
	Revoke(ctx context.Context, userID string) error
}

type notifier interface {
	Notify(userID, name, message string, payload any)
}

type AuthUsecase struct {
	users   repository.UserRepository
	pending pendingStore
	otps    otpService
	tokens  tokenService
	sender  email.Sender
	hub     notifier
	otpTTL  time.Duration
}

func NewAuthUsecase(
	users repository.UserRepository,
	pending pendingStore,
	otps otpService,
	tokens tokenService,
	sender email.Sender,
	hub notifier,
	otpTTL time.Duration,
) *AuthUsecase {
	return &AuthUsecase{
		users:   users,
		pending: pending,
		otps:    otps,
		tokens:  tokens,
		sender:  sender,
		hub:     hub,
		otpTTL:  otpTTL,
	}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Register stages an unconfirmed sign-up and emails a verification code.
// Registering an email that is already a confirmed account is a conflict;
// re-registering a pending one overwrites it and restarts its clock.
func (u *AuthUsecase) Register(ctx context.Context, emailAddr, password, name string) error {
	emailAddr = normalizeEmail(emailAddr)

	taken, err := u.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.ErrEmailTaken
	}

	if err := u.pending.Stage(ctx, emailAddr, password, name); err != nil {
		return fmt.Errorf("stage registration: %w", err)
	}

	return u.issueAndSendCode(ctx, otp.PurposeEmailVerification, emailAddr)
}

// VerifyEmail consumes the verification code, promotes the pending
// registration into a durable user and signs the first token pair. Other live
// sessions of the user are notified.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, emailAddr, code string) (*domain.TokenPair, *domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)

	ok, err := u.otps.Verify(ctx, otp.PurposeEmailVerification, emailAddr, code)
	if err != nil {
		return nil, nil, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues(string(otp.PurposeEmailVerification), "rejected").Inc()
		return nil, nil, domain.ErrCodeInvalid
	}
	metrics.OTPVerificationsTotal.WithLabelValues(string(otp.PurposeEmailVerification), "accepted").Inc()

	rec, err := u.pending.Fetch(ctx, emailAddr)
	if err != nil {
		return nil, nil, err
	}

	user, err := u.users.Create(ctx, rec.Email, rec.PasswordHash, rec.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("promote registration: %w", err)
	}

	if err := u.pending.Discard(ctx, emailAddr); err != nil {
		return nil, nil, fmt.Errorf("discard pending registration: %w", err)
	}

	pair, err := u.tokens.IssuePair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token pair: %w", err)
	}

	u.hub.Notify(user.ID, "email-verified", "Your email has been verified", nil)
	return pair, user, nil
}

// ResendCode issues a fresh verification code for a still-pending
// registration, invalidating the previous one.
func (u *AuthUsecase) ResendCode(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	exists, err := u.pending.Exists(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("check pending registration: %w", err)
	}
	if !exists {
		return domain.ErrRegistrationExpired
	}

	return u.issueAndSendCode(ctx, otp.PurposeEmailVerification, emailAddr)
}

// Login checks credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, password string) (*domain.TokenPair, *domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)

	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := u.tokens.IssuePair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token pair: %w", err)
	}
	return pair, user, nil
}

// Refresh rotates a refresh token for a new pair. Every failure mode (bad
// signature, unknown user, stale or mismatched token) surfaces uniformly as
// domain.ErrUnauthorized so the response never reveals which check failed.
func (u *AuthUsecase) Refresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	userID, err := u.tokens.ParseRefresh(presented)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	pair, err := u.tokens.Rotate(ctx, userID, presented, user.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.TokenRotationsTotal.WithLabelValues("rejected").Inc()
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	metrics.TokenRotationsTotal.WithLabelValues("rotated").Inc()
	return pair, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, userID string) error {
	return u.tokens.Revoke(ctx, userID)
}

// RequestPasswordReset issues a reset code if the account exists. It reports
// success either way; the caller must answer uniformly so the endpoint cannot
// be used to probe for accounts.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	exists, err := u.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if !exists {
		return nil
	}

	return u.issueAndSendCode(ctx, otp.PurposePasswordReset, emailAddr)
}

// ResetPassword consumes the reset code, replaces the password and revokes
// the user's refresh token so every stale session must log in again.
func (u *AuthUsecase) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)

	ok, err := u.otps.Verify(ctx, otp.PurposePasswordReset, emailAddr, code)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues(string(otp.PurposePasswordReset), "rejected").Inc()
		return domain.ErrCodeInvalid
	}
	metrics.OTPVerificationsTotal.WithLabelValues(string(otp.PurposePasswordReset), "accepted").Inc()

	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrCodeInvalid
		}
		return fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := u.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := u.tokens.Revoke(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	u.hub.Notify(user.ID, "password-reset", "Your password has been reset", nil)
	return nil
}

// issueAndSendCode stores a fresh code, then emails it. A send failure does
// not un-store the code; the user can still request a resend.
func (u *AuthUsecase) issueAndSendCode(ctx context.Context, purpose otp.Purpose, emailAddr string) error {
	code, err := u.otps.Issue(ctx, purpose, emailAddr)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	metrics.OTPIssuedTotal.WithLabelValues(string(purpose)).Inc()

	ttlMinutes := int(u.otpTTL.Minutes())
	var subject, body string
	if purpose == otp.PurposePasswordReset {
		subject, body = email.PasswordResetEmail(code, ttlMinutes)
	} else {
		subject, body = email.VerificationEmail(code, ttlMinutes)
	}

	if err := u.sender.Send(ctx, emailAddr, subject, body); err != nil {
		return fmt.Errorf("send code email: %w", err)
	}
	return nil
}
