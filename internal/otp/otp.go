package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purpose namespaces codes so that e.g. a password-reset code can never be
// replayed as an email-verification code.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
	PurposeEmailChange       Purpose = "email-change"
)

// consumeScript compares and deletes in one atomic step. A plain GET followed
// by DEL would let two concurrent verifications of the correct code both
// succeed; the script guarantees exactly one wins. A mismatch leaves the
// stored code untouched.
var consumeScript = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// Service issues and verifies single-use 6-digit codes held in Redis under
// purpose-namespaced keys. At most one live code exists per (purpose, email);
// issuing again overwrites.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

func NewService(client *redis.Client, ttl time.Duration) *Service {
	return &Service{client: client, ttl: ttl}
}

func key(purpose Purpose, email string) string {
	return "otp:" + string(purpose) + ":" + strings.ToLower(email)
}

// Issue generates a uniformly random 6-digit decimal code (leading zeros
// preserved), stores it with the configured TTL, and returns it so the caller
// can hand it to the email sender.
func (s *Service) Issue(ctx context.Context, purpose Purpose, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := s.client.Set(ctx, key(purpose, email), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify consumes the code on an exact match and reports whether it matched.
// Absent, expired and wrong codes all report false with no side effects.
// Delete-on-success makes every code single-use: a second call with the same
// correct code finds nothing.
func (s *Service) Verify(ctx context.Context, purpose Purpose, email, submitted string) (bool, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{key(purpose, email)}, submitted).Int()
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return res == 1, nil
}

// TTLRemaining reports the seconds until the code expires, or -1 if no code
// is live for this (purpose, email).
func (s *Service) TTLRemaining(ctx context.Context, purpose Purpose, email string) (int64, error) {
	d, err := s.client.TTL(ctx, key(purpose, email)).Result()
	if err != nil {
		return -1, fmt.Errorf("code ttl: %w", err)
	}
	if d < 0 {
		return -1, nil
	}
	return int64(d.Seconds()), nil
}
