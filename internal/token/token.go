package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abakirov/taskhub/internal/domain"
)

const refreshKeyPrefix = "refresh-token:"

// rotateScript swaps the stored refresh token for a new one only if the
// presented token byte-matches the current value. Doing the compare and the
// overwrite in one script means that of two racing rotations with the same
// token, exactly one succeeds; the loser sees 0 and must fail, never hand out
// stale credentials.
var rotateScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Claims is the access-token payload. Validity is purely signature + expiry;
// nothing is stored server-side for access tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// Service signs short-lived access tokens and long-lived refresh tokens, and
// tracks the single currently-trusted refresh token per user in Redis.
// Logging in elsewhere overwrites the stored token, which soft-revokes the
// old session's ability to refresh.
type Service struct {
	client     *redis.Client
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(client *redis.Client, secret []byte, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		client:     client,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func refreshKey(userID string) string {
	return refreshKeyPrefix + userID
}

func (s *Service) signAccess(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *Service) signRefresh(userID string) (string, error) {
	now := time.Now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// IssuePair signs a fresh access/refresh pair and stores the refresh token
// for the user with the full refresh TTL, replacing any previous one.
func (s *Service) IssuePair(ctx context.Context, userID, email string) (*domain.TokenPair, error) {
	access, err := s.signAccess(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signRefresh(userID)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, refreshKey(userID), refresh, s.refreshTTL).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates signature and expiry and returns the claims.
// Any failure maps to domain.ErrTokenInvalid; the caller fails closed.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a brand-new pair. The presented
// token must match the stored one exactly; the swap is atomic, so a token can
// be rotated at most once. Mismatch, absence and races all surface uniformly
// as domain.ErrUnauthorized.
func (s *Service) Rotate(ctx context.Context, userID, presented, email string) (*domain.TokenPair, error) {
	refresh, err := s.signRefresh(userID)
	if err != nil {
		return nil, err
	}

	res, err := rotateScript.Run(ctx, s.client,
		[]string{refreshKey(userID)},
		presented, refresh, s.refreshTTL.Milliseconds(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if res != 1 {
		return nil, domain.ErrUnauthorized
	}

	access, err := s.signAccess(userID, email)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseRefresh validates the signature and expiry of a presented refresh
// token and returns the owning user ID. It does not consult the store; Rotate
// does the byte-match against the stored value.
func (s *Service) ParseRefresh(tokenString string) (string, error) {
	claims := &refreshClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}

// Revoke deletes the stored refresh token (logout). Already-issued access
// tokens stay valid until they expire on their own.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
