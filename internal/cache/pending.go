package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/abakirov/taskhub/internal/domain"
)

const pendingKeyPrefix = "pending-user:"

// PendingStore holds unconfirmed sign-ups in Redis, keyed by lowercased email.
// Records live until the OTP verification promotes them or the TTL runs out.
type PendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{client: client, ttl: ttl}
}

func pendingKey(email string) string {
	return pendingKeyPrefix + strings.ToLower(email)
}

// Stage hashes the raw password and writes the pending record with the full
// TTL, unconditionally replacing any prior record for the same email.
// Re-registration restarts the clock.
func (s *PendingStore) Stage(ctx context.Context, email, rawPassword, name string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	rec := domain.PendingRegistration{
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pending registration: %w", err)
	}

	if err := s.client.Set(ctx, pendingKey(email), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending registration: %w", err)
	}
	return nil
}

// Fetch returns the pending record, or domain.ErrRegistrationExpired if it
// was never staged or has already expired.
func (s *PendingStore) Fetch(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	data, err := s.client.Get(ctx, pendingKey(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrRegistrationExpired
		}
		return nil, fmt.Errorf("fetch pending registration: %w", err)
	}

	var rec domain.PendingRegistration
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal pending registration: %w", err)
	}
	return &rec, nil
}

func (s *PendingStore) Discard(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, pendingKey(email)).Err(); err != nil {
		return fmt.Errorf("discard pending registration: %w", err)
	}
	return nil
}

func (s *PendingStore) Exists(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Exists(ctx, pendingKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check pending registration: %w", err)
	}
	return n > 0, nil
}

// RemainingTTL reports the seconds until expiry, or -1 if no record exists.
func (s *PendingStore) RemainingTTL(ctx context.Context, email string) (int64, error) {
	d, err := s.client.TTL(ctx, pendingKey(email)).Result()
	if err != nil {
		return -1, fmt.Errorf("pending registration ttl: %w", err)
	}
	if d < 0 {
		return -1, nil
	}
	return int64(d.Seconds()), nil
}
