package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abakirov/taskhub/internal/domain"
)

func setupPendingStore(t *testing.T) (*PendingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPendingStore(client, 24*time.Hour), mr
}

func TestPendingStore_Stage_HashesPassword(t *testing.T) {
	store, _ := setupPendingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "Ann@X.com", "Secret123!", "Ann"))

	rec, err := store.Fetch(ctx, "ann@x.com")
	require.NoError(t, err)

	assert.Equal(t, "ann@x.com", rec.Email)
	assert.Equal(t, "Ann", rec.Name)
	// Stored value must be a hash of the password, never the plaintext.
	assert.NotEqual(t, "Secret123!", rec.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte("Secret123!")))
}

func TestPendingStore_Fetch_Absent(t *testing.T) {
	store, _ := setupPendingStore(t)

	_, err := store.Fetch(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrRegistrationExpired)
}

func TestPendingStore_Stage_OverwriteRestartsClock(t *testing.T) {
	store, mr := setupPendingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "bob@x.com", "first-pass", "Bob"))
	mr.FastForward(12 * time.Hour)

	require.NoError(t, store.Stage(ctx, "bob@x.com", "second-pass", "Bobby"))

	ttl, err := store.RemainingTTL(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Greater(t, ttl, int64(23*60*60), "re-staging must restart the 24h clock")

	rec, err := store.Fetch(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", rec.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte("second-pass")))
}

func TestPendingStore_Expiry(t *testing.T) {
	store, mr := setupPendingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "eve@x.com", "pass-word", "Eve"))
	mr.FastForward(24*time.Hour + time.Second)

	exists, err := store.Exists(ctx, "eve@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	ttl, err := store.RemainingTTL(ctx, "eve@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), ttl)
}

func TestPendingStore_Discard(t *testing.T) {
	store, _ := setupPendingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "carl@x.com", "pass-word", "Carl"))
	require.NoError(t, store.Discard(ctx, "carl@x.com"))

	exists, err := store.Exists(ctx, "carl@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	// Discarding again is a no-op, not an error.
	assert.NoError(t, store.Discard(ctx, "carl@x.com"))
}

func TestPendingStore_RemainingTTL_Fresh(t *testing.T) {
	store, _ := setupPendingStore(t)
	ctx := context.Background()

	require.NoError(t, store.Stage(ctx, "dana@x.com", "pass-word", "Dana"))

	ttl, err := store.RemainingTTL(ctx, "dana@x.com")
	require.NoError(t, err)
	assert.Greater(t, ttl, int64(0))
	assert.LessOrEqual(t, ttl, int64(24*60*60))
}
