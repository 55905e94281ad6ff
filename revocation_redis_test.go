// File: revocation_redis_test.go

package gourdianauth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRevocationStore(t *testing.T) {
	ctx := context.Background()
	_, lifecycle := newTestServices(t)

	t.Run("Constructor checks the connection", func(t *testing.T) {
		_, err := NewRedisRevocationStore(ctx, nil)
		require.Error(t, err)

		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer client.Close()
		_, err = NewRedisRevocationStore(ctx, client)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis connection failed")
	})

	t.Run("Revoke and lookup", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		pkg, err := lifecycle.GeneratePair(ctx, testSubject, nil)
		require.NoError(t, err)
		access := &pkg.AccessToken.Payload

		revoked, err := store.IsRevoked(ctx, access)
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, store.Revoke(ctx, access))
		assert.True(t, mr.Exists("revoked:access:"+access.ID))

		revoked, err = store.IsRevoked(ctx, access)
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = store.IsRevoked(ctx, &pkg.RefreshToken.Payload)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Entries expire with the token", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		require.NoError(t, store.RevokeID(ctx, RefreshToken, "rt-1", time.Now().Add(time.Hour)))
		ttl := mr.TTL("revoked:refresh:rt-1")
		assert.Greater(t, ttl, 50*time.Minute)
		assert.LessOrEqual(t, ttl, time.Hour)

		mr.FastForward(2 * time.Hour)
		revoked, err := store.IsRevoked(ctx, &RefreshTokenPayload{Type: RefreshToken, ID: "rt-1"})
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Expired tokens are not stored", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		require.NoError(t, store.RevokeID(ctx, AccessToken, "old", time.Now().Add(-time.Minute)))
		assert.False(t, mr.Exists("revoked:access:old"))
	})

	t.Run("Refresh chain", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		pkg, err := lifecycle.GeneratePair(ctx, testSubject, nil)
		require.NoError(t, err)
		require.NoError(t, RevokeRefreshChain(ctx, store, &pkg.RefreshToken.Payload))

		assert.True(t, mr.Exists("revoked:refresh:"+pkg.RefreshToken.Payload.ID))
		assert.True(t, mr.Exists("revoked:access:"+pkg.AccessToken.Payload.ID))
	})

	t.Run("Server failure surfaces as error", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		mr.SetError("LOADING server is loading")
		_, err = store.IsRevoked(ctx, &AccessTokenPayload{Type: AccessToken, ID: "x"})
		require.Error(t, err)

		_, err = checkRevocation(ctx, store, &AccessTokenPayload{Type: AccessToken, ID: "x"}, time.Second)
		require.ErrorIs(t, err, ErrRevocationCheck)
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, client := newTestRedis(t)
		store, err := NewRedisRevocationStore(ctx, client)
		require.NoError(t, err)

		require.Error(t, store.RevokeID(ctx, AccessToken, "", time.Now().Add(time.Hour)))
		require.ErrorIs(t, store.RevokeID(ctx, "id", "x", time.Now().Add(time.Hour)), ErrUnknownTokenType)
		_, err = store.IsRevoked(ctx, nil)
		require.Error(t, err)
	})
}
