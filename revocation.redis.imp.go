// File: revocation.redis.imp.go

package gourdianauth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedAccessPrefix  = "revoked:access:"
	revokedRefreshPrefix = "revoked:refresh:"
)

// RedisRevocationStore keeps revoked token ids in Redis. Every key expires at
// the token's own exp, so the store never outgrows the set of live tokens.
type RedisRevocationStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisRevocationStore creates a Redis-backed revocation store and checks
// the connection.
func NewRedisRevocationStore(ctx context.Context, client redis.UniversalClient) (*RedisRevocationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisRevocationStore{
		client: client,
		now:    time.Now,
	}, nil
}

// IsRevoked reports whether the payload's token id has been revoked.
func (r *RedisRevocationStore) IsRevoked(ctx context.Context, payload Payload) (bool, error) {
	if payload == nil {
		return false, fmt.Errorf("payload cannot be nil")
	}

	key, err := revocationKey(payload.Kind(), payload.TokenID())
	if err != nil {
		return false, err
	}

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}

	return exists > 0, nil
}

// Revoke marks the payload's token id as revoked until its expiry.
func (r *RedisRevocationStore) Revoke(ctx context.Context, payload Payload) error {
	if payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}
	return r.RevokeID(ctx, payload.Kind(), payload.TokenID(), payload.Expiry())
}

// RevokeID marks id as revoked until expiresAt. Already expired tokens need
// no entry and are skipped.
func (r *RedisRevocationStore) RevokeID(ctx context.Context, tokenType TokenType, id string, expiresAt time.Time) error {
	key, err := revocationKey(tokenType, id)
	if err != nil {
		return err
	}

	if !expiresAt.After(r.now()) {
		return nil
	}

	if err := r.client.SetArgs(ctx, key, string(tokenType), redis.SetArgs{ExpireAt: expiresAt}).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func revocationKey(tokenType TokenType, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("token id cannot be empty")
	}

	switch tokenType {
	case AccessToken:
		return revokedAccessPrefix + id, nil
	case RefreshToken:
		return revokedRefreshPrefix + id, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTokenType, tokenType)
	}
}
