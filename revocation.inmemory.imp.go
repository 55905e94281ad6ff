// File: revocation.inmemory.imp.go

package gourdianauth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRevocationStore is an in-memory RevocationStore.
// Suitable for development, testing, or single-instance deployments.
type MemoryRevocationStore struct {
	mu              sync.RWMutex
	revokedAccess   map[string]time.Time
	revokedRefresh  map[string]time.Time
	cleanupInterval time.Duration
	now             func() time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryRevocationStore creates an in-memory store.
// cleanupInterval determines how often expired entries are removed (default: 5 minutes)
func NewMemoryRevocationStore(cleanupInterval time.Duration) *MemoryRevocationStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	store := &MemoryRevocationStore{
		revokedAccess:   make(map[string]time.Time),
		revokedRefresh:  make(map[string]time.Time),
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}

	go store.periodicCleanup()

	return store
}

// IsRevoked reports whether the payload's token id is revoked and not yet expired.
func (m *MemoryRevocationStore) IsRevoked(ctx context.Context, payload Payload) (bool, error) {
	if payload == nil {
		return false, fmt.Errorf("payload cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := m.entriesFor(payload.Kind())
	if err != nil {
		return false, err
	}

	expiresAt, exists := entries[payload.TokenID()]
	if !exists {
		return false, nil
	}

	return m.now().Before(expiresAt), nil
}

// Revoke marks the payload's token id as revoked until its expiry.
func (m *MemoryRevocationStore) Revoke(ctx context.Context, payload Payload) error {
	if payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}
	return m.RevokeID(ctx, payload.Kind(), payload.TokenID(), payload.Expiry())
}

// RevokeID marks id as revoked until expiresAt.
func (m *MemoryRevocationStore) RevokeID(ctx context.Context, tokenType TokenType, id string, expiresAt time.Time) error {
	if id == "" {
		return fmt.Errorf("token id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.entriesFor(tokenType)
	if err != nil {
		return err
	}
	if !expiresAt.After(m.now()) {
		return nil
	}

	entries[id] = expiresAt
	return nil
}

// Len returns the number of tracked entries, expired ones included until the
// next cleanup.
func (m *MemoryRevocationStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revokedAccess) + len(m.revokedRefresh)
}

// Close stops the background cleanup goroutine.
func (m *MemoryRevocationStore) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
}

func (m *MemoryRevocationStore) entriesFor(tokenType TokenType) (map[string]time.Time, error) {
	switch tokenType {
	case AccessToken:
		return m.revokedAccess, nil
	case RefreshToken:
		return m.revokedRefresh, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTokenType, tokenType)
	}
}

func (m *MemoryRevocationStore) periodicCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *MemoryRevocationStore) cleanup() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, expiresAt := range m.revokedAccess {
		if !now.Before(expiresAt) {
			delete(m.revokedAccess, id)
		}
	}
	for id, expiresAt := range m.revokedRefresh {
		if !now.Before(expiresAt) {
			delete(m.revokedRefresh, id)
		}
	}
}
