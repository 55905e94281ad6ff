// revocation.go

package gourdianauth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RevocationGate reports whether an otherwise valid token has been revoked.
// Implementations live outside the core; the gate bounds every call with the
// configured revocation timeout.
type RevocationGate interface {
	IsRevoked(ctx context.Context, payload Payload) (bool, error)
}

// RevocationGateFunc adapts a function to RevocationGate.
type RevocationGateFunc func(ctx context.Context, payload Payload) (bool, error)

// IsRevoked calls f.
func (f RevocationGateFunc) IsRevoked(ctx context.Context, payload Payload) (bool, error) {
	return f(ctx, payload)
}

// RevocationStore is a RevocationGate that can also record revocations.
// Entries expire with the token they describe.
type RevocationStore interface {
	RevocationGate
	Revoke(ctx context.Context, payload Payload) error
	RevokeID(ctx context.Context, tokenType TokenType, id string, expiresAt time.Time) error
}

// RevokePair revokes both halves of pkg.
func RevokePair(ctx context.Context, store RevocationStore, pkg *TokenPackage) error {
	if pkg == nil {
		return fmt.Errorf("token package cannot be nil")
	}
	return errors.Join(
		store.Revoke(ctx, &pkg.AccessToken.Payload),
		store.Revoke(ctx, &pkg.RefreshToken.Payload),
	)
}

// RevokeRefreshChain revokes a refresh token and the access token it is
// linked to. The access token can never outlive its refresh token, so the
// refresh expiry bounds the access entry.
func RevokeRefreshChain(ctx context.Context, store RevocationStore, refresh *RefreshTokenPayload) error {
	if refresh == nil {
		return fmt.Errorf("refresh payload cannot be nil")
	}
	return errors.Join(
		store.Revoke(ctx, refresh),
		store.RevokeID(ctx, AccessToken, refresh.AssociatedAccessID, refresh.Expiry()),
	)
}

type revocationResult struct {
	revoked bool
	err     error
}

// checkRevocation calls gate under a deadline of timeout. The call runs on its
// own goroutine so a collaborator that ignores ctx cannot hold the request
// past the deadline. Failures wrap ErrRevocationCheck.
func checkRevocation(ctx context.Context, gate RevocationGate, payload Payload, timeout time.Duration) (bool, error) {
	if gate == nil {
		return false, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan revocationResult, 1)
	go func() {
		revoked, err := gate.IsRevoked(ctx, payload)
		done <- revocationResult{revoked: revoked, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return false, fmt.Errorf("%w: %w", ErrRevocationCheck, res.err)
		}
		return res.revoked, nil
	case <-ctx.Done():
		return false, fmt.Errorf("%w: %w", ErrRevocationCheck, ctx.Err())
	}
}
