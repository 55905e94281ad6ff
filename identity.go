// identity.go

package gourdianauth

import (
	"context"
	"sync"
)

// RequestIdentity holds the identity of one request. The gate initializes it
// to the anonymous sentinel; Create and Refresh replace it on success.
type RequestIdentity struct {
	mu      sync.RWMutex
	payload AccessTokenPayload
}

// NewRequestIdentity returns a holder initialized to payload.
func NewRequestIdentity(payload AccessTokenPayload) *RequestIdentity {
	return &RequestIdentity{payload: payload}
}

// Get returns a copy of the current identity.
func (r *RequestIdentity) Get() AccessTokenPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.payload
	p.Roles = append([]string{}, r.payload.Roles...)
	return p
}

// Set replaces the current identity.
func (r *RequestIdentity) Set(payload AccessTokenPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = payload
}

type identityKey struct{}

// ContextWithIdentity returns a copy of ctx carrying identity.
func ContextWithIdentity(ctx context.Context, identity *RequestIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the request identity holder, or nil when the
// request did not pass through the gate.
func IdentityFromContext(ctx context.Context) *RequestIdentity {
	identity, _ := ctx.Value(identityKey{}).(*RequestIdentity)
	return identity
}
