// lifecycle.go

package gourdianauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AnonymousTokenID is the reserved id of the anonymous sentinel identity.
// GeneratePair never allocates it.
var AnonymousTokenID = uuid.Nil.String()

// TTLOverride replaces the configured lifetimes for a single GeneratePair
// call. A zero field keeps the configured value.
type TTLOverride struct {
	Access  time.Duration
	Refresh time.Duration
}

// TokenLifecycleService builds linked access/refresh pairs, produces the
// anonymous identity and classifies payloads.
type TokenLifecycleService struct {
	cfg   *JwtConfig
	codec *TokenCodec
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// LifecycleOption configures a TokenLifecycleService.
type LifecycleOption func(*TokenLifecycleService)

// WithLifecycleClock overrides the issuance time source.
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(s *TokenLifecycleService) {
		s.now = now
	}
}

// WithIDGenerator overrides token id allocation.
func WithIDGenerator(newID func() (uuid.UUID, error)) LifecycleOption {
	return func(s *TokenLifecycleService) {
		s.newID = newID
	}
}

// NewTokenLifecycleService returns a service that signs through codec. Both
// halves of every pair are signed with the codec's configuration.
func NewTokenLifecycleService(codec *TokenCodec, opts ...LifecycleOption) *TokenLifecycleService {
	s := &TokenLifecycleService{
		cfg:   codec.Config(),
		codec: codec,
		now:   time.Now,
		newID: uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnonymousIdentity returns the sentinel identity used whenever a request
// carries no valid authenticated identity.
func (s *TokenLifecycleService) AnonymousIdentity() AccessTokenPayload {
	return AccessTokenPayload{
		Type:      AccessToken,
		ID:        AnonymousTokenID,
		SubjectID: AnonymousTokenID,
		Roles:     []string{},
		ExpiresAt: 0,
	}
}

// IsAnonymous reports whether p is the anonymous sentinel.
func IsAnonymous(p AccessTokenPayload) bool {
	return p.ID == "" || p.ID == AnonymousTokenID
}

// Classify returns the variant of payload, decided solely by its type field.
func (s *TokenLifecycleService) Classify(payload Payload) (TokenType, error) {
	return Classify(payload)
}

// Classify returns the variant of payload, decided solely by its type field.
func Classify(payload Payload) (TokenType, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: nil payload", ErrUnknownTokenType)
	}
	switch kind := payload.Kind(); kind {
	case AccessToken, RefreshToken:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTokenType, kind)
	}
}

// GeneratePair issues a linked access/refresh pair for subject. Lifetimes come
// from the configuration unless override sets them. Both halves are signed
// concurrently; if either fails no package is returned.
func (s *TokenLifecycleService) GeneratePair(ctx context.Context, subject Subject, override *TTLOverride) (*TokenPackage, error) {
	if subject.SubjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}
	if subject.SubjectID == AnonymousTokenID {
		return nil, fmt.Errorf("subject id %s is reserved", AnonymousTokenID)
	}

	accessTTL, refreshTTL := s.cfg.AccessTTL(), s.cfg.RefreshTTL()
	if override != nil {
		if override.Access != 0 {
			accessTTL = override.Access
		}
		if override.Refresh != 0 {
			refreshTTL = override.Refresh
		}
	}

	accessID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token ID: %w", err)
	}
	refreshID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token ID: %w", err)
	}
	if accessID == refreshID || accessID == uuid.Nil || refreshID == uuid.Nil {
		return nil, fmt.Errorf("token id generator returned a reserved or duplicate id")
	}

	now := s.now().Unix()
	roles := append([]string{}, subject.Roles...)

	access := AccessTokenPayload{
		Type:      AccessToken,
		ID:        accessID.String(),
		SubjectID: subject.SubjectID,
		Roles:     roles,
		IssuedAt:  now,
		ExpiresAt: now + int64(accessTTL/time.Second),
		Issuer:    s.cfg.Issuer(),
	}
	refresh := RefreshTokenPayload{
		Type:               RefreshToken,
		ID:                 refreshID.String(),
		SubjectID:          subject.SubjectID,
		Roles:              append([]string{}, roles...),
		IssuedAt:           now,
		ExpiresAt:          now + int64(refreshTTL/time.Second),
		Issuer:             s.cfg.Issuer(),
		AssociatedAccessID: access.ID,
	}

	var accessRaw, refreshRaw string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		raw, err := s.codec.Sign(&access)
		if err != nil {
			return err
		}
		accessRaw = raw
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		raw, err := s.codec.Sign(&refresh)
		if err != nil {
			return err
		}
		refreshRaw = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &TokenPackage{
		AccessToken:  AccessTokenBundle{Raw: accessRaw, Payload: access},
		RefreshToken: RefreshTokenBundle{Raw: refreshRaw, Payload: refresh},
	}, nil
}
