// codec.go

package gourdianauth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec signs and verifies token payloads against one JwtConfig.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	cfg *JwtConfig
	now func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec returns a codec bound to cfg.
func NewTokenCodec(cfg *JwtConfig, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration the codec was built with.
func (c *TokenCodec) Config() *JwtConfig {
	return c.cfg
}

// Sign serializes payload and signs it with the configured algorithm and
// signing key. It fails with ErrConfig when no signing key is loaded.
func (c *TokenCodec) Sign(payload Payload) (string, error) {
	if !c.cfg.CanSign() {
		return "", fmt.Errorf("%w: no signing key loaded", ErrConfig)
	}
	if err := checkPayloadKind(payload); err != nil {
		return "", err
	}

	claims, err := toMapClaims(payload)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(c.cfg.method, claims)
	signed, err := token.SignedString(c.cfg.signingKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign %s token: %v", ErrConfig, payload.Kind(), err)
	}

	return signed, nil
}

// Verify checks the signature of raw against the single configured algorithm,
// checks exp against the current time and enforces the issuer allow-list.
//
// Errors wrap exactly one of ErrMalformedToken, ErrInvalidSignature,
// ErrTokenExpired or ErrInvalidIssuer.
func (c *TokenCodec) Verify(raw string) (Payload, error) {
	alg := c.cfg.method.Alg()
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	token, err := parser.Parse(raw, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != alg {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.cfg.verificationKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrMalformedToken)
	}

	payload, err := fromMapClaims(claims)
	if err != nil {
		return nil, err
	}

	if allowed := c.cfg.AllowedIssuers(); len(allowed) > 0 && !slices.Contains(allowed, payload.IssuerName()) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIssuer, payload.IssuerName())
	}

	return payload, nil
}

// classifyParseError folds golang-jwt errors onto the codec taxonomy.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func checkPayloadKind(payload Payload) error {
	switch v := payload.(type) {
	case *AccessTokenPayload:
		if v.Type != AccessToken {
			return fmt.Errorf("%w: access payload carries type %q", ErrUnknownTokenType, v.Type)
		}
	case *RefreshTokenPayload:
		if v.Type != RefreshToken {
			return fmt.Errorf("%w: refresh payload carries type %q", ErrUnknownTokenType, v.Type)
		}
	case nil:
		return fmt.Errorf("%w: nil payload", ErrUnknownTokenType)
	}
	return nil
}
