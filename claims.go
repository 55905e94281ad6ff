// claims.go

package gourdianauth

import (
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access and refresh payloads.
type TokenType string

const (
	AccessToken  TokenType = "access"  // short-lived request credential
	RefreshToken TokenType = "refresh" // exchangeable for a new pair
)

// Payload is implemented by *AccessTokenPayload and *RefreshTokenPayload.
type Payload interface {
	Kind() TokenType
	TokenID() string
	Subject() string
	Expiry() time.Time
	IssuerName() string
}

// AccessTokenPayload is the verified content of an access token.
type AccessTokenPayload struct {
	Type      TokenType `json:"type"`
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Roles     []string  `json:"roles"`
	IssuedAt  int64     `json:"iat"`
	ExpiresAt int64     `json:"exp"` // unix seconds
	Issuer    string    `json:"iss"`
}

// RefreshTokenPayload is the verified content of a refresh token. It links to
// exactly one access token through AssociatedAccessID.
type RefreshTokenPayload struct {
	Type               TokenType `json:"type"`
	ID                 string    `json:"id"`
	SubjectID          string    `json:"subjectId"`
	Roles              []string  `json:"roles"`
	IssuedAt           int64     `json:"iat"`
	ExpiresAt          int64     `json:"exp"`
	Issuer             string    `json:"iss"`
	AssociatedAccessID string    `json:"associatedAccessId"`
}

func (p *AccessTokenPayload) Kind() TokenType    { return p.Type }
func (p *AccessTokenPayload) TokenID() string    { return p.ID }
func (p *AccessTokenPayload) Subject() string    { return p.SubjectID }
func (p *AccessTokenPayload) Expiry() time.Time  { return time.Unix(p.ExpiresAt, 0) }
func (p *AccessTokenPayload) IssuerName() string { return p.Issuer }

func (p *RefreshTokenPayload) Kind() TokenType    { return p.Type }
func (p *RefreshTokenPayload) TokenID() string    { return p.ID }
func (p *RefreshTokenPayload) Subject() string    { return p.SubjectID }
func (p *RefreshTokenPayload) Expiry() time.Time  { return time.Unix(p.ExpiresAt, 0) }
func (p *RefreshTokenPayload) IssuerName() string { return p.Issuer }

// AccessTokenBundle is a signed access token and its payload.
type AccessTokenBundle struct {
	Raw     string             `json:"token"`
	Payload AccessTokenPayload `json:"payload"`
}

// RefreshTokenBundle is a signed refresh token and its payload.
type RefreshTokenBundle struct {
	Raw     string              `json:"token"`
	Payload RefreshTokenPayload `json:"payload"`
}

// TokenPackage is a linked access/refresh pair. Both halves are always
// produced together by TokenLifecycleService.GeneratePair.
type TokenPackage struct {
	AccessToken  AccessTokenBundle  `json:"accessToken"`
	RefreshToken RefreshTokenBundle `json:"refreshToken"`
}

// Subject describes whom a token pair is issued to.
type Subject struct {
	SubjectID string
	Roles     []string
}

// toMapClaims converts a payload to jwt.MapClaims.
func toMapClaims(payload Payload) (jwt.MapClaims, error) {
	switch v := payload.(type) {
	case *AccessTokenPayload:
		return jwt.MapClaims{
			"typ": string(v.Type),
			"jti": v.ID,
			"sub": v.SubjectID,
			"rol": normalizeRoles(v.Roles),
			"iat": v.IssuedAt,
			"exp": v.ExpiresAt,
			"iss": v.Issuer,
		}, nil
	case *RefreshTokenPayload:
		return jwt.MapClaims{
			"typ": string(v.Type),
			"jti": v.ID,
			"sub": v.SubjectID,
			"rol": normalizeRoles(v.Roles),
			"iat": v.IssuedAt,
			"exp": v.ExpiresAt,
			"iss": v.Issuer,
			"aid": v.AssociatedAccessID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrUnknownTokenType, payload)
	}
}

// fromMapClaims decodes verified claims into the payload variant named by typ.
// Missing or mistyped claims are reported as ErrMalformedToken.
func fromMapClaims(claims jwt.MapClaims) (Payload, error) {
	typ, err := stringClaim(claims, "typ")
	if err != nil {
		return nil, err
	}
	id, err := stringClaim(claims, "jti")
	if err != nil {
		return nil, err
	}
	sub, err := stringClaim(claims, "sub")
	if err != nil {
		return nil, err
	}
	iss, err := optionalStringClaim(claims, "iss")
	if err != nil {
		return nil, err
	}
	exp, err := unixClaim(claims, "exp", true)
	if err != nil {
		return nil, err
	}
	iat, err := unixClaim(claims, "iat", false)
	if err != nil {
		return nil, err
	}
	roles, err := rolesClaim(claims)
	if err != nil {
		return nil, err
	}

	switch TokenType(typ) {
	case AccessToken:
		return &AccessTokenPayload{
			Type:      AccessToken,
			ID:        id,
			SubjectID: sub,
			Roles:     roles,
			IssuedAt:  iat,
			ExpiresAt: exp,
			Issuer:    iss,
		}, nil
	case RefreshToken:
		aid, err := stringClaim(claims, "aid")
		if err != nil {
			return nil, err
		}
		return &RefreshTokenPayload{
			Type:               RefreshToken,
			ID:                 id,
			SubjectID:          sub,
			Roles:              roles,
			IssuedAt:           iat,
			ExpiresAt:          exp,
			Issuer:             iss,
			AssociatedAccessID: aid,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedToken, ErrUnknownTokenType, typ)
	}
}

func stringClaim(claims jwt.MapClaims, name string) (string, error) {
	raw, ok := claims[name]
	if !ok {
		return "", fmt.Errorf("%w: missing required claim: %s", ErrMalformedToken, name)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: invalid %s claim", ErrMalformedToken, name)
	}
	return s, nil
}

func optionalStringClaim(claims jwt.MapClaims, name string) (string, error) {
	raw, ok := claims[name]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: invalid %s claim", ErrMalformedToken, name)
	}
	return s, nil
}

// unixClaim reads a NumericDate claim. JSON numbers decode as float64.
func unixClaim(claims jwt.MapClaims, name string, required bool) (int64, error) {
	raw, ok := claims[name]
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: missing required claim: %s", ErrMalformedToken, name)
		}
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: invalid %s claim type", ErrMalformedToken, name)
	}
	return int64(f), nil
}

func rolesClaim(claims jwt.MapClaims) ([]string, error) {
	raw, ok := claims["rol"]
	if !ok || raw == nil {
		return []string{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rol claim type", ErrMalformedToken)
	}
	roles := make([]string, 0, len(list))
	for _, r := range list {
		role, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("%w: invalid role entry", ErrMalformedToken)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func normalizeRoles(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
