// config.go

package gourdianauth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is a JWT signing algorithm name.
type Algorithm string

const (
	HS256 Algorithm = "HS256" // HMAC using SHA-256
	HS384 Algorithm = "HS384" // HMAC using SHA-384
	HS512 Algorithm = "HS512" // HMAC using SHA-512
	RS256 Algorithm = "RS256" // RSASSA-PKCS1-v1_5 using SHA-256
	RS384 Algorithm = "RS384" // RSASSA-PKCS1-v1_5 using SHA-384
	RS512 Algorithm = "RS512" // RSASSA-PKCS1-v1_5 using SHA-512
	ES256 Algorithm = "ES256" // ECDSA using P-256 and SHA-256
	ES384 Algorithm = "ES384" // ECDSA using P-384 and SHA-384
	ES512 Algorithm = "ES512" // ECDSA using P-521 and SHA-512
	None  Algorithm = "none"  // No signature, only with Options.AllowUnsigned
)

// Defaults applied by NewJwtConfig to zero-valued Options fields.
const (
	DefaultAlgorithm         = HS256
	DefaultAccessTokenTTL    = 1800 * time.Second
	DefaultRefreshTokenTTL   = 2592000 * time.Second
	DefaultIssuer            = "gourdianauth"
	DefaultRevocationTimeout = 2 * time.Second

	minSymmetricKeyLength = 32
)

func (a Algorithm) signingMethod() (jwt.SigningMethod, error) {
	switch a {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	case RS256:
		return jwt.SigningMethodRS256, nil
	case RS384:
		return jwt.SigningMethodRS384, nil
	case RS512:
		return jwt.SigningMethodRS512, nil
	case ES256:
		return jwt.SigningMethodES256, nil
	case ES384:
		return jwt.SigningMethodES384, nil
	case ES512:
		return jwt.SigningMethodES512, nil
	case None:
		return jwt.SigningMethodNone, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", a)
	}
}

// IsSymmetric reports whether a signs and verifies with one shared secret.
func (a Algorithm) IsSymmetric() bool {
	return strings.HasPrefix(string(a), "HS")
}

// Options is the user-facing configuration passed once at wiring time.
//
// PrivateKey holds the HMAC secret for HS* algorithms and the PEM private key
// for RS*/ES*. PublicKey is the PEM public key or certificate; when empty it is
// derived from PrivateKey. A verify-only deployment can omit PrivateKey.
type Options struct {
	Algorithm             Algorithm
	PrivateKey            KeySource
	PublicKey             KeySource
	AccessTokenExpiresIn  time.Duration
	RefreshTokenExpiresIn time.Duration
	Issuer                string
	VerifiedIssuers       []string
	RevocationTimeout     time.Duration
	AllowUnsigned         bool
}

// JwtConfig is the immutable configuration shared by every component. It is
// built once by NewJwtConfig and is safe for concurrent reads.
type JwtConfig struct {
	algorithm         Algorithm
	method            jwt.SigningMethod
	issuer            string
	verifiedIssuers   []string
	accessTTL         time.Duration
	refreshTTL        time.Duration
	revocationTimeout time.Duration
	signingKey        any
	verificationKey   any
}

// NewJwtConfig validates opts, applies defaults and loads key material.
// All failures wrap ErrConfig.
func NewJwtConfig(opts Options) (*JwtConfig, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = DefaultAlgorithm
	}
	if opts.AccessTokenExpiresIn == 0 {
		opts.AccessTokenExpiresIn = DefaultAccessTokenTTL
	}
	if opts.RefreshTokenExpiresIn == 0 {
		opts.RefreshTokenExpiresIn = DefaultRefreshTokenTTL
	}
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.RevocationTimeout == 0 {
		opts.RevocationTimeout = DefaultRevocationTimeout
	}

	if opts.AccessTokenExpiresIn < time.Second || opts.RefreshTokenExpiresIn < time.Second {
		return nil, fmt.Errorf("%w: token lifetimes must be at least one second", ErrConfig)
	}
	if opts.RevocationTimeout < 0 {
		return nil, fmt.Errorf("%w: revocation timeout must not be negative", ErrConfig)
	}

	method, err := opts.Algorithm.signingMethod()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := &JwtConfig{
		algorithm:         opts.Algorithm,
		method:            method,
		issuer:            opts.Issuer,
		verifiedIssuers:   append([]string(nil), opts.VerifiedIssuers...),
		accessTTL:         opts.AccessTokenExpiresIn,
		refreshTTL:        opts.RefreshTokenExpiresIn,
		revocationTimeout: opts.RevocationTimeout,
	}

	if err := cfg.loadKeys(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return cfg, nil
}

func (c *JwtConfig) loadKeys(opts Options) error {
	switch {
	case c.algorithm == None:
		if !opts.AllowUnsigned {
			return fmt.Errorf("algorithm %q requires AllowUnsigned", None)
		}
		c.signingKey = jwt.UnsafeAllowNoneSignatureType
		c.verificationKey = jwt.UnsafeAllowNoneSignatureType
		return nil

	case c.algorithm.IsSymmetric():
		source := opts.PrivateKey
		if source.IsZero() {
			source = opts.PublicKey
		}
		secret, err := source.load(true)
		if err != nil {
			return fmt.Errorf("failed to load symmetric key: %w", err)
		}
		if len(secret) < minSymmetricKeyLength {
			return fmt.Errorf("symmetric key must be at least %d bytes", minSymmetricKeyLength)
		}
		c.signingKey = secret
		c.verificationKey = secret
		return nil

	default:
		return c.loadKeyPair(opts)
	}
}

func (c *JwtConfig) loadKeyPair(opts Options) error {
	if opts.PrivateKey.IsZero() && opts.PublicKey.IsZero() {
		return fmt.Errorf("private or public key is required for %s", c.algorithm)
	}

	var private crypto.Signer
	if !opts.PrivateKey.IsZero() {
		raw, err := opts.PrivateKey.load(true)
		if err != nil {
			return fmt.Errorf("failed to load private key: %w", err)
		}
		switch c.method.(type) {
		case *jwt.SigningMethodRSA:
			key, err := parseRSAPrivateKey(raw)
			if err != nil {
				return err
			}
			private = key
		case *jwt.SigningMethodECDSA:
			key, err := parseECDSAPrivateKey(raw)
			if err != nil {
				return err
			}
			if err := c.checkCurve(key.Curve); err != nil {
				return fmt.Errorf("private key: %w", err)
			}
			private = key
		}
		c.signingKey = private
	}

	if opts.PublicKey.IsZero() {
		c.verificationKey = private.Public()
		return nil
	}

	raw, err := opts.PublicKey.load(false)
	if err != nil {
		return fmt.Errorf("failed to load public key: %w", err)
	}
	switch c.method.(type) {
	case *jwt.SigningMethodRSA:
		key, err := parseRSAPublicKey(raw)
		if err != nil {
			return err
		}
		c.verificationKey = key
	case *jwt.SigningMethodECDSA:
		key, err := parseECDSAPublicKey(raw)
		if err != nil {
			return err
		}
		if err := c.checkCurve(key.Curve); err != nil {
			return fmt.Errorf("public key: %w", err)
		}
		c.verificationKey = key
	}

	return c.checkKeyPair()
}

// checkCurve rejects an ECDSA key whose curve differs from the one the
// configured ES algorithm signs with.
func (c *JwtConfig) checkCurve(curve elliptic.Curve) error {
	method, ok := c.method.(*jwt.SigningMethodECDSA)
	if !ok {
		return nil
	}
	if bits := curve.Params().BitSize; bits != method.CurveBits {
		return fmt.Errorf("curve %s (%d bits) does not match algorithm %s", curve.Params().Name, bits, c.algorithm)
	}
	return nil
}

// checkKeyPair rejects a configured public key that does not belong to the
// configured private key.
func (c *JwtConfig) checkKeyPair() error {
	if c.signingKey == nil {
		return nil
	}
	switch priv := c.signingKey.(type) {
	case *rsa.PrivateKey:
		if pub, ok := c.verificationKey.(*rsa.PublicKey); !ok || !priv.PublicKey.Equal(pub) {
			return fmt.Errorf("public key does not match private key")
		}
	case *ecdsa.PrivateKey:
		if pub, ok := c.verificationKey.(*ecdsa.PublicKey); !ok || !priv.PublicKey.Equal(pub) {
			return fmt.Errorf("public key does not match private key")
		}
	}
	return nil
}

// Algorithm returns the configured signing algorithm.
func (c *JwtConfig) Algorithm() Algorithm { return c.algorithm }

// Issuer returns the issuer stamped on generated tokens.
func (c *JwtConfig) Issuer() string { return c.issuer }

// AccessTTL returns the default access token lifetime.
func (c *JwtConfig) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the default refresh token lifetime.
func (c *JwtConfig) RefreshTTL() time.Duration { return c.refreshTTL }

// RevocationTimeout bounds every call into a RevocationGate.
func (c *JwtConfig) RevocationTimeout() time.Duration { return c.revocationTimeout }

// CanSign reports whether signing key material was loaded.
func (c *JwtConfig) CanSign() bool { return c.signingKey != nil }

// AllowedIssuers returns the issuer allow-list enforced during verification:
// the verified issuers when set, otherwise the configured issuer.
func (c *JwtConfig) AllowedIssuers() []string {
	if len(c.verifiedIssuers) > 0 {
		return append([]string(nil), c.verifiedIssuers...)
	}
	if c.issuer != "" {
		return []string{c.issuer}
	}
	return nil
}

// OptionsFromEnv builds Options from GOURDIAN_AUTH_* environment variables.
//
//	GOURDIAN_AUTH_ALGORITHM           signing algorithm (default HS256)
//	GOURDIAN_AUTH_SECRET              raw HMAC secret
//	GOURDIAN_AUTH_PRIVATE_KEY_PATH    private key or secret file
//	GOURDIAN_AUTH_PUBLIC_KEY_PATH     public key or certificate file
//	GOURDIAN_AUTH_ISSUER              issuer claim
//	GOURDIAN_AUTH_VERIFIED_ISSUERS    comma separated allow-list
//	GOURDIAN_AUTH_ACCESS_TTL          seconds or Go duration
//	GOURDIAN_AUTH_REFRESH_TTL         seconds or Go duration
//	GOURDIAN_AUTH_REVOCATION_TIMEOUT  seconds or Go duration
func OptionsFromEnv() Options {
	opts := Options{
		Algorithm:             Algorithm(getEnvOrDefault("GOURDIAN_AUTH_ALGORITHM", string(DefaultAlgorithm))),
		Issuer:                getEnvOrDefault("GOURDIAN_AUTH_ISSUER", DefaultIssuer),
		AccessTokenExpiresIn:  getEnvDurationOrDefault("GOURDIAN_AUTH_ACCESS_TTL", DefaultAccessTokenTTL),
		RefreshTokenExpiresIn: getEnvDurationOrDefault("GOURDIAN_AUTH_REFRESH_TTL", DefaultRefreshTokenTTL),
		RevocationTimeout:     getEnvDurationOrDefault("GOURDIAN_AUTH_REVOCATION_TIMEOUT", DefaultRevocationTimeout),
	}

	if secret := os.Getenv("GOURDIAN_AUTH_SECRET"); secret != "" {
		opts.PrivateKey = KeyFromBytes([]byte(secret))
	} else if path := os.Getenv("GOURDIAN_AUTH_PRIVATE_KEY_PATH"); path != "" {
		opts.PrivateKey = KeyFromFile(path)
	}
	if path := os.Getenv("GOURDIAN_AUTH_PUBLIC_KEY_PATH"); path != "" {
		opts.PublicKey = KeyFromFile(path)
	}

	if issuers := os.Getenv("GOURDIAN_AUTH_VERIFIED_ISSUERS"); issuers != "" {
		for _, iss := range strings.Split(issuers, ",") {
			if iss = strings.TrimSpace(iss); iss != "" {
				opts.VerifiedIssuers = append(opts.VerifiedIssuers, iss)
			}
		}
	}

	return opts
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts a Go duration ("30m") or plain seconds ("1800").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return defaultValue
}
