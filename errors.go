// errors.go

package gourdianauth

import (
	"errors"
)

// Codec errors. Every failure returned by TokenCodec.Verify wraps exactly one of
// ErrTokenExpired, ErrInvalidSignature, ErrMalformedToken or ErrInvalidIssuer.
var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidIssuer    = errors.New("token issuer is not allowed")
)

// Operation-level errors.
var (
	ErrWrongTokenType   = errors.New("wrong token type")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrUnknownTokenType = errors.New("unknown token type")
	ErrRevocationCheck  = errors.New("revocation check failed")
)

// ErrConfig is returned when key material or algorithm settings cannot be loaded.
// It is fatal at startup.
var ErrConfig = errors.New("invalid jwt configuration")

// Names used in failure descriptors returned by the explicit operations.
const (
	NameExpiredError          = "ExpiredError"
	NameInvalidSignatureError = "InvalidSignatureError"
	NameMalformedError        = "MalformedError"
	NameIssuerError           = "IssuerError"
	NameWrongTokenTypeError   = "WrongTokenTypeError"
	NameRevokedError          = "RevokedError"
	NameConfigError           = "ConfigError"
	NameRevocationCheckError  = "RevocationCheckError"
)

// ErrorName maps err onto the name of its taxonomy kind. Errors outside the
// taxonomy map to fallback.
func ErrorName(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return NameExpiredError
	case errors.Is(err, ErrInvalidSignature):
		return NameInvalidSignatureError
	case errors.Is(err, ErrMalformedToken), errors.Is(err, ErrUnknownTokenType):
		return NameMalformedError
	case errors.Is(err, ErrInvalidIssuer):
		return NameIssuerError
	case errors.Is(err, ErrWrongTokenType):
		return NameWrongTokenTypeError
	case errors.Is(err, ErrTokenRevoked):
		return NameRevokedError
	case errors.Is(err, ErrConfig):
		return NameConfigError
	case errors.Is(err, ErrRevocationCheck):
		return NameRevocationCheckError
	default:
		return fallback
	}
}

// Failure is a typed failure descriptor. TokenService implementations return a
// *Failure to control the name and message reported to the caller.
type Failure struct {
	Name string
	Msg  string
}

// NewFailure returns a *Failure with the given name and message.
func NewFailure(name, msg string) *Failure {
	return &Failure{Name: name, Msg: msg}
}

func (f *Failure) Error() string {
	if f.Name == "" {
		return f.Msg
	}
	return f.Name + ": " + f.Msg
}
