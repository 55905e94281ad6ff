// authenticator.go

package gourdianauth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// CreateTokenRequest carries the credentials presented to Create.
type CreateTokenRequest struct {
	Login    string
	Password string
}

// TokenService is the capability supplied by the application: it owns
// credential checks, account lookups and the revocation store.
//
// CreateToken and RefreshToken return the subject to issue a new pair for.
// Returning a *Failure controls the name and message reported to the caller.
// RefreshToken must not assume the old pair is invalidated; revoking it is
// the service's responsibility, best done in RefreshCompleter.
type TokenService interface {
	CreateToken(ctx context.Context, req CreateTokenRequest) (Subject, error)
	RefreshToken(ctx context.Context, payload *RefreshTokenPayload) (Subject, error)
	RevocationGate
}

// RefreshCompleter is implemented by a TokenService that retires the
// presented refresh token itself. Refresh calls RefreshCompleted only after
// the replacement pair has been generated, so a failed refresh leaves the
// presented token usable.
type RefreshCompleter interface {
	RefreshCompleted(ctx context.Context, presented *RefreshTokenPayload, issued *TokenPackage) error
}

// Authenticator implements the explicit create, refresh and verify
// operations. Unlike RequestAuthGate it never returns errors: every failure
// is translated into a typed response.
type Authenticator struct {
	codec     *TokenCodec
	lifecycle *TokenLifecycleService
	service   TokenService
	timeout   time.Duration
	logger    *slog.Logger
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(logger *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// NewAuthenticator returns an Authenticator backed by service.
func NewAuthenticator(codec *TokenCodec, lifecycle *TokenLifecycleService, service TokenService, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		codec:     codec,
		lifecycle: lifecycle,
		service:   service,
		timeout:   codec.Config().RevocationTimeout(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Create checks credentials through the TokenService and issues a new pair.
// On success the pair's access payload becomes the request identity.
func (a *Authenticator) Create(ctx context.Context, login, password string) RegistrationResponse {
	subject, err := a.service.CreateToken(ctx, CreateTokenRequest{Login: login, Password: password})
	if err != nil {
		a.logger.InfoContext(ctx, "token creation rejected", slog.Any("err", err))
		return registrationFailure(err)
	}

	pkg, failure := a.issue(ctx, subject, "created")
	if failure != nil {
		return failure
	}
	return a.succeed(ctx, pkg)
}

// Refresh exchanges a refresh token for a new pair. The token must verify,
// be a refresh token and not be revoked. Old token ids are not invalidated.
func (a *Authenticator) Refresh(ctx context.Context, rawRefresh string) RegistrationResponse {
	payload, err := a.codec.Verify(rawRefresh)
	if err != nil {
		return registrationFailure(err)
	}

	kind, err := Classify(payload)
	if err != nil {
		return registrationFailure(err)
	}
	if kind != RefreshToken {
		return &RegistrationError{
			Name: NameWrongTokenTypeError,
			Msg:  "token is not a refresh token, provide a refresh token",
		}
	}

	revoked, err := checkRevocation(ctx, a.service, payload, a.timeout)
	if err != nil {
		return registrationFailure(err)
	}
	if revoked {
		return &RegistrationError{Name: NameRevokedError, Msg: "Token revoked"}
	}

	refresh := payload.(*RefreshTokenPayload)
	subject, err := a.service.RefreshToken(ctx, refresh)
	if err != nil {
		a.logger.InfoContext(ctx, "token refresh rejected",
			slog.String("token_id", refresh.ID),
			slog.Any("err", err))
		return registrationFailure(err)
	}

	pkg, failure := a.issue(ctx, subject, "refreshed")
	if failure != nil {
		return failure
	}

	if completer, ok := a.service.(RefreshCompleter); ok {
		if err := completer.RefreshCompleted(ctx, refresh, pkg); err != nil {
			a.logger.ErrorContext(ctx, "refresh completion failed",
				slog.String("token_id", refresh.ID),
				slog.Any("err", err))
			return registrationFailure(err)
		}
	}

	return a.succeed(ctx, pkg)
}

// VerifyToken verifies raw and checks it against the revocation gate. It
// never mutates the request identity and never returns an error.
func (a *Authenticator) VerifyToken(ctx context.Context, raw string) VerificationResponse {
	payload, err := a.codec.Verify(raw)
	if err != nil {
		return &VerificationError{Name: ErrorName(err, NameMalformedError), Msg: err.Error()}
	}

	revoked, err := checkRevocation(ctx, a.service, payload, a.timeout)
	if err != nil {
		return &VerificationError{Name: ErrorName(err, NameRevocationCheckError), Msg: err.Error()}
	}
	if revoked {
		return &VerificationError{Name: NameRevokedError, Msg: "Token revoked"}
	}

	kind, err := Classify(payload)
	if err != nil {
		return &VerificationError{Name: NameMalformedError, Msg: err.Error()}
	}
	if kind != AccessToken {
		return &VerificationError{
			Name: NameWrongTokenTypeError,
			Msg:  "token is a refresh token, provide an access token",
		}
	}

	return &VerificationSuccess{Payload: *payload.(*AccessTokenPayload)}
}

// TokenPayload returns the identity of the current request, or the anonymous
// sentinel when the request did not pass through the gate.
func (a *Authenticator) TokenPayload(ctx context.Context) AccessTokenPayload {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.Get()
	}
	return a.lifecycle.AnonymousIdentity()
}

func (a *Authenticator) issue(ctx context.Context, subject Subject, action string) (*TokenPackage, *RegistrationError) {
	pkg, err := a.lifecycle.GeneratePair(ctx, subject, nil)
	if err != nil {
		a.logger.ErrorContext(ctx, "token pair generation failed", slog.Any("err", err))
		return nil, registrationFailure(err)
	}

	a.logger.InfoContext(ctx, "token pair "+action,
		slog.String("subject_id", subject.SubjectID),
		slog.String("access_id", pkg.AccessToken.Payload.ID),
		slog.String("refresh_id", pkg.RefreshToken.Payload.ID))

	return pkg, nil
}

func (a *Authenticator) succeed(ctx context.Context, pkg *TokenPackage) RegistrationResponse {
	if identity := IdentityFromContext(ctx); identity != nil {
		identity.Set(pkg.AccessToken.Payload)
	}
	return &RegistrationSuccess{Payload: *pkg}
}

func registrationFailure(err error) *RegistrationError {
	var failure *Failure
	if errors.As(err, &failure) {
		name := failure.Name
		if name == "" {
			name = typeNameRegistrationError
		}
		return &RegistrationError{Name: name, Msg: failure.Msg}
	}
	return &RegistrationError{Name: ErrorName(err, typeNameRegistrationError), Msg: err.Error()}
}
