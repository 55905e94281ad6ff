// gate.go

package gourdianauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	authorizationHeader = "Authorization"
	bearerScheme        = "Bearer"
)

// GateState is a step of the per-request authentication state machine.
type GateState int

const (
	StateUnauthenticated GateState = iota
	StateExtracting
	StateVerifying
	StateAuthorizing
	StateResolved
	StateFailed
)

func (s GateState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateExtracting:
		return "extracting"
	case StateVerifying:
		return "verifying"
	case StateAuthorizing:
		return "authorizing"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of RequestAuthGate.Authenticate. Identity is the
// anonymous sentinel unless a non-revoked access token was presented.
type Resolution struct {
	State    GateState
	Identity AccessTokenPayload
}

// RequestAuthGate runs once per request: it extracts the bearer token,
// verifies it, consults the RevocationGate for access tokens and resolves the
// request identity.
//
// Any verification failure of a presented token is returned as an error and
// aborts the request, even when the request does not need authentication.
// A revoked token does not fail the request; the identity stays anonymous.
type RequestAuthGate struct {
	codec      *TokenCodec
	lifecycle  *TokenLifecycleService
	revocation RevocationGate
	timeout    time.Duration
	logger     *slog.Logger
}

// GateOption configures a RequestAuthGate.
type GateOption func(*RequestAuthGate)

// WithGateLogger sets the logger used for state transitions and failures.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *RequestAuthGate) {
		g.logger = logger
	}
}

// WithRevocationTimeout overrides the configured revocation timeout.
func WithRevocationTimeout(timeout time.Duration) GateOption {
	return func(g *RequestAuthGate) {
		g.timeout = timeout
	}
}

// NewRequestAuthGate returns a gate. revocation may be nil, in which case no
// token is ever considered revoked.
func NewRequestAuthGate(codec *TokenCodec, lifecycle *TokenLifecycleService, revocation RevocationGate, opts ...GateOption) *RequestAuthGate {
	g := &RequestAuthGate{
		codec:      codec,
		lifecycle:  lifecycle,
		revocation: revocation,
		timeout:    codec.Config().RevocationTimeout(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate resolves the identity for a request carrying header.
func (g *RequestAuthGate) Authenticate(ctx context.Context, header http.Header) (Resolution, error) {
	res := Resolution{State: StateUnauthenticated, Identity: g.lifecycle.AnonymousIdentity()}

	g.enter(ctx, &res, StateExtracting)
	if err := ctx.Err(); err != nil {
		return g.fail(ctx, res, err)
	}
	raw, ok := ExtractBearer(header)
	if !ok {
		g.enter(ctx, &res, StateResolved)
		return res, nil
	}

	g.enter(ctx, &res, StateVerifying)
	payload, err := g.codec.Verify(raw)
	if err != nil {
		return g.fail(ctx, res, err)
	}

	kind, err := Classify(payload)
	if err != nil {
		return g.fail(ctx, res, err)
	}
	if kind == RefreshToken {
		g.logger.DebugContext(ctx, "refresh token presented to request gate, identity stays anonymous",
			slog.String("token_id", payload.TokenID()))
		g.enter(ctx, &res, StateResolved)
		return res, nil
	}

	g.enter(ctx, &res, StateAuthorizing)
	revoked, err := checkRevocation(ctx, g.revocation, payload, g.timeout)
	if err != nil {
		return g.fail(ctx, res, err)
	}
	if err := ctx.Err(); err != nil {
		return g.fail(ctx, res, err)
	}
	if revoked {
		g.logger.InfoContext(ctx, "revoked access token presented",
			slog.String("token_id", payload.TokenID()),
			slog.String("subject_id", payload.Subject()))
		g.enter(ctx, &res, StateResolved)
		return res, nil
	}

	res.Identity = *payload.(*AccessTokenPayload)
	g.enter(ctx, &res, StateResolved)
	return res, nil
}

// Middleware runs the gate for every request. On success the request context
// carries a RequestIdentity; on failure the request is aborted with 401, or
// 503 when the revocation check could not complete.
func (g *RequestAuthGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		res, err := g.Authenticate(ctx, r.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			status := http.StatusUnauthorized
			if errors.Is(err, ErrRevocationCheck) {
				status = http.StatusServiceUnavailable
			} else {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			}
			writeJSON(w, status, errorBody{
				Name: ErrorName(err, "AuthenticationError"),
				Msg:  err.Error(),
			})
			return
		}

		identity := NewRequestIdentity(res.Identity)
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, identity)))
	})
}

func (g *RequestAuthGate) enter(ctx context.Context, res *Resolution, state GateState) {
	g.logger.DebugContext(ctx, "auth gate transition",
		slog.String("from", res.State.String()),
		slog.String("to", state.String()))
	res.State = state
}

// fail moves res to StateFailed. The identity is reset so no partial state
// leaves the gate.
func (g *RequestAuthGate) fail(ctx context.Context, res Resolution, err error) (Resolution, error) {
	g.logger.WarnContext(ctx, "request authentication failed",
		slog.String("state", res.State.String()),
		slog.String("error", ErrorName(err, "AuthenticationError")),
		slog.Any("err", err))
	g.enter(ctx, &res, StateFailed)
	res.Identity = g.lifecycle.AnonymousIdentity()
	return res, err
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header. The header name is matched case-insensitively; the value must be
// exactly the scheme, one space and a non-empty token. Anything else reports
// no token.
func ExtractBearer(header http.Header) (string, bool) {
	for name, values := range header {
		if !strings.EqualFold(name, authorizationHeader) || len(values) == 0 {
			continue
		}
		return parseBearer(values[0])
	}
	return "", false
}

// ExtractBearerFromConnectionParams reads the bearer token from the
// connection init payload of a subscription transport.
func ExtractBearerFromConnectionParams(params map[string]any) (string, bool) {
	for name, value := range params {
		if !strings.EqualFold(name, authorizationHeader) {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return "", false
		}
		return parseBearer(s)
	}
	return "", false
}

func parseBearer(value string) (string, bool) {
	parts := strings.Split(value, " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
