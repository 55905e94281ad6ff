// File: gate_test.go

package gourdianauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestAuthGateAuthenticate(t *testing.T) {
	ctx := context.Background()
	codec, lifecycle := newTestServices(t)
	pkg, err := lifecycle.GeneratePair(ctx, testSubject, nil)
	require.NoError(t, err)

	t.Run("No authorization header resolves anonymous", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, revokedSet(), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, http.Header{})
		require.NoError(t, err)
		assert.Equal(t, StateResolved, res.State)
		assert.True(t, IsAnonymous(res.Identity))
	})

	t.Run("Fresh access token resolves its payload", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, revokedSet(), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, bearerHeader(pkg.AccessToken.Raw))
		require.NoError(t, err)
		assert.Equal(t, StateResolved, res.State)
		assert.Equal(t, pkg.AccessToken.Payload, res.Identity)
	})

	t.Run("Expired access token aborts", func(t *testing.T) {
		late := NewTokenCodec(codec.Config(), WithClock(fixedClock(time.Now().Add(time.Hour))))
		gate := NewRequestAuthGate(late, lifecycle, revokedSet(), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, bearerHeader(pkg.AccessToken.Raw))
		require.ErrorIs(t, err, ErrTokenExpired)
		assert.Equal(t, StateFailed, res.State)
		assert.True(t, IsAnonymous(res.Identity))
	})

	t.Run("Garbage token aborts", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))

		_, err := gate.Authenticate(ctx, bearerHeader("abc"))
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("Malformed header shapes mean no token", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))

		for _, value := range []string{
			"",
			"Bearer",
			"Bearer ",
			"bearer " + pkg.AccessToken.Raw,
			"Basic dXNlcjpwYXNz",
			"Bearer  " + pkg.AccessToken.Raw,
			"Bearer " + pkg.AccessToken.Raw + " extra",
		} {
			res, err := gate.Authenticate(ctx, http.Header{"Authorization": {value}})
			require.NoError(t, err, "header %q", value)
			assert.True(t, IsAnonymous(res.Identity), "header %q", value)
		}
	})

	t.Run("Header name is case-insensitive", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, http.Header{"authorization": {"Bearer " + pkg.AccessToken.Raw}})
		require.NoError(t, err)
		assert.Equal(t, pkg.AccessToken.Payload.ID, res.Identity.ID)
	})

	t.Run("Refresh token resolves anonymous without revocation lookup", func(t *testing.T) {
		var calls atomic.Int32
		gate := NewRequestAuthGate(codec, lifecycle, RevocationGateFunc(func(context.Context, Payload) (bool, error) {
			calls.Add(1)
			return false, nil
		}), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, bearerHeader(pkg.RefreshToken.Raw))
		require.NoError(t, err)
		assert.True(t, IsAnonymous(res.Identity))
		assert.Zero(t, calls.Load())
	})

	t.Run("Revoked access token resolves anonymous", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, revokedSet(pkg.AccessToken.Payload.ID), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, bearerHeader(pkg.AccessToken.Raw))
		require.NoError(t, err)
		assert.Equal(t, StateResolved, res.State)
		assert.True(t, IsAnonymous(res.Identity))
	})

	t.Run("Revocation lookup failure aborts", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, RevocationGateFunc(func(context.Context, Payload) (bool, error) {
			return false, errors.New("connection reset")
		}), WithGateLogger(discardLogger()))

		res, err := gate.Authenticate(ctx, bearerHeader(pkg.AccessToken.Raw))
		require.ErrorIs(t, err, ErrRevocationCheck)
		assert.Equal(t, StateFailed, res.State)
		assert.True(t, IsAnonymous(res.Identity))
	})

	t.Run("Revocation lookup is bounded", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		gate := NewRequestAuthGate(codec, lifecycle, RevocationGateFunc(func(context.Context, Payload) (bool, error) {
			<-release
			return false, nil
		}), WithGateLogger(discardLogger()), WithRevocationTimeout(20*time.Millisecond))

		_, err := gate.Authenticate(ctx, bearerHeader(pkg.AccessToken.Raw))
		require.ErrorIs(t, err, ErrRevocationCheck)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Cancelled request", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := gate.Authenticate(cancelled, bearerHeader(pkg.AccessToken.Raw))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRequestAuthGateMiddleware(t *testing.T) {
	codec, lifecycle := newTestServices(t)
	pkg, err := lifecycle.GeneratePair(context.Background(), testSubject, nil)
	require.NoError(t, err)

	var seen AccessTokenPayload
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity := IdentityFromContext(r.Context())
		require.NotNil(t, identity)
		seen = identity.Get()
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(gate *RequestAuthGate, header string) *httptest.ResponseRecorder {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		gate.Middleware(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("Anonymous request passes through", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))

		rec := serve(gate, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, called)
		assert.True(t, IsAnonymous(seen))
	})

	t.Run("Authenticated request carries identity", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, nil, WithGateLogger(discardLogger()))

		rec := serve(gate, "Bearer "+pkg.AccessToken.Raw)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, pkg.AccessToken.Payload, seen)
	})

	t.Run("Invalid token is rejected with 401", func(t *testing.T) {
		other := NewTokenCodec(newTestConfig(t, func(o *Options) {
			o.PrivateKey = KeyFromBytes([]byte("a-completely-different-secret-0123456789"))
		}))
		gate := NewRequestAuthGate(other, lifecycle, nil, WithGateLogger(discardLogger()))

		rec := serve(gate, "Bearer "+pkg.AccessToken.Raw)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, NameInvalidSignatureError, body.Name)
	})

	t.Run("Revocation failure is rejected with 503", func(t *testing.T) {
		gate := NewRequestAuthGate(codec, lifecycle, RevocationGateFunc(func(context.Context, Payload) (bool, error) {
			return false, errors.New("redis down")
		}), WithGateLogger(discardLogger()))

		rec := serve(gate, "Bearer "+pkg.AccessToken.Raw)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, called)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, NameRevocationCheckError, body.Name)
	})
}

func TestExtractBearer(t *testing.T) {
	token, ok := ExtractBearer(http.Header{"Authorization": {"Bearer abc.def.ghi"}})
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	_, ok = ExtractBearer(http.Header{"X-Authorization": {"Bearer abc"}})
	assert.False(t, ok)

	_, ok = ExtractBearer(http.Header{"Authorization": {}})
	assert.False(t, ok)

	token, ok = ExtractBearerFromConnectionParams(map[string]any{"authorization": "Bearer abc"})
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = ExtractBearerFromConnectionParams(map[string]any{"Authorization": 42})
	assert.False(t, ok)

	_, ok = ExtractBearerFromConnectionParams(nil)
	assert.False(t, ok)
}

func TestGateStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "resolved", StateResolved.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", GateState(99).String())
}
