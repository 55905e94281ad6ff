// File: tests_helpers_test.go

package gourdianauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testSymmetricKey = "test-secret-32-bytes-long-1234567890"

// Test Helper Functions

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func generateTempRSAPair(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePath = writeTempPEM(t, "private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey))

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPath = writeTempPEM(t, "public.pem", "PUBLIC KEY", publicBytes)

	return privatePath, publicPath
}

func generateTempECDSAPair(t *testing.T) (privatePath, publicPath string) {
	t.Helper()
	return generateTempECDSAPairOnCurve(t, elliptic.P256())
}

func generateTempECDSAPairOnCurve(t *testing.T, curve elliptic.Curve) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)

	privateBytes, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	privatePath = writeTempPEM(t, "ec_private.pem", "EC PRIVATE KEY", privateBytes)

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPath = writeTempPEM(t, "ec_public.pem", "PUBLIC KEY", publicBytes)

	return privatePath, publicPath
}

func generateTempCertificate(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Hour),
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	privatePath = writeTempPEM(t, "cert_private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey))
	publicPath = writeTempPEM(t, "cert_public.pem", "CERTIFICATE", certBytes)

	return privatePath, publicPath
}

func writeTempPEM(t *testing.T, name, blockType string, der []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0600)
	require.NoError(t, err)
	return path
}

func testOptions() Options {
	return Options{
		Algorithm:  HS256,
		PrivateKey: KeyFromBytes([]byte(testSymmetricKey)),
		Issuer:     "test-issuer",
	}
}

func newTestConfig(t *testing.T, mutate ...func(*Options)) *JwtConfig {
	t.Helper()

	opts := testOptions()
	for _, m := range mutate {
		m(&opts)
	}
	cfg, err := NewJwtConfig(opts)
	require.NoError(t, err)
	return cfg
}

func newTestServices(t *testing.T, mutate ...func(*Options)) (*TokenCodec, *TokenLifecycleService) {
	t.Helper()

	codec := NewTokenCodec(newTestConfig(t, mutate...))
	return codec, NewTokenLifecycleService(codec)
}

// fixedClock returns a clock frozen at at.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

var testSubject = Subject{SubjectID: "user-1", Roles: []string{"admin", "reader"}}

// stubTokenService is a TokenService whose behavior is set per test.
type stubTokenService struct {
	mu          sync.Mutex
	createFn    func(ctx context.Context, req CreateTokenRequest) (Subject, error)
	refreshFn   func(ctx context.Context, payload *RefreshTokenPayload) (Subject, error)
	isRevokedFn func(ctx context.Context, payload Payload) (bool, error)
	revokedSeen []Payload
}

func (s *stubTokenService) CreateToken(ctx context.Context, req CreateTokenRequest) (Subject, error) {
	if s.createFn == nil {
		return testSubject, nil
	}
	return s.createFn(ctx, req)
}

func (s *stubTokenService) RefreshToken(ctx context.Context, payload *RefreshTokenPayload) (Subject, error) {
	if s.refreshFn == nil {
		return Subject{SubjectID: payload.SubjectID, Roles: payload.Roles}, nil
	}
	return s.refreshFn(ctx, payload)
}

func (s *stubTokenService) IsRevoked(ctx context.Context, payload Payload) (bool, error) {
	s.mu.Lock()
	s.revokedSeen = append(s.revokedSeen, payload)
	s.mu.Unlock()
	if s.isRevokedFn == nil {
		return false, nil
	}
	return s.isRevokedFn(ctx, payload)
}

func (s *stubTokenService) revocationCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revokedSeen)
}

// revokedSet is a RevocationGate backed by a fixed set of token ids.
func revokedSet(ids ...string) RevocationGate {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return RevocationGateFunc(func(_ context.Context, payload Payload) (bool, error) {
		return set[payload.TokenID()], nil
	})
}

func bearerHeader(token string) map[string][]string {
	return map[string][]string{"Authorization": {"Bearer " + token}}
}
