// keys.go

package gourdianauth

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeySource locates key material either on disk or in memory.
// When both are set, Bytes wins.
type KeySource struct {
	Path  string
	Bytes []byte
}

// KeyFromFile returns a KeySource reading the key from path.
func KeyFromFile(path string) KeySource {
	return KeySource{Path: path}
}

// KeyFromBytes returns a KeySource holding raw key material.
func KeyFromBytes(b []byte) KeySource {
	return KeySource{Bytes: b}
}

// IsZero reports whether no key material was configured.
func (k KeySource) IsZero() bool {
	return k.Path == "" && len(k.Bytes) == 0
}

// load returns the raw key bytes. Private key files must not be readable by
// group or others.
func (k KeySource) load(private bool) ([]byte, error) {
	if len(k.Bytes) > 0 {
		return k.Bytes, nil
	}
	if k.Path == "" {
		return nil, fmt.Errorf("no key material configured")
	}
	if private {
		if err := checkFilePermissions(k.Path, 0600); err != nil {
			return nil, fmt.Errorf("insecure private key file permissions: %w", err)
		}
	}
	b, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("key file %s is empty", k.Path)
	}
	return b, nil
}

// checkFilePermissions checks that path is not more permissive than requiredPerm
func checkFilePermissions(path string, requiredPerm os.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	actualPerm := info.Mode().Perm()
	if actualPerm&^requiredPerm != 0 {
		return fmt.Errorf("file %s has permissions %#o, expected %#o", path, actualPerm, requiredPerm)
	}

	return nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the RSA private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid RSA private key")
	}
	return rsaKey, nil
}

func parseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	pub, err := parsePublicKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not a valid RSA public key")
	}
	return rsaPub, nil
}

func parseECDSAPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the ECDSA private key")
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}
	ecKey, ok := pkcs8Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid ECDSA private key")
	}
	return ecKey, nil
}

func parseECDSAPublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	pub, err := parsePublicKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA public key: %w", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not a valid ECDSA public key")
	}
	return ecPub, nil
}

// parsePublicKey accepts a PKIX public key or an X.509 certificate.
func parsePublicKey(pemBytes []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		return pub, nil
	}

	cert, certErr := x509.ParseCertificate(block.Bytes)
	if certErr != nil {
		return nil, err
	}
	return cert.PublicKey, nil
}
