// doc.go

// Package gourdianauth is a JWT authentication engine for HTTP APIs.
//
// It issues linked access/refresh token pairs, verifies presented tokens
// against one configured algorithm, resolves a per-request identity and
// defers revocation decisions to a caller-supplied RevocationGate.
//
// # Overview
//
// The package provides:
// - TokenCodec: signing and verification (HS256/384/512, RS256/384/512, ES256/384/512)
// - TokenLifecycleService: pair generation, the anonymous identity and payload classification
// - RequestAuthGate: per-request bearer extraction, verification and revocation lookup
// - Authenticator: the create, refresh and verify operations with tagged results
// - Redis and in-memory RevocationStore implementations
//
// # Token Types
//
// Access tokens are short-lived request credentials. Refresh tokens are
// exchanged for a new pair and carry the id of the access token they were
// issued with (the "aid" claim). Roles are copied into both halves.
//
// A request that carries no token, a refresh token or a revoked access token
// resolves to the anonymous identity, whose id is the nil UUID. A token that
// fails verification aborts the request.
//
// # Usage Example
//
//	cfg, err := gourdianauth.NewJwtConfig(gourdianauth.Options{
//		Algorithm:  gourdianauth.HS256,
//		PrivateKey: gourdianauth.KeyFromBytes([]byte(secret)),
//		Issuer:     "myapp.com",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	codec := gourdianauth.NewTokenCodec(cfg)
//	lifecycle := gourdianauth.NewTokenLifecycleService(codec)
//	gate := gourdianauth.NewRequestAuthGate(codec, lifecycle, store)
//	auth := gourdianauth.NewAuthenticator(codec, lifecycle, service)
//
//	http.ListenAndServe(":8080", gourdianauth.NewHandler(auth, gate, slog.Default()))
//
// # Security Considerations
//
// - Private key files must have 0600 permissions
// - HMAC secrets must be at least 32 bytes
// - Only the configured algorithm is accepted; "none" requires AllowUnsigned
// - Every revocation lookup is bounded by Options.RevocationTimeout
package gourdianauth
