// Package accounts is a small in-memory account book used by the example
// server. It implements gourdianauth.TokenService on top of a revocation store.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gourdian25/gourdianauth"
)

// Failure names reported to clients.
const (
	NameInvalidCredentials = "InvalidCredentials"
	NameAccountDisabled    = "AccountDisabled"
	NameUnknownSubject     = "UnknownSubject"
)

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// Account is one registered login.
type Account struct {
	ID           string
	Login        string
	PasswordHash string
	Roles        []string
	Disabled     bool
}

// Book stores accounts by login and by subject id.
type Book struct {
	mu          sync.RWMutex
	byLogin     map[string]*Account
	byID        map[string]*Account
	revocations gourdianauth.RevocationStore
	logger      *slog.Logger

	// dummyHash keeps unknown-login checks as slow as real ones.
	dummyHash string
}

// NewBook returns an empty book that records revocations in store.
func NewBook(store gourdianauth.RevocationStore, logger *slog.Logger) (*Book, error) {
	if store == nil {
		return nil, fmt.Errorf("revocation store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := HashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &Book{
		byLogin:     make(map[string]*Account),
		byID:        make(map[string]*Account),
		revocations: store,
		logger:      logger,
		dummyHash:   dummy,
	}, nil
}

// Add registers login with password and roles.
func (b *Book) Add(login, password string, roles ...string) (Account, error) {
	login = normalizeLogin(login)
	if login == "" {
		return Account{}, fmt.Errorf("login cannot be empty")
	}
	if password == "" {
		return Account{}, fmt.Errorf("password cannot be empty")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byLogin[login]; exists {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, login)
	}

	acct := &Account{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
		Roles:        append([]string{}, roles...),
	}
	b.byLogin[login] = acct
	b.byID[acct.ID] = acct

	return *acct, nil
}

// SetDisabled enables or disables the account for login.
func (b *Book) SetDisabled(login string, disabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.byLogin[normalizeLogin(login)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, login)
	}
	acct.Disabled = disabled
	return nil
}

// CreateToken checks login and password.
func (b *Book) CreateToken(ctx context.Context, req gourdianauth.CreateTokenRequest) (gourdianauth.Subject, error) {
	if err := ctx.Err(); err != nil {
		return gourdianauth.Subject{}, err
	}

	b.mu.RLock()
	acct, ok := b.byLogin[normalizeLogin(req.Login)]
	var snapshot Account
	if ok {
		snapshot = *acct
	}
	b.mu.RUnlock()

	if !ok {
		_ = VerifyPassword(req.Password, b.dummyHash)
		return gourdianauth.Subject{}, gourdianauth.NewFailure(NameInvalidCredentials, "wrong login or password")
	}
	if err := VerifyPassword(req.Password, snapshot.PasswordHash); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			b.logger.ErrorContext(ctx, "stored password hash is unusable",
				slog.String("subject_id", snapshot.ID),
				slog.Any("err", err))
		}
		return gourdianauth.Subject{}, gourdianauth.NewFailure(NameInvalidCredentials, "wrong login or password")
	}
	if snapshot.Disabled {
		return gourdianauth.Subject{}, gourdianauth.NewFailure(NameAccountDisabled, "account is disabled")
	}

	return gourdianauth.Subject{SubjectID: snapshot.ID, Roles: snapshot.Roles}, nil
}

// RefreshToken re-reads the subject behind the presented refresh token.
// The presented pair stays valid until RefreshCompleted runs.
func (b *Book) RefreshToken(ctx context.Context, payload *gourdianauth.RefreshTokenPayload) (gourdianauth.Subject, error) {
	if err := ctx.Err(); err != nil {
		return gourdianauth.Subject{}, err
	}

	b.mu.RLock()
	acct, ok := b.byID[payload.SubjectID]
	var snapshot Account
	if ok {
		snapshot = *acct
	}
	b.mu.RUnlock()

	if !ok {
		return gourdianauth.Subject{}, gourdianauth.NewFailure(NameUnknownSubject, "subject no longer exists")
	}
	if snapshot.Disabled {
		return gourdianauth.Subject{}, gourdianauth.NewFailure(NameAccountDisabled, "account is disabled")
	}

	return gourdianauth.Subject{SubjectID: snapshot.ID, Roles: snapshot.Roles}, nil
}

// RefreshCompleted revokes the presented refresh token together with the
// access token it was issued with, once the replacement pair exists.
func (b *Book) RefreshCompleted(ctx context.Context, presented *gourdianauth.RefreshTokenPayload, issued *gourdianauth.TokenPackage) error {
	if err := gourdianauth.RevokeRefreshChain(ctx, b.revocations, presented); err != nil {
		return fmt.Errorf("failed to revoke previous pair: %w", err)
	}

	b.logger.DebugContext(ctx, "previous pair revoked",
		slog.String("refresh_id", presented.ID),
		slog.String("access_id", presented.AssociatedAccessID),
		slog.String("replaced_by", issued.RefreshToken.Payload.ID))

	return nil
}

// IsRevoked delegates to the revocation store.
func (b *Book) IsRevoked(ctx context.Context, payload gourdianauth.Payload) (bool, error) {
	return b.revocations.IsRevoked(ctx, payload)
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
