package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/dravek/basenotes/internal/crypto"
	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
	"github.com/dravek/basenotes/internal/repository"
)

// API token scopes.
const (
	ScopeNotesRead  = "notes:read"
	ScopeNotesWrite = "notes:write"
)

// allowedScopeSets are the scope combinations a token may carry.
var allowedScopeSets = []string{
	ScopeNotesRead,
	ScopeNotesRead + "," + ScopeNotesWrite,
}

// TokenService manages personal API tokens and authenticates requests
// presenting them.
type TokenService interface {
	// Issue creates a token and returns the raw value exactly once.
	Issue(ctx context.Context, userID uuid.UUID, name, scopes string) (raw string, t *model.APIToken, err error)
	// List returns the user's tokens, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.APIToken, error)
	// Revoke marks a token revoked.
	Revoke(ctx context.Context, userID, tokenID uuid.UUID) error
	// Authenticate resolves a raw token and enforces the required scope.
	Authenticate(ctx context.Context, raw, requiredScope string) (*model.APIToken, error)
}

type TokenServiceImpl struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
	pepper []byte

	now   func() int64
	newID func() (uuid.UUID, error)
}

// NewTokenService constructs TokenService.
func NewTokenService(tokens repository.TokenRepository, users repository.UserRepository, pepper []byte) *TokenServiceImpl {
	return &TokenServiceImpl{
		tokens: tokens,
		users:  users,
		pepper: pepper,
		now:    func() int64 { return time.Now().Unix() },
		newID:  uuid.NewV7,
	}
}

// Issue creates a new token. Unknown scope combinations fall back to
// read-only.
func (s *TokenServiceImpl) Issue(ctx context.Context, userID uuid.UUID, name, scopes string) (string, *model.APIToken, error) {
	if userID == uuid.Nil {
		return "", nil, errors.New("validation: empty userID")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return "", nil, errors.New("validation: token name must be 1-100 characters")
	}
	if !validScopes(scopes) {
		scopes = ScopeNotesRead
	}

	raw, err := pkgcrypto.NewAPIToken()
	if err != nil {
		return "", nil, err
	}
	id, err := s.newID()
	if err != nil {
		return "", nil, err
	}
	t := &model.APIToken{
		ID:        id,
		UserID:    userID,
		Name:      name,
		TokenHash: pkgcrypto.HashAPIToken(raw, s.pepper),
		Scopes:    scopes,
		CreatedAt: s.now(),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return "", nil, err
	}
	return raw, t, nil
}

// List returns the user's tokens.
func (s *TokenServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.APIToken, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.tokens.ListByUser(ctx, userID)
}

// Revoke marks a token revoked, scoped to its owner.
func (s *TokenServiceImpl) Revoke(ctx context.Context, userID, tokenID uuid.UUID) error {
	if userID == uuid.Nil || tokenID == uuid.Nil {
		return errors.New("validation: empty id")
	}
	return s.tokens.Revoke(ctx, tokenID, userID, s.now())
}

// Authenticate resolves a presented raw token, rejects revoked tokens,
// disabled accounts, and missing scopes, and stamps last_used_at.
func (s *TokenServiceImpl) Authenticate(ctx context.Context, raw, requiredScope string) (*model.APIToken, error) {
	if !strings.HasPrefix(raw, pkgcrypto.TokenPrefix) {
		return nil, errs.ErrUnauthorized
	}
	t, err := s.tokens.FindByHash(ctx, pkgcrypto.HashAPIToken(raw, s.pepper))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	if !hasScope(t.Scopes, requiredScope) {
		return nil, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	if u.DisabledAt != nil {
		return nil, errs.ErrUnauthorized
	}
	// Best-effort usage stamp.
	_ = s.tokens.TouchLastUsed(ctx, t.ID, s.now())
	return t, nil
}

func validScopes(scopes string) bool {
	for _, allowed := range allowedScopeSets {
		if scopes == allowed {
			return true
		}
	}
	return false
}

func hasScope(scopes, required string) bool {
	for _, sc := range strings.Split(scopes, ",") {
		if strings.TrimSpace(sc) == required {
			return true
		}
	}
	return false
}
