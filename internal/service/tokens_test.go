package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/dravek/basenotes/internal/crypto"
	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
	"github.com/dravek/basenotes/internal/repository"
)

type fakeTokens struct {
	byHash map[string]*model.APIToken

	createErr error
	touched   int
	revoked   int
}

var _ repository.TokenRepository = (*fakeTokens)(nil)

func (f *fakeTokens) Create(_ context.Context, t *model.APIToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byHash == nil {
		f.byHash = map[string]*model.APIToken{}
	}
	cpy := *t
	f.byHash[string(t.TokenHash)] = &cpy
	return nil
}
func (f *fakeTokens) ListByUser(_ context.Context, userID uuid.UUID) ([]model.APIToken, error) {
	var out []model.APIToken
	for _, t := range f.byHash {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}
func (f *fakeTokens) FindByHash(_ context.Context, hash []byte) (*model.APIToken, error) {
	t, ok := f.byHash[string(hash)]
	if !ok || t.RevokedAt != nil {
		return nil, errs.ErrNotFound
	}
	c := *t
	return &c, nil
}
func (f *fakeTokens) TouchLastUsed(_ context.Context, id uuid.UUID, now int64) error {
	f.touched++
	for _, t := range f.byHash {
		if t.ID == id {
			t.LastUsedAt = &now
		}
	}
	return nil
}
func (f *fakeTokens) Revoke(_ context.Context, id, userID uuid.UUID, now int64) error {
	for _, t := range f.byHash {
		if t.ID == id && t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			f.revoked++
			return nil
		}
	}
	return errs.ErrNotFound
}

func newTokenService(tokens *fakeTokens, users *fakeUsers) *TokenServiceImpl {
	s := NewTokenService(tokens, users, []byte("pepper"))
	s.now = func() int64 { return 2000 }
	return s
}

func usersWith(u *model.User) *fakeUsers {
	return &fakeUsers{byEmail: map[string]*model.User{u.Email: u}}
}

func TestTokens_Issue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com"}
	repo := &fakeTokens{}
	s := newTokenService(repo, usersWith(user))

	if _, _, err := s.Issue(ctx, uuid.Nil, "ci", ScopeNotesRead); err == nil {
		t.Fatalf("want validation error on empty userID")
	}
	if _, _, err := s.Issue(ctx, user.ID, "   ", ScopeNotesRead); err == nil {
		t.Fatalf("want validation error on blank name")
	}
	if _, _, err := s.Issue(ctx, user.ID, strings.Repeat("n", 101), ScopeNotesRead); err == nil {
		t.Fatalf("want validation error on long name")
	}

	raw, tok, err := s.Issue(ctx, user.ID, "ci", ScopeNotesRead+","+ScopeNotesWrite)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(raw, pkgcrypto.TokenPrefix) {
		t.Fatalf("raw token missing prefix: %q", raw)
	}
	if tok.Scopes != ScopeNotesRead+","+ScopeNotesWrite {
		t.Fatalf("scopes: %q", tok.Scopes)
	}
	if tok.CreatedAt != 2000 {
		t.Fatalf("clock not used: %d", tok.CreatedAt)
	}

	// Unknown scope combinations fall back to read-only.
	_, tok, err = s.Issue(ctx, user.ID, "weird", "admin:everything")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.Scopes != ScopeNotesRead {
		t.Fatalf("want read-only fallback, got %q", tok.Scopes)
	}
}

func TestTokens_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com"}
	repo := &fakeTokens{}
	s := newTokenService(repo, usersWith(user))

	raw, issued, err := s.Issue(ctx, user.ID, "ci", ScopeNotesRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Authenticate(ctx, "no-prefix-token", ScopeNotesRead); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on prefix mismatch, got %v", err)
	}
	if _, err := s.Authenticate(ctx, pkgcrypto.TokenPrefix+"unknown", ScopeNotesRead); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on unknown token, got %v", err)
	}
	if _, err := s.Authenticate(ctx, raw, ScopeNotesWrite); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing scope, got %v", err)
	}

	got, err := s.Authenticate(ctx, raw, ScopeNotesRead)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != issued.ID {
		t.Fatalf("wrong token resolved: %+v", got)
	}
	if repo.touched == 0 {
		t.Fatalf("expected last_used_at stamp")
	}

	// Revoked tokens stop authenticating.
	if err := s.Revoke(ctx, user.ID, issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := s.Authenticate(ctx, raw, ScopeNotesRead); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized after revoke, got %v", err)
	}
}

func TestTokens_Authenticate_DisabledUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	disabled := int64(1)
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com", DisabledAt: &disabled}
	repo := &fakeTokens{}
	s := newTokenService(repo, usersWith(user))

	raw, _, err := s.Issue(ctx, user.ID, "ci", ScopeNotesRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Authenticate(ctx, raw, ScopeNotesRead); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for disabled account, got %v", err)
	}
}

func TestTokens_Revoke_Scoping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com"}
	repo := &fakeTokens{}
	s := newTokenService(repo, usersWith(user))

	_, issued, err := s.Issue(ctx, user.ID, "ci", ScopeNotesRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := uuid.Must(uuid.NewV4())
	if err := s.Revoke(ctx, other, issued.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("cross-user revoke must be ErrNotFound, got %v", err)
	}
	if err := s.Revoke(ctx, user.ID, issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, user.ID, issued.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second revoke must be ErrNotFound, got %v", err)
	}
}
