package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/dravek/basenotes/internal/crypto"
	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/limiter"
	"github.com/dravek/basenotes/internal/model"
	"github.com/dravek/basenotes/internal/repository"
)

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error

	updatedPwd bool
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}
func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, pwdHash, saltAuth []byte, _ int64) error {
	for _, u := range f.byEmail {
		if u.ID == id {
			u.PwdHash = append([]byte(nil), pwdHash...)
			u.SaltAuth = append([]byte(nil), saltAuth...)
			f.updatedPwd = true
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byEmail: map[string]*model.User{}}
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{})

	if _, err := s.Register(context.Background(), "", ""); err == nil {
		t.Fatalf("want validation error on empty email/password")
	}
	if _, err := s.Register(context.Background(), "not-an-email", "long-enough-pwd"); err == nil {
		t.Fatalf("want validation error on malformed email")
	}
	if _, err := s.Register(context.Background(), "a@b.com", "short"); err == nil {
		t.Fatalf("want validation error on short password")
	}

	id, err := s.Register(context.Background(), "  Alice@Example.COM  ", "long-enough-pwd")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("empty user id")
	}
	if _, ok := users.byEmail["alice@example.com"]; !ok {
		t.Fatalf("email not lowercased/trimmed: %v", users.byEmail)
	}

	if _, err := s.Register(context.Background(), "alice@example.com", "other-long-pwd"); err == nil {
		t.Fatalf("want repo error on duplicate email")
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(context.Background(), "bob@example.com", "long-enough-pwd"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	saltAuth, _ := pkgcrypto.RandBytes(16)
	pw := []byte("correct-password")
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "alice@example.com",
		SaltAuth: saltAuth,
		PwdHash:  pkgcrypto.HashPassword(pw, saltAuth),
	}

	users := &fakeUsers{byEmail: map[string]*model.User{"alice@example.com": u}}
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, []byte("secret"), 2*time.Minute, lim)

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(context.Background(), "alice@example.com", "correct-password", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.LoginWithIP(context.Background(), "alice@example.com", "correct-password", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	users.getErr = errs.ErrNotFound
	if _, _, err := s.LoginWithIP(context.Background(), "nope@example.com", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}
	users.getErr = nil

	lim.failBlocked = true
	if _, _, err := s.LoginWithIP(context.Background(), "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, _, err := s.LoginWithIP(context.Background(), "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, gotUser, err := s.LoginWithIP(context.Background(), "ALICE@example.com", "correct-password", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if gotUser.ID != u.ID {
		t.Fatalf("bad user returned: %+v", gotUser)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Login_DisabledAccount(t *testing.T) {
	t.Parallel()

	saltAuth, _ := pkgcrypto.RandBytes(16)
	disabled := int64(500)
	u := &model.User{
		ID:         uuid.Must(uuid.NewV4()),
		Email:      "off@example.com",
		SaltAuth:   saltAuth,
		PwdHash:    pkgcrypto.HashPassword([]byte("correct-password"), saltAuth),
		DisabledAt: &disabled,
	}
	users := &fakeUsers{byEmail: map[string]*model.User{"off@example.com": u}}
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{allowOK: true})

	if _, _, err := s.LoginWithIP(context.Background(), "off@example.com", "correct-password", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for disabled account, got %v", err)
	}
}

func TestAuth_ChangePassword(t *testing.T) {
	t.Parallel()

	saltAuth, _ := pkgcrypto.RandBytes(16)
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "alice@example.com",
		SaltAuth: saltAuth,
		PwdHash:  pkgcrypto.HashPassword([]byte("old-password-1"), saltAuth),
	}
	users := &fakeUsers{byEmail: map[string]*model.User{"alice@example.com": u}}
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{})

	if err := s.ChangePassword(context.Background(), uuid.Nil, "old-password-1", "new-password-1"); err == nil {
		t.Fatalf("want validation error (nil userID)")
	}
	if err := s.ChangePassword(context.Background(), u.ID, "old-password-1", "short"); err == nil {
		t.Fatalf("want validation error (short new password)")
	}
	if err := s.ChangePassword(context.Background(), u.ID, "wrong", "new-password-1"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong current password, got %v", err)
	}

	if err := s.ChangePassword(context.Background(), u.ID, "old-password-1", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !users.updatedPwd {
		t.Fatalf("password not persisted")
	}
	stored := users.byEmail["alice@example.com"]
	if !pkgcrypto.VerifyPassword([]byte("new-password-1"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("new password does not verify against stored hash")
	}
}
