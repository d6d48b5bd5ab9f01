package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
)

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     "u@example.com",
		PwdHash:   []byte("h"),
		SaltAuth:  []byte("s"),
		CreatedAt: 1,
		UpdatedAt: 1,
	}

	mock.ExpectExec(`INSERT INTO users \(id, email, pwd_hash, salt_auth, created_at, updated_at, disabled_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, NULL\)`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, u.CreatedAt, u.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	email := "u@example.com"

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at, updated_at, disabled_at FROM users WHERE email=\$1`).
		WithArgs(email).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "pwd_hash", "salt_auth", "created_at", "updated_at", "disabled_at"}).
			AddRow(id, email, []byte("h"), []byte("s"), int64(1), int64(1), nil))
	u, err := r.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Nil(t, u.DisabledAt)

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, created_at, updated_at, disabled_at FROM users WHERE email=\$1`).
		WithArgs(email).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, email)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET pwd_hash=\$2, salt_auth=\$3, updated_at=\$4 WHERE id=\$1`).
		WithArgs(id, []byte("h2"), []byte("s2"), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePassword(ctx, id, []byte("h2"), []byte("s2"), 5))

	mock.ExpectExec(`UPDATE users SET pwd_hash=\$2, salt_auth=\$3, updated_at=\$4 WHERE id=\$1`).
		WithArgs(id, []byte("h2"), []byte("s2"), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePassword(ctx, id, []byte("h2"), []byte("s2"), 5), errs.ErrNotFound)
}
