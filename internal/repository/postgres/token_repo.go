package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs an API token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Create inserts a new token row.
func (r *TokenRepo) Create(ctx context.Context, t *model.APIToken) error {
	const q = `
INSERT INTO api_tokens (id, user_id, name, token_hash, scopes, created_at, last_used_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.UserID, t.Name, t.TokenHash, t.Scopes, t.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// ListByUser returns the user's tokens, newest first.
func (r *TokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.APIToken, error) {
	const q = `
SELECT id, user_id, name, token_hash, scopes, created_at, last_used_at, revoked_at
FROM api_tokens WHERE user_id=$1
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.APIToken
	for rows.Next() {
		var t model.APIToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Scopes, &t.CreatedAt, &t.LastUsedAt, &t.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindByHash resolves an unrevoked token by its storage hash.
func (r *TokenRepo) FindByHash(ctx context.Context, hash []byte) (*model.APIToken, error) {
	const q = `
SELECT id, user_id, name, token_hash, scopes, created_at, last_used_at, revoked_at
FROM api_tokens WHERE token_hash=$1 AND revoked_at IS NULL`
	var t model.APIToken
	row := r.db.Pool.QueryRow(ctx, q, hash)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Scopes, &t.CreatedAt, &t.LastUsedAt, &t.RevokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// TouchLastUsed stamps last_used_at.
func (r *TokenRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, now int64) error {
	const q = `UPDATE api_tokens SET last_used_at=$2 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, now)
	return err
}

// Revoke marks a token revoked, scoped to its owner. Revoking an
// already-revoked token is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, id, userID uuid.UUID, now int64) error {
	const q = `
UPDATE api_tokens SET revoked_at=$3 WHERE id=$1 AND user_id=$2 AND revoked_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
