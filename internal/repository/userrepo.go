package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/dravek/basenotes/internal/model"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by lowercased email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdatePassword replaces the password hash and salt.
	UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, saltAuth []byte, now int64) error
}

// TokenRepository stores personal API tokens (hashes only).
type TokenRepository interface {
	// Create inserts a new token row.
	Create(ctx context.Context, t *model.APIToken) error
	// ListByUser returns the user's tokens, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.APIToken, error)
	// FindByHash resolves an unrevoked token by its storage hash.
	FindByHash(ctx context.Context, hash []byte) (*model.APIToken, error)
	// TouchLastUsed stamps last_used_at (best effort).
	TouchLastUsed(ctx context.Context, id uuid.UUID, now int64) error
	// Revoke marks a token revoked, scoped to its owner.
	Revoke(ctx context.Context, id, userID uuid.UUID, now int64) error
}
