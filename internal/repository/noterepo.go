// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/dravek/basenotes/internal/cursor"
	"github.com/dravek/basenotes/internal/model"
)

// NoteRepository provides the canonical note rows plus the
// snapshot-guarded mutations. Every mutating method runs as a single
// transaction that locks the note row, appends a version snapshot of
// the pre-mutation state, applies the change, and commits — or leaves
// both tables untouched.
type NoteRepository interface {
	// Create inserts a new active note.
	Create(ctx context.Context, n *model.Note) error

	// FindActive loads a non-deleted note scoped to its owner.
	FindActive(ctx context.Context, id, ownerID uuid.UUID) (*model.Note, error)

	// FindAny loads a note regardless of soft-deletion, for history and
	// rollback flows.
	FindAny(ctx context.Context, id, ownerID uuid.UUID) (*model.Note, error)

	// ListActive returns the owner's active notes ordered by
	// (updated_at DESC, id DESC), optionally filtered by a
	// case-insensitive substring match on title or body.
	ListActive(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Note, error)

	// ListPage returns one page of active notes after the cursor and,
	// when more rows remain, the cursor resuming at the next page.
	ListPage(ctx context.Context, ownerID uuid.UUID, cur *cursor.Cursor, pageSize int) ([]model.Note, *cursor.Cursor, error)

	// UpdateWithSnapshot snapshots the note's current state tagged
	// "update", then overwrites title/body and bumps updated_at.
	UpdateWithSnapshot(ctx context.Context, ownerID, noteID uuid.UUID, title, body string, now int64) (*model.Note, error)

	// DeleteWithSnapshot snapshots the current state tagged "delete",
	// then sets deleted_at. Deleting an already-deleted note reports
	// ErrNotFound and writes nothing.
	DeleteWithSnapshot(ctx context.Context, ownerID, noteID uuid.UUID, now int64) error

	// RollbackToVersion snapshots the current state tagged "rollback",
	// then applies the target version's content as the new current
	// state, resurrecting the note if it was soft-deleted.
	RollbackToVersion(ctx context.Context, ownerID, noteID, versionID uuid.UUID, now int64) (*model.Note, error)
}

// VersionRepository reads the append-only version log. Versions are
// written only by NoteRepository mutations and are never modified.
type VersionRepository interface {
	// ListByNote returns up to limit versions ordered by sequence
	// number descending.
	ListByNote(ctx context.Context, noteID, ownerID uuid.UUID, limit int) ([]model.Version, error)

	// FindByID loads a version fully scoped to note and owner.
	FindByID(ctx context.Context, versionID, noteID, ownerID uuid.UUID) (*model.Version, error)
}
