package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
)

// VersionRepo implements VersionRepository using PostgreSQL. Rows are
// written exclusively by insertSnapshot inside note mutations; this
// repository only reads them.
type VersionRepo struct{ db *DB }

// NewVersionRepo constructs a version repository.
func NewVersionRepo(db *DB) *VersionRepo { return &VersionRepo{db: db} }

// insertSnapshot appends the note's current state to the version log
// inside the caller's transaction. The sequence number is derived from
// the existing rows; the caller must hold the note's row lock so that
// concurrent writers cannot compute the same number.
func insertSnapshot(ctx context.Context, q querier, n *model.Note, event model.Event, at int64) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO note_versions (id, note_id, user_id, version_no, title, body_md, source_updated_at, created_at, event_type)
SELECT $1, $2, $3, COALESCE(MAX(version_no), 0) + 1, $4, $5, $6, $7, $8
FROM note_versions WHERE note_id=$2 AND user_id=$3`
	_, err = q.Exec(ctx, sql, id, n.ID, n.OwnerID, n.Title, n.Body, n.UpdatedAt, at, string(event))
	return err
}

// findVersion loads a version scoped to note and owner via the given querier.
func findVersion(ctx context.Context, q querier, versionID, noteID, ownerID uuid.UUID) (*model.Version, error) {
	const sql = `
SELECT id, note_id, user_id, version_no, title, body_md, source_updated_at, created_at, event_type
FROM note_versions WHERE id=$1 AND note_id=$2 AND user_id=$3`
	return scanVersion(q.QueryRow(ctx, sql, versionID, noteID, ownerID))
}

func scanVersion(row pgx.Row) (*model.Version, error) {
	var v model.Version
	var event string
	err := row.Scan(&v.ID, &v.NoteID, &v.OwnerID, &v.Seq, &v.Title, &v.Body, &v.SourceUpdatedAt, &v.CreatedAt, &event)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	v.Event = model.Event(event)
	return &v, nil
}

// ListByNote returns up to limit versions, newest sequence first.
func (r *VersionRepo) ListByNote(ctx context.Context, noteID, ownerID uuid.UUID, limit int) ([]model.Version, error) {
	const q = `
SELECT id, note_id, user_id, version_no, title, body_md, source_updated_at, created_at, event_type
FROM note_versions
WHERE note_id=$1 AND user_id=$2
ORDER BY version_no DESC
LIMIT $3`
	rows, err := r.db.Pool.Query(ctx, q, noteID, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		var v model.Version
		var event string
		if err := rows.Scan(&v.ID, &v.NoteID, &v.OwnerID, &v.Seq, &v.Title, &v.Body, &v.SourceUpdatedAt, &v.CreatedAt, &event); err != nil {
			return nil, err
		}
		v.Event = model.Event(event)
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindByID loads a single version fully scoped to note and owner.
func (r *VersionRepo) FindByID(ctx context.Context, versionID, noteID, ownerID uuid.UUID) (*model.Version, error) {
	return findVersion(ctx, r.db.Pool, versionID, noteID, ownerID)
}
