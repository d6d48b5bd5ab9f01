package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dravek/basenotes/internal/cursor"
	"github.com/dravek/basenotes/internal/errs"
	"github.com/dravek/basenotes/internal/model"
)

// NoteRepo implements NoteRepository using PostgreSQL.
//
// Mutations follow a fixed transactional shape: SELECT ... FOR UPDATE on
// the note row, INSERT of the pre-mutation state into note_versions,
// then the UPDATE itself. The row lock serializes concurrent writers on
// the same note, which is what keeps version sequence numbers unique.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }


func scanNote(row pgx.Row) (*model.Note, error) {
	var n model.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if isLockNotAvailable(err) {
			return nil, errs.ErrContention
		}
		return nil, err
	}
	return &n, nil
}

// Create inserts a new active note row.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	const q = `
INSERT INTO notes (id, user_id, title, body_md, created_at, updated_at, deleted_at)
VALUES ($1, $2, $3, $4, $5, $6, NULL)`
	_, err := r.db.Pool.Exec(ctx, q, n.ID, n.OwnerID, n.Title, n.Body, n.CreatedAt, n.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// FindActive selects a non-deleted note scoped to its owner.
func (r *NoteRepo) FindActive(ctx context.Context, id, ownerID uuid.UUID) (*model.Note, error) {
	const q = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`
	return scanNote(r.db.Pool.QueryRow(ctx, q, id, ownerID))
}

// FindAny selects a note regardless of soft-deletion.
func (r *NoteRepo) FindAny(ctx context.Context, id, ownerID uuid.UUID) (*model.Note, error) {
	const q = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes WHERE id=$1 AND user_id=$2`
	return scanNote(r.db.Pool.QueryRow(ctx, q, id, ownerID))
}

// findForUpdate locks the note row inside the caller's transaction.
// includeDeleted widens visibility for rollback, which may target a
// soft-deleted note.
func findForUpdate(ctx context.Context, q querier, id, ownerID uuid.UUID, includeDeleted bool) (*model.Note, error) {
	const active = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL FOR UPDATE`
	const any = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes WHERE id=$1 AND user_id=$2 FOR UPDATE`
	sql := active
	if includeDeleted {
		sql = any
	}
	return scanNote(q.QueryRow(ctx, sql, id, ownerID))
}

// updateRow overwrites title/body/updated_at of an active note.
func updateRow(ctx context.Context, q querier, n *model.Note) error {
	const sql = `
UPDATE notes SET title=$3, body_md=$4, updated_at=$5
WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`
	_, err := q.Exec(ctx, sql, n.ID, n.OwnerID, n.Title, n.Body, n.UpdatedAt)
	return err
}

// softDeleteRow sets deleted_at only if currently NULL.
func softDeleteRow(ctx context.Context, q querier, id, ownerID uuid.UUID, now int64) error {
	const sql = `
UPDATE notes SET deleted_at=$3
WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`
	_, err := q.Exec(ctx, sql, id, ownerID, now)
	return err
}

// restoreRow clears deleted_at and rewrites content. Used only by
// rollback when the target note is currently deleted.
func restoreRow(ctx context.Context, q querier, n *model.Note) error {
	const sql = `
UPDATE notes SET title=$3, body_md=$4, updated_at=$5, deleted_at=NULL
WHERE id=$1 AND user_id=$2`
	_, err := q.Exec(ctx, sql, n.ID, n.OwnerID, n.Title, n.Body, n.UpdatedAt)
	return err
}

// UpdateWithSnapshot replaces a note's content after snapshotting the
// superseded state.
func (r *NoteRepo) UpdateWithSnapshot(
	ctx context.Context, ownerID, noteID uuid.UUID, title, body string, now int64,
) (updated *model.Note, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			updated = nil
		}
	}()

	n, err := findForUpdate(ctx, tx, noteID, ownerID, false)
	if err != nil {
		return nil, err
	}
	if err = insertSnapshot(ctx, tx, n, model.EventUpdate, now); err != nil {
		return nil, err
	}

	n.Title = title
	n.Body = body
	n.UpdatedAt = now
	if err = updateRow(ctx, tx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteWithSnapshot soft-deletes a note after snapshotting it. A note
// that is already deleted is invisible to the locking read, so a second
// delete writes nothing and reports ErrNotFound.
func (r *NoteRepo) DeleteWithSnapshot(
	ctx context.Context, ownerID, noteID uuid.UUID, now int64,
) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	n, err := findForUpdate(ctx, tx, noteID, ownerID, false)
	if err != nil {
		return err
	}
	if err = insertSnapshot(ctx, tx, n, model.EventDelete, now); err != nil {
		return err
	}
	return softDeleteRow(ctx, tx, noteID, ownerID, now)
}

// RollbackToVersion applies a historical version's content as the
// note's new current state, snapshotting the pre-rollback state first.
// Works on soft-deleted notes and resurrects them.
func (r *NoteRepo) RollbackToVersion(
	ctx context.Context, ownerID, noteID, versionID uuid.UUID, now int64,
) (rolled *model.Note, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			rolled = nil
		}
	}()

	n, err := findForUpdate(ctx, tx, noteID, ownerID, true)
	if err != nil {
		return nil, err
	}
	v, err := findVersion(ctx, tx, versionID, noteID, ownerID)
	if err != nil {
		return nil, err
	}
	if err = insertSnapshot(ctx, tx, n, model.EventRollback, now); err != nil {
		return nil, err
	}

	title := v.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	wasDeleted := n.DeletedAt != nil
	n.Title = title
	n.Body = v.Body
	n.UpdatedAt = now
	n.DeletedAt = nil
	if wasDeleted {
		err = restoreRow(ctx, tx, n)
	} else {
		err = updateRow(ctx, tx, n)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListActive returns the owner's active notes, newest first, optionally
// filtered by a case-insensitive substring match on title or body.
func (r *NoteRepo) ListActive(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Note, error) {
	const plain = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes
WHERE user_id=$1 AND deleted_at IS NULL
ORDER BY updated_at DESC, id DESC`
	const filtered = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes
WHERE user_id=$1 AND deleted_at IS NULL AND (title ILIKE $2 OR body_md ILIKE $2)
ORDER BY updated_at DESC, id DESC`

	var rows pgx.Rows
	var err error
	if search == "" {
		rows, err = r.db.Pool.Query(ctx, plain, ownerID)
	} else {
		rows, err = r.db.Pool.Query(ctx, filtered, ownerID, "%"+search+"%")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

// ListPage returns one page of active notes strictly after the cursor
// in (updated_at DESC, id DESC) order. It over-fetches one row to
// detect whether a next page exists without a separate count query.
func (r *NoteRepo) ListPage(
	ctx context.Context, ownerID uuid.UUID, cur *cursor.Cursor, pageSize int,
) ([]model.Note, *cursor.Cursor, error) {
	const first = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes
WHERE user_id=$1 AND deleted_at IS NULL
ORDER BY updated_at DESC, id DESC
LIMIT $2`
	const after = `
SELECT id, user_id, title, body_md, created_at, updated_at, deleted_at
FROM notes
WHERE user_id=$1 AND deleted_at IS NULL
  AND (updated_at < $2 OR (updated_at = $2 AND id < $3))
ORDER BY updated_at DESC, id DESC
LIMIT $4`

	var rows pgx.Rows
	var err error
	if cur == nil {
		rows, err = r.db.Pool.Query(ctx, first, ownerID, pageSize+1)
	} else {
		rows, err = r.db.Pool.Query(ctx, after, ownerID, cur.UpdatedAt, cur.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *cursor.Cursor
	if len(notes) > pageSize {
		notes = notes[:pageSize]
		last := notes[len(notes)-1]
		next = &cursor.Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
	}
	return notes, next, nil
}

func collectNotes(rows pgx.Rows) ([]model.Note, error) {
	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
