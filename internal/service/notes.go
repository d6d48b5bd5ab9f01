// Package service contains application services for notes, authentication, and API tokens.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/dravek/basenotes/internal/cursor"
	"github.com/dravek/basenotes/internal/model"
	"github.com/dravek/basenotes/internal/repository"
)

// DefaultTitle is substituted when a note title is blank.
const DefaultTitle = "Untitled"

// maxTitleLen is the title limit in runes.
const maxTitleLen = 500

// NoteService defines the note lifecycle operations exposed to the API
// layer. The owner ID is threaded explicitly through every call; the
// service trusts it completely for scoping.
type NoteService interface {
	// Create inserts a new note and returns it.
	Create(ctx context.Context, ownerID uuid.UUID, title, body string) (*model.Note, error)
	// Get returns a single note; includeDeleted widens visibility for
	// history flows.
	Get(ctx context.Context, ownerID, noteID uuid.UUID, includeDeleted bool) (*model.Note, error)
	// List returns active notes newest-first, optionally filtered by a
	// substring search over title and body.
	List(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Note, error)
	// ListPage returns a page of active notes plus the token resuming
	// at the next page ("" at the end). A malformed token starts from
	// the beginning.
	ListPage(ctx context.Context, ownerID uuid.UUID, pageToken string, pageSize int) ([]model.Note, string, error)
	// Update replaces a note's content, snapshotting the old state.
	Update(ctx context.Context, ownerID, noteID uuid.UUID, title, body string) (*model.Note, error)
	// Delete soft-deletes a note, snapshotting the old state.
	Delete(ctx context.Context, ownerID, noteID uuid.UUID) error
	// History lists a note's versions newest-first. Works on deleted notes.
	History(ctx context.Context, ownerID, noteID uuid.UUID, limit int) ([]model.Version, error)
	// GetVersion returns one version scoped to note and owner.
	GetVersion(ctx context.Context, ownerID, noteID, versionID uuid.UUID) (*model.Version, error)
	// Rollback restores a note's content from a version, snapshotting
	// the pre-rollback state and resurrecting the note if deleted.
	Rollback(ctx context.Context, ownerID, noteID, versionID uuid.UUID) (*model.Note, error)
}

// NoteServiceImpl implements NoteService over the repositories.
type NoteServiceImpl struct {
	notes    repository.NoteRepository
	versions repository.VersionRepository

	defaultPageSize int
	maxPageSize     int
	historyLimit    int

	// now and newID are injectable for deterministic tests.
	now   func() int64
	newID func() (uuid.UUID, error)
}

// NewNoteService constructs NoteService with listing limits.
func NewNoteService(notes repository.NoteRepository, versions repository.VersionRepository, defaultPageSize, maxPageSize, historyLimit int) *NoteServiceImpl {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &NoteServiceImpl{
		notes:           notes,
		versions:        versions,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		historyLimit:    historyLimit,
		now:             func() int64 { return time.Now().Unix() },
		newID:           uuid.NewV7,
	}
}

// NormalizeTitle trims the title, substitutes DefaultTitle for blank
// input, and truncates to the 500-rune limit.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	if r := []rune(title); len(r) > maxTitleLen {
		return string(r[:maxTitleLen])
	}
	return title
}

// Create inserts a new note with a fresh time-ordered ID.
func (s *NoteServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, title, body string) (*model.Note, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID")
	}
	id, err := s.newID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	n := &model.Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     NormalizeTitle(title),
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Get fetches a single note by id.
func (s *NoteServiceImpl) Get(ctx context.Context, ownerID, noteID uuid.UUID, includeDeleted bool) (*model.Note, error) {
	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID/noteID")
	}
	if includeDeleted {
		return s.notes.FindAny(ctx, noteID, ownerID)
	}
	return s.notes.FindActive(ctx, noteID, ownerID)
}

// List returns the owner's active notes.
func (s *NoteServiceImpl) List(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Note, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID")
	}
	return s.notes.ListActive(ctx, ownerID, strings.TrimSpace(search))
}

// ListPage returns one page of active notes and the next-page token.
func (s *NoteServiceImpl) ListPage(ctx context.Context, ownerID uuid.UUID, pageToken string, pageSize int) ([]model.Note, string, error) {
	if ownerID == uuid.Nil {
		return nil, "", errors.New("validation: empty ownerID")
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	// Bad tokens degrade to "start of collection" rather than erroring.
	cur, _ := cursor.Decode(pageToken)

	notes, next, err := s.notes.ListPage(ctx, ownerID, cur, pageSize)
	if err != nil {
		return nil, "", err
	}
	if next == nil {
		return notes, "", nil
	}
	return notes, cursor.Encode(*next), nil
}

// Update replaces a note's content through the snapshot protocol.
func (s *NoteServiceImpl) Update(ctx context.Context, ownerID, noteID uuid.UUID, title, body string) (*model.Note, error) {
	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID/noteID")
	}
	return s.notes.UpdateWithSnapshot(ctx, ownerID, noteID, NormalizeTitle(title), body, s.now())
}

// Delete soft-deletes a note through the snapshot protocol.
func (s *NoteServiceImpl) Delete(ctx context.Context, ownerID, noteID uuid.UUID) error {
	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return errors.New("validation: empty ownerID/noteID")
	}
	return s.notes.DeleteWithSnapshot(ctx, ownerID, noteID, s.now())
}

// History lists versions for a note, including soft-deleted notes. The
// note must exist for the owner, otherwise ErrNotFound.
func (s *NoteServiceImpl) History(ctx context.Context, ownerID, noteID uuid.UUID, limit int) ([]model.Version, error) {
	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return nil, errors.New("validation: empty ownerID/noteID")
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	if _, err := s.notes.FindAny(ctx, noteID, ownerID); err != nil {
		return nil, err
	}
	return s.versions.ListByNote(ctx, noteID, ownerID, limit)
}

// GetVersion fetches one version scoped to note and owner.
func (s *NoteServiceImpl) GetVersion(ctx context.Context, ownerID, noteID, versionID uuid.UUID) (*model.Version, error) {
	if ownerID == uuid.Nil || noteID == uuid.Nil || versionID == uuid.Nil {
		return nil, errors.New("validation: empty id")
	}
	return s.versions.FindByID(ctx, versionID, noteID, ownerID)
}

// Rollback restores a note from a historical version.
func (s *NoteServiceImpl) Rollback(ctx context.Context, ownerID, noteID, versionID uuid.UUID) (*model.Note, error) {
	if ownerID == uuid.Nil || noteID == uuid.Nil || versionID == uuid.Nil {
		return nil, errors.New("validation: empty id")
	}
	return s.notes.RollbackToVersion(ctx, ownerID, noteID, versionID, s.now())
}
