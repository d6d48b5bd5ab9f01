// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Event tags the operation that produced a version snapshot.
type Event string

// Snapshot event tags. A version records the note state that the tagged
// operation superseded.
const (
	EventUpdate   Event = "update"
	EventDelete   Event = "delete"
	EventRollback Event = "rollback"
)

// Note is the canonical current state of a note. Timestamps are epoch
// seconds; DeletedAt is nil while the note is active.
type Note struct {
	ID        uuid.UUID // UUIDv7, creation-time sortable
	OwnerID   uuid.UUID // FK -> users.id, never changes
	Title     string
	Body      string
	CreatedAt int64
	UpdatedAt int64
	DeletedAt *int64 // non-nil means soft-deleted
}

// Active reports whether the note is visible to normal flows.
func (n *Note) Active() bool { return n.DeletedAt == nil }

// Version is an immutable historical snapshot of a note, written before
// every mutation of the note it belongs to.
type Version struct {
	ID      uuid.UUID
	NoteID  uuid.UUID
	OwnerID uuid.UUID // denormalized for isolation checks
	Seq     int64     // per-note, starts at 1, strictly increasing
	Title   string
	Body    string
	// SourceUpdatedAt is the note's updated_at at the moment the
	// snapshot was taken.
	SourceUpdatedAt int64
	CreatedAt       int64
	Event           Event
}

// User represents an account. Passwords are stored as Argon2id hashes.
type User struct {
	ID         uuid.UUID
	Email      string // unique, lowercased
	PwdHash    []byte
	SaltAuth   []byte // per-user auth salt
	CreatedAt  int64
	UpdatedAt  int64
	DisabledAt *int64 // non-nil accounts cannot log in
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// APIToken is a personal access token; only its hash is stored.
type APIToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	TokenHash  []byte
	Scopes     string // comma-separated, e.g. "notes:read,notes:write"
	CreatedAt  int64
	LastUsedAt *int64
	RevokedAt  *int64
}
