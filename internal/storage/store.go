// Package storage defines the persistence abstraction the catalog runs
// on. Two adapters implement the Store interface with identical
// observable semantics: a GORM-backed durable adapter and an in-process
// fallback used when no durable store is reachable at startup. Call
// sites never branch on which adapter is active.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a well-formed key with no matching record.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicateKey signals a uniqueness-constraint violation.
	ErrDuplicateKey = errors.New("storage: duplicate key")
)

// NoteFilter narrows ListNotes. Zero values mean "any".
type NoteFilter struct {
	Subject  string
	Semester int
	Branch   string
}

// UserCounterDelta adjusts user aggregates atomically. Reputation and
// NotesUploaded are clamped at zero by the adapters.
type UserCounterDelta struct {
	TotalViews     int64
	TotalDownloads int64
	NotesUploaded  int64
	Reputation     int64
}

// NoteCounterDelta adjusts note engagement counters atomically, clamped
// at zero.
type NoteCounterDelta struct {
	Views     int64
	Downloads int64
	Upvotes   int64
	Downvotes int64
}

// Store is the capability surface shared by the durable and fallback
// adapters. All counter mutations are atomic read-modify-write inside
// the adapter; callers never load-then-store counters.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserProfile(ctx context.Context, id string, fields map[string]any) error
	AddUserCounters(ctx context.Context, id string, delta UserCounterDelta) error
	ListUploaders(ctx context.Context) ([]User, error)

	// Notes
	CreateNote(ctx context.Context, note *Note) error
	NoteByID(ctx context.Context, id string) (*Note, error)
	NoteByUniqueKey(ctx context.Context, title, subject string, semester int) (*Note, error)
	UpdateNote(ctx context.Context, id string, fields map[string]any) error
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, filter NoteFilter, page, limit int) ([]Note, int64, error)
	AddNoteCounters(ctx context.Context, id string, delta NoteCounterDelta) error

	// Saved notes
	CreateSavedNote(ctx context.Context, saved *SavedNote) error
	SavedNoteByPair(ctx context.Context, userID, noteID string) (*SavedNote, error)
	DeleteSavedNote(ctx context.Context, userID, noteID string) error
	ListSavedByUser(ctx context.Context, userID string) ([]SavedNote, error)
	DeleteSavedByNote(ctx context.Context, noteID string) error

	// Votes
	VoteByPair(ctx context.Context, userID, noteID string) (*Vote, error)
	CreateVote(ctx context.Context, vote *Vote) error
	UpdateVoteType(ctx context.Context, userID, noteID string, voteType VoteType) error
	DeleteVote(ctx context.Context, userID, noteID string) error
	DeleteVotesByNote(ctx context.Context, noteID string) error

	// Transact runs fn against a store view whose writes commit together.
	// The fallback adapter serializes transactions behind its lock.
	Transact(ctx context.Context, fn func(Store) error) error
}
