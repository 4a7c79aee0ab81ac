// Package saved is the bookmark relation between users and notes.
package saved

import (
	"context"
	"errors"
	"time"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

var (
	// FaultNoteNotFound signals the target note is absent.
	FaultNoteNotFound = fault.NotFound("NoteNotFound", "note not found")
	// FaultAlreadySaved signals the (user, note) pair already exists.
	FaultAlreadySaved = fault.Conflict("AlreadySaved", "note already saved")
	// FaultNotSaved signals an unsave for a pair that does not exist.
	FaultNotSaved = fault.NotFound("NotSaved", "note is not saved")
)

// IndexConfig describes the index dependencies.
type IndexConfig struct {
	Store storage.Store
	Clock func() time.Time
}

// Index provides idempotency-aware save/unsave over the store.
type Index struct {
	store storage.Store
	clock func() time.Time
}

// NewIndex constructs an Index.
func NewIndex(cfg IndexConfig) (*Index, error) {
	if cfg.Store == nil {
		return nil, errors.New("saved: store required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Index{store: cfg.Store, clock: clock}, nil
}

// Save records the bookmark. A repeat save is a conflict carrying the
// original savedAt, not a silent no-op; the store's composite key keeps
// two racing saves from both succeeding.
func (i *Index) Save(ctx context.Context, userID, noteID string) (*storage.SavedNote, error) {
	if _, err := i.store.NoteByID(ctx, noteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, FaultNoteNotFound
		}
		return nil, fault.Unavailable(err)
	}

	row := &storage.SavedNote{UserID: userID, NoteID: noteID, SavedAt: i.clock().UTC()}
	if err := i.store.CreateSavedNote(ctx, row); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			if existing, lookupErr := i.store.SavedNoteByPair(ctx, userID, noteID); lookupErr == nil {
				return existing, FaultAlreadySaved
			}
			return nil, FaultAlreadySaved
		}
		return nil, fault.Unavailable(err)
	}
	return row, nil
}

// Unsave removes the bookmark entirely; a later save creates a fresh
// savedAt.
func (i *Index) Unsave(ctx context.Context, userID, noteID string) error {
	if err := i.store.DeleteSavedNote(ctx, userID, noteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return FaultNotSaved
		}
		return fault.Unavailable(err)
	}
	return nil
}

// IsSaved never fails: an absent pair, note, or credential resolves to
// false.
func (i *Index) IsSaved(ctx context.Context, userID, noteID string) bool {
	if userID == "" || noteID == "" {
		return false
	}
	_, err := i.store.SavedNoteByPair(ctx, userID, noteID)
	return err == nil
}

// SavedEntry joins a bookmark with its note.
type SavedEntry struct {
	Note    storage.Note
	SavedAt time.Time
}

// List returns the caller's bookmarks, newest first, dropping rows
// whose note has since been deleted.
func (i *Index) List(ctx context.Context, userID string) ([]SavedEntry, error) {
	rows, err := i.store.ListSavedByUser(ctx, userID)
	if err != nil {
		return nil, fault.Unavailable(err)
	}
	entries := make([]SavedEntry, 0, len(rows))
	for _, row := range rows {
		note, err := i.store.NoteByID(ctx, row.NoteID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fault.Unavailable(err)
		}
		entries = append(entries, SavedEntry{Note: *note, SavedAt: row.SavedAt})
	}
	return entries, nil
}
