package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&User{}, &Note{}, &SavedNote{}, &Vote{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStore(db)
}

// forEachStore runs the same assertions against the durable and the
// fallback adapter; the two must be interchangeable.
func forEachStore(t *testing.T, run func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		run(t, NewMemoryStore(time.Now))
	})
	t.Run("sqlite", func(t *testing.T) {
		run(t, openSQLiteStore(t))
	})
}

func seedUser(t *testing.T, store Store, email string) *User {
	t.Helper()
	user := &User{
		ID:           uuid.NewString(),
		Name:         "asha",
		Email:        email,
		PasswordHash: "x",
		Role:         RoleStudent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedNote(t *testing.T, store Store, ownerID, title string, semester int) *Note {
	t.Helper()
	note := &Note{
		ID:          uuid.NewString(),
		Title:       title,
		Subject:     "Mathematics",
		Semester:    semester,
		Description: "d",
		BlobID:      "blob-1",
		OwnerID:     ownerID,
		OwnerName:   "asha",
		IsApproved:  true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateNote(context.Background(), note); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return note
}

func TestUserEmailUniqueness(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		seedUser(t, store, "asha@campus.test")
		duplicate := &User{
			ID:           uuid.NewString(),
			Name:         "other",
			Email:        "asha@campus.test",
			PasswordHash: "x",
			Role:         RoleStudent,
		}
		if err := store.CreateUser(context.Background(), duplicate); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})
}

func TestNoteTupleUniqueness(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		owner := seedUser(t, store, "asha@campus.test")
		seedNote(t, store, owner.ID, "Linear Algebra", 2)

		clash := &Note{
			ID:          uuid.NewString(),
			Title:       "Linear Algebra",
			Subject:     "Mathematics",
			Semester:    2,
			Description: "different body",
			BlobID:      "blob-2",
			OwnerID:     owner.ID,
			OwnerName:   "asha",
			IsApproved:  true,
		}
		if err := store.CreateNote(context.Background(), clash); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}

		clash.ID = uuid.NewString()
		clash.Semester = 3
		if err := store.CreateNote(context.Background(), clash); err != nil {
			t.Fatalf("different semester must not collide: %v", err)
		}
	})
}

func TestCountersClampAtZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		user := seedUser(t, store, "asha@campus.test")
		note := seedNote(t, store, user.ID, "Linear Algebra", 2)

		if err := store.AddNoteCounters(ctx, note.ID, NoteCounterDelta{Upvotes: -3}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		loaded, err := store.NoteByID(ctx, note.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loaded.Upvotes != 0 {
			t.Fatalf("expected upvotes clamped at 0, got %d", loaded.Upvotes)
		}

		if err := store.AddUserCounters(ctx, user.ID, UserCounterDelta{Reputation: -10}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.AddUserCounters(ctx, user.ID, UserCounterDelta{Reputation: 5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		updated, err := store.UserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Reputation != 5 {
			t.Fatalf("expected reputation 5 after clamp, got %d", updated.Reputation)
		}
	})
}

func TestCounterUpdateOnAbsentRow(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.AddNoteCounters(ctx, uuid.NewString(), NoteCounterDelta{Views: 1}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.AddUserCounters(ctx, uuid.NewString(), UserCounterDelta{TotalViews: 1}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListNotesFiltersAndOrders(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")
		base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			note := &Note{
				ID:          uuid.NewString(),
				Title:       fmt.Sprintf("Note %d", i),
				Subject:     "Mathematics",
				Semester:    2,
				Description: "d",
				BlobID:      "blob-1",
				OwnerID:     owner.ID,
				OwnerName:   "asha",
				IsApproved:  true,
				CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			}
			if err := store.CreateNote(ctx, note); err != nil {
				t.Fatalf("seed note %d: %v", i, err)
			}
		}
		other := seedNote(t, store, owner.ID, "History of Science", 2)
		if err := store.UpdateNote(ctx, other.ID, map[string]any{"subject": "History"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		notes, total, err := store.ListNotes(ctx, NoteFilter{Subject: "Mathematics"}, 1, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 5 {
			t.Fatalf("expected total 5, got %d", total)
		}
		if len(notes) != 3 {
			t.Fatalf("expected 3 notes on page, got %d", len(notes))
		}
		if notes[0].Title != "Note 4" {
			t.Fatalf("expected newest first, got %q", notes[0].Title)
		}

		second, _, err := store.ListNotes(ctx, NoteFilter{Subject: "Mathematics"}, 2, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(second) != 2 {
			t.Fatalf("expected 2 notes on the last page, got %d", len(second))
		}

		empty, total, err := store.ListNotes(ctx, NoteFilter{Subject: "Mathematics"}, 3, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(empty) != 0 || total != 5 {
			t.Fatalf("page past the end must be empty with total intact, got %d/%d", len(empty), total)
		}
	})
}

func TestUpdateAndDeleteSignalAbsence(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.UpdateNote(ctx, uuid.NewString(), map[string]any{"title": "x"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteNote(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteSavedNote(ctx, uuid.NewString(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteVote(ctx, uuid.NewString(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateNoteIntoExistingTuple(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")
		seedNote(t, store, owner.ID, "Linear Algebra", 2)
		victim := seedNote(t, store, owner.ID, "Real Analysis", 2)

		err := store.UpdateNote(ctx, victim.ID, map[string]any{"title": "Linear Algebra"})
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})
}

func TestSavedNotePairSemantics(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")
		note := seedNote(t, store, owner.ID, "Linear Algebra", 2)
		userID := uuid.NewString()

		row := &SavedNote{UserID: userID, NoteID: note.ID, SavedAt: time.Now().UTC()}
		if err := store.CreateSavedNote(ctx, row); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.CreateSavedNote(ctx, &SavedNote{UserID: userID, NoteID: note.ID, SavedAt: time.Now().UTC()}); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}

		// Same note saved by a different user is a distinct pair.
		if err := store.CreateSavedNote(ctx, &SavedNote{UserID: uuid.NewString(), NoteID: note.ID, SavedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := store.DeleteSavedByNote(ctx, note.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.SavedNoteByPair(ctx, userID, note.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected cascade to clear pairs, got %v", err)
		}
	})
}

func TestVoteLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")
		note := seedNote(t, store, owner.ID, "Linear Algebra", 2)
		userID := uuid.NewString()

		if err := store.CreateVote(ctx, &Vote{UserID: userID, NoteID: note.ID, Type: VoteUpvote}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.CreateVote(ctx, &Vote{UserID: userID, NoteID: note.ID, Type: VoteDownvote}); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}

		if err := store.UpdateVoteType(ctx, userID, note.ID, VoteDownvote); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vote, err := store.VoteByPair(ctx, userID, note.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if vote.Type != VoteDownvote {
			t.Fatalf("expected flipped vote, got %q", vote.Type)
		}

		if err := store.DeleteVote(ctx, userID, note.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.VoteByPair(ctx, userID, note.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTransactRollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")

		failure := errors.New("boom")
		err := store.Transact(ctx, func(tx Store) error {
			if err := tx.CreateNote(ctx, &Note{
				ID:          uuid.NewString(),
				Title:       "Doomed",
				Subject:     "Mathematics",
				Semester:    1,
				Description: "d",
				BlobID:      "blob-9",
				OwnerID:     owner.ID,
				OwnerName:   "asha",
				IsApproved:  true,
			}); err != nil {
				return err
			}
			if err := tx.AddUserCounters(ctx, owner.ID, UserCounterDelta{NotesUploaded: 1}); err != nil {
				return err
			}
			return failure
		})
		if !errors.Is(err, failure) {
			t.Fatalf("expected the inner error, got %v", err)
		}

		if _, err := store.NoteByUniqueKey(ctx, "Doomed", "Mathematics", 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected rollback to remove the note, got %v", err)
		}
		user, err := store.UserByID(ctx, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.NotesUploaded != 0 {
			t.Fatalf("expected rollback to revert the counter, got %d", user.NotesUploaded)
		}
	})
}

func TestTransactCommits(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")

		err := store.Transact(ctx, func(tx Store) error {
			if err := tx.CreateNote(ctx, &Note{
				ID:          uuid.NewString(),
				Title:       "Kept",
				Subject:     "Mathematics",
				Semester:    1,
				Description: "d",
				BlobID:      "blob-9",
				OwnerID:     owner.ID,
				OwnerName:   "asha",
				IsApproved:  true,
			}); err != nil {
				return err
			}
			return tx.AddUserCounters(ctx, owner.ID, UserCounterDelta{NotesUploaded: 1})
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := store.NoteByUniqueKey(ctx, "Kept", "Mathematics", 1); err != nil {
			t.Fatalf("expected committed note, got %v", err)
		}
		user, err := store.UserByID(ctx, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.NotesUploaded != 1 {
			t.Fatalf("expected committed counter, got %d", user.NotesUploaded)
		}
	})
}

func TestCounterIncrementsAreAtomicUnderConcurrency(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := seedUser(t, store, "asha@campus.test")
		note := seedNote(t, store, owner.ID, "Linear Algebra", 2)

		const workers = 8
		const bumpsPerWorker = 25

		var wg sync.WaitGroup
		errCh := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < bumpsPerWorker; j++ {
					if err := store.AddNoteCounters(ctx, note.ID, NoteCounterDelta{Views: 1, Upvotes: 1}); err != nil {
						errCh <- err
						return
					}
					if err := store.AddUserCounters(ctx, owner.ID, UserCounterDelta{TotalViews: 1}); err != nil {
						errCh <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			t.Fatalf("concurrent bump: %v", err)
		}

		const want = workers * bumpsPerWorker
		updated, err := store.NoteByID(ctx, note.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Views != want || updated.Upvotes != want {
			t.Fatalf("expected views/upvotes %d/%d, got %d/%d", want, want, updated.Views, updated.Upvotes)
		}
		uploader, err := store.UserByID(ctx, owner.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if uploader.TotalViews != want {
			t.Fatalf("expected totalViews %d, got %d", want, uploader.TotalViews)
		}
	})
}
