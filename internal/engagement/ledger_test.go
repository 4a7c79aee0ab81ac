package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyshelf/studyshelf/internal/storage"
)

func mustLedger(t *testing.T, store storage.Store) *Ledger {
	t.Helper()
	ledger, err := NewLedger(LedgerConfig{Store: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ledger
}

func mustSeedNote(t *testing.T, store storage.Store) (*storage.User, *storage.Note) {
	t.Helper()
	ctx := context.Background()
	owner := &storage.User{
		ID:           uuid.NewString(),
		Name:         "asha",
		Email:        "asha@campus.test",
		PasswordHash: "x",
		Role:         storage.RoleStudent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(ctx, owner); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	note := &storage.Note{
		ID:          uuid.NewString(),
		Title:       "Signals and Systems",
		Subject:     "Electrical Engineering",
		Semester:    4,
		Description: "d",
		BlobID:      "blob-1",
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		IsApproved:  true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateNote(ctx, note); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return owner, note
}

func mustNoteCounters(t *testing.T, store storage.Store, noteID string) (int64, int64) {
	t.Helper()
	note, err := store.NoteByID(context.Background(), noteID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return note.Upvotes, note.Downvotes
}

func mustReputation(t *testing.T, store storage.Store, userID string) int64 {
	t.Helper()
	user, err := store.UserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return user.Reputation
}

func TestRecordViewBumpsNoteAndOwner(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	ctx := context.Background()

	if err := ledger.RecordView(ctx, note.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ledger.RecordView(ctx, note.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := store.NoteByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Views != 2 {
		t.Fatalf("expected 2 views, got %d", updated.Views)
	}
	user, err := store.UserByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.TotalViews != 2 {
		t.Fatalf("expected owner totalViews 2, got %d", user.TotalViews)
	}
}

func TestRecordDownloadSurvivesDeletedOwner(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	_, note := mustSeedNote(t, store)
	ctx := context.Background()

	orphan := &storage.Note{
		ID:          uuid.NewString(),
		Title:       "Orphaned",
		Subject:     "History",
		Semester:    1,
		Description: "d",
		BlobID:      "blob-2",
		OwnerID:     uuid.NewString(),
		OwnerName:   "gone",
		IsApproved:  true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateNote(ctx, orphan); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	if err := ledger.RecordDownload(ctx, orphan.ID); err != nil {
		t.Fatalf("deleted owner must not fail the download: %v", err)
	}
	if err := ledger.RecordDownload(ctx, note.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecordInteractionOnAbsentNote(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)

	if err := ledger.RecordView(context.Background(), uuid.NewString()); !errors.Is(err, FaultNoteNotFound) {
		t.Fatalf("expected FaultNoteNotFound, got %v", err)
	}
}

func TestRecordVoteRejectsUnknownType(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	_, note := mustSeedNote(t, store)

	if _, err := ledger.RecordVote(context.Background(), uuid.NewString(), note.ID, "sideways"); !errors.Is(err, FaultInvalidVoteType) {
		t.Fatalf("expected FaultInvalidVoteType, got %v", err)
	}
}

func TestRecordVoteGrantsReputation(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	voter := uuid.NewString()

	counters, err := ledger.RecordVote(context.Background(), voter, note.ID, storage.VoteUpvote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters.Upvotes != 1 || counters.Downvotes != 0 || counters.Removed {
		t.Fatalf("unexpected counters: %+v", counters)
	}
	if got := mustReputation(t, store, owner.ID); got != ReputationPerUpvote {
		t.Fatalf("expected reputation %d, got %d", ReputationPerUpvote, got)
	}
}

func TestRecordVoteSameTypeTwiceNetsZero(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	voter := uuid.NewString()
	ctx := context.Background()

	if _, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteUpvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counters, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteUpvote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !counters.Removed {
		t.Fatalf("expected toggle-off to report removal")
	}
	if up, down := mustNoteCounters(t, store, note.ID); up != 0 || down != 0 {
		t.Fatalf("expected counters back to zero, got %d/%d", up, down)
	}
	if got := mustReputation(t, store, owner.ID); got != 0 {
		t.Fatalf("expected reputation back to zero, got %d", got)
	}
	if _, err := store.VoteByPair(ctx, voter, note.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected vote row withdrawn, got %v", err)
	}
}

func TestRecordVoteFlipAdjustsBothCounters(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	voter := uuid.NewString()
	ctx := context.Background()

	if _, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteUpvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counters, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteDownvote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters.Upvotes != 0 || counters.Downvotes != 1 || counters.Removed {
		t.Fatalf("unexpected counters after flip: %+v", counters)
	}
	if got := mustReputation(t, store, owner.ID); got != 0 {
		t.Fatalf("expected reputation net zero after flip, got %d", got)
	}

	vote, err := store.VoteByPair(ctx, voter, note.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vote.Type != storage.VoteDownvote {
		t.Fatalf("expected vote row flipped, got %q", vote.Type)
	}
}

func TestRecordVoteReputationClampsAtZero(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	ctx := context.Background()

	// Upvote then flip to downvote: the flip subtracts the earlier
	// grant. A second flip cycle must not push reputation below zero.
	voter := uuid.NewString()
	if _, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteUpvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteDownvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ledger.RecordVote(ctx, voter, note.ID, storage.VoteDownvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustReputation(t, store, owner.ID); got != 0 {
		t.Fatalf("expected reputation clamped at zero, got %d", got)
	}
}

func TestVotesFromTwoUsersAccumulate(t *testing.T) {
	store := storage.NewMemoryStore(time.Now)
	ledger := mustLedger(t, store)
	owner, note := mustSeedNote(t, store)
	ctx := context.Background()

	if _, err := ledger.RecordVote(ctx, uuid.NewString(), note.ID, storage.VoteUpvote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counters, err := ledger.RecordVote(ctx, uuid.NewString(), note.ID, storage.VoteUpvote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters.Upvotes != 2 {
		t.Fatalf("expected 2 upvotes, got %d", counters.Upvotes)
	}
	if got := mustReputation(t, store, owner.ID); got != 2*ReputationPerUpvote {
		t.Fatalf("expected reputation %d, got %d", 2*ReputationPerUpvote, got)
	}
}

// raceVoteStore makes the caller's first vote transaction lose an
// insert race: an identical vote from the same pair commits first and
// the caller's attempt surfaces ErrDuplicateKey. Later transactions
// pass through.
type raceVoteStore struct {
	storage.Store
	winner func(storage.Store) error
	raced  bool
}

func (s *raceVoteStore) Transact(ctx context.Context, fn func(storage.Store) error) error {
	if s.raced {
		return s.Store.Transact(ctx, fn)
	}
	s.raced = true
	if err := s.Store.Transact(ctx, s.winner); err != nil {
		return err
	}
	return storage.ErrDuplicateKey
}

func TestRecordVoteRetriesLostInsertRaceAsToggle(t *testing.T) {
	mem := storage.NewMemoryStore(time.Now)
	owner, note := mustSeedNote(t, mem)
	ctx := context.Background()
	voterID := uuid.NewString()

	store := &raceVoteStore{
		Store: mem,
		winner: func(tx storage.Store) error {
			if err := tx.CreateVote(ctx, &storage.Vote{
				UserID:    voterID,
				NoteID:    note.ID,
				Type:      storage.VoteUpvote,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
			if err := tx.AddNoteCounters(ctx, note.ID, storage.NoteCounterDelta{Upvotes: 1}); err != nil {
				return err
			}
			return tx.AddUserCounters(ctx, owner.ID, storage.UserCounterDelta{Reputation: ReputationPerUpvote})
		},
	}
	ledger := mustLedger(t, store)

	counters, err := ledger.RecordVote(ctx, voterID, note.ID, storage.VoteUpvote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !counters.Removed {
		t.Fatalf("expected the retried vote to withdraw the winning duplicate")
	}
	if counters.Upvotes != 0 || counters.Downvotes != 0 {
		t.Fatalf("expected counters 0/0, got %d/%d", counters.Upvotes, counters.Downvotes)
	}
	if _, err := mem.VoteByPair(ctx, voterID, note.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected vote row withdrawn, got %v", err)
	}
	if got := mustReputation(t, mem, owner.ID); got != 0 {
		t.Fatalf("expected reputation 0, got %d", got)
	}
}
