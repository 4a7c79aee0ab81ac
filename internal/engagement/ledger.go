// Package engagement maintains view/download/vote counters and the
// uploader reputation they accrue. Counter movement happens only here;
// profile updates never touch these fields.
package engagement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

// ReputationPerUpvote is the fixed accrual an upvote grants the note's
// owner. Downvotes grant nothing.
const ReputationPerUpvote = 5

var (
	// FaultNoteNotFound mirrors the catalog's not-found code for interaction events.
	FaultNoteNotFound = fault.NotFound("NoteNotFound", "note not found")
	// FaultInvalidVoteType rejects a vote direction outside {upvote, downvote}.
	FaultInvalidVoteType = fault.Validation("InvalidVoteType", "voteType must be upvote or downvote")
	// FaultVoteConflict signals that the vote row changed concurrently and the
	// caller should resubmit.
	FaultVoteConflict = fault.Conflict("VoteConflict", "vote changed concurrently, retry")

	noOpLogger = zap.NewNop()
)

// LedgerConfig describes the ledger dependencies.
type LedgerConfig struct {
	Store  storage.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Ledger applies engagement events atomically against the store.
type Ledger struct {
	store  storage.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewLedger constructs a Ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, errors.New("engagement: store required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Ledger{store: cfg.Store, clock: clock, logger: logger}, nil
}

// RecordView bumps the note's views and the owner's totalViews. The
// owner bump is best-effort: a deleted owner never fails the view.
func (l *Ledger) RecordView(ctx context.Context, noteID string) error {
	return l.recordInteraction(ctx, noteID,
		storage.NoteCounterDelta{Views: 1},
		storage.UserCounterDelta{TotalViews: 1})
}

// RecordDownload bumps the note's downloads and the owner's totalDownloads.
func (l *Ledger) RecordDownload(ctx context.Context, noteID string) error {
	return l.recordInteraction(ctx, noteID,
		storage.NoteCounterDelta{Downloads: 1},
		storage.UserCounterDelta{TotalDownloads: 1})
}

func (l *Ledger) recordInteraction(ctx context.Context, noteID string, noteDelta storage.NoteCounterDelta, ownerDelta storage.UserCounterDelta) error {
	note, err := l.store.NoteByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return FaultNoteNotFound
		}
		return fault.Unavailable(err)
	}
	if err := l.store.AddNoteCounters(ctx, noteID, noteDelta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return FaultNoteNotFound
		}
		return fault.Unavailable(err)
	}
	if err := l.store.AddUserCounters(ctx, note.OwnerID, ownerDelta); err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Warn("owner counter bump failed",
			zap.String("operation", "engagement.record"),
			zap.String("owner_id", note.OwnerID),
			zap.Error(err))
	}
	return nil
}

// VoteCounters is the post-vote counter state returned to callers.
type VoteCounters struct {
	Upvotes   int64
	Downvotes int64
	// Removed reports toggle-off: the caller's existing vote of the
	// same type was withdrawn rather than a new one recorded.
	Removed bool
}

// RecordVote applies idempotent toggle semantics. Voting the same type
// twice withdraws the vote and reverses its effects; voting the
// opposite type flips both counters and the reputation delta in one
// transaction. Reputation never goes below zero.
func (l *Ledger) RecordVote(ctx context.Context, userID, noteID string, voteType storage.VoteType) (VoteCounters, error) {
	if voteType != storage.VoteUpvote && voteType != storage.VoteDownvote {
		return VoteCounters{}, FaultInvalidVoteType
	}

	// Concurrent first votes from the same pair race on the vote-row
	// insert. The loser reruns the transaction and observes the winner's
	// row, so toggle semantics apply instead of a storage error leaking.
	var counters VoteCounters
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		counters = VoteCounters{}
		err = l.applyVote(ctx, userID, noteID, voteType, &counters)
		if !errors.Is(err, storage.ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return VoteCounters{}, FaultNoteNotFound
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			return VoteCounters{}, FaultVoteConflict
		}
		if f, ok := fault.From(err); ok {
			return VoteCounters{}, f
		}
		l.logger.Error("vote transaction failed",
			zap.String("operation", "engagement.record_vote"),
			zap.String("note_id", noteID),
			zap.Error(err))
		return VoteCounters{}, fault.Unavailable(err)
	}
	return counters, nil
}

func (l *Ledger) applyVote(ctx context.Context, userID, noteID string, voteType storage.VoteType, counters *VoteCounters) error {
	return l.store.Transact(ctx, func(tx storage.Store) error {
		note, err := tx.NoteByID(ctx, noteID)
		if err != nil {
			return err
		}

		existing, err := tx.VoteByPair(ctx, userID, noteID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			existing = nil
		case err != nil:
			return err
		}

		noteDelta := storage.NoteCounterDelta{}
		reputationDelta := int64(0)

		switch {
		case existing == nil:
			if err := tx.CreateVote(ctx, &storage.Vote{
				UserID:    userID,
				NoteID:    noteID,
				Type:      voteType,
				CreatedAt: l.clock().UTC(),
			}); err != nil {
				return err
			}
			noteDelta = voteDelta(voteType, 1)
			if voteType == storage.VoteUpvote {
				reputationDelta = ReputationPerUpvote
			}

		case existing.Type == voteType:
			if err := tx.DeleteVote(ctx, userID, noteID); err != nil {
				return err
			}
			noteDelta = voteDelta(voteType, -1)
			if voteType == storage.VoteUpvote {
				reputationDelta = -ReputationPerUpvote
			}
			counters.Removed = true

		default:
			if err := tx.UpdateVoteType(ctx, userID, noteID, voteType); err != nil {
				return err
			}
			noteDelta = voteDelta(existing.Type, -1)
			incoming := voteDelta(voteType, 1)
			noteDelta.Upvotes += incoming.Upvotes
			noteDelta.Downvotes += incoming.Downvotes
			if voteType == storage.VoteUpvote {
				reputationDelta = ReputationPerUpvote
			} else {
				reputationDelta = -ReputationPerUpvote
			}
		}

		if err := tx.AddNoteCounters(ctx, noteID, noteDelta); err != nil {
			return err
		}
		if reputationDelta != 0 {
			err := tx.AddUserCounters(ctx, note.OwnerID, storage.UserCounterDelta{Reputation: reputationDelta})
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}

		updated, err := tx.NoteByID(ctx, noteID)
		if err != nil {
			return err
		}
		counters.Upvotes = updated.Upvotes
		counters.Downvotes = updated.Downvotes
		return nil
	})
}

func voteDelta(voteType storage.VoteType, direction int64) storage.NoteCounterDelta {
	if voteType == storage.VoteUpvote {
		return storage.NoteCounterDelta{Upvotes: direction}
	}
	return storage.NoteCounterDelta{Downvotes: direction}
}
