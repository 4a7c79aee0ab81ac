// Package catalog validates note submissions and orchestrates their
// lifecycle over the persistence abstraction. It owns the validation
// pipeline, duplicate detection, and the create/update/delete cascades.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/identity"
	"github.com/studyshelf/studyshelf/internal/storage"
)

var (
	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()
)

// ViewRecorder is consulted when a note is read.
type ViewRecorder interface {
	RecordView(ctx context.Context, noteID string) error
}

// BlobReleaser frees stored file bytes when a note with an internal
// reference is deleted.
type BlobReleaser interface {
	Remove(ctx context.Context, blobID string) error
}

// ServiceConfig describes the catalog dependencies.
type ServiceConfig struct {
	Store  storage.Store
	Views  ViewRecorder
	Blobs  BlobReleaser
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service is the note catalog.
type Service struct {
	store  storage.Store
	views  ViewRecorder
	blobs  BlobReleaser
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the catalog.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:  cfg.Store,
		views:  cfg.Views,
		blobs:  cfg.Blobs,
		clock:  clock,
		logger: logger,
	}, nil
}

// Create validates the payload, enforces tuple uniqueness, persists the
// note with the owner's name denormalized, and bumps the owner's
// notesUploaded inside one transaction. The unique index is the
// authority on duplicates; the racing loser of two identical creates
// observes DuplicateTitle, not a generic failure.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*storage.Note, error) {
	fields, err := validateCreate(in)
	if err != nil {
		return nil, err
	}

	owner, err := s.store.UserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, identity.FaultUserNotFound
		}
		return nil, fault.Unavailable(err)
	}

	note := &storage.Note{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Subject:     fields.Subject,
		Semester:    fields.Semester,
		Branch:      fields.Branch,
		BlobID:      fields.BlobID,
		ExternalURL: fields.ExternalURL,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		IsApproved:  true,
		CreatedAt:   s.clock().UTC(),
	}

	err = s.store.Transact(ctx, func(tx storage.Store) error {
		if err := tx.CreateNote(ctx, note); err != nil {
			return err
		}
		return tx.AddUserCounters(ctx, owner.ID, storage.UserCounterDelta{NotesUploaded: 1})
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, FaultDuplicateTitle
		}
		s.logError("catalog.create", "note_insert_failed", err, zap.String("owner_id", ownerID))
		return nil, fault.Unavailable(err)
	}
	return note, nil
}

// Get loads a note by id and records the view. The view bump is
// best-effort and never fails the read.
func (s *Service) Get(ctx context.Context, noteID string) (*storage.Note, error) {
	note, err := s.loadNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if s.views != nil {
		if err := s.views.RecordView(ctx, note.ID); err != nil {
			s.logError("catalog.get", "view_record_failed", err, zap.String("note_id", note.ID))
		} else {
			note.Views++
		}
	}
	return note, nil
}

// Peek loads a note without recording a view; the download path uses
// it so a download does not double as a view.
func (s *Service) Peek(ctx context.Context, noteID string) (*storage.Note, error) {
	return s.loadNote(ctx, noteID)
}

// UpdateInput is the partial update payload; nil fields are absent.
// Read-only fields never appear here: the transport drops them.
type UpdateInput struct {
	Title       any
	Description any
	Subject     any
	Semester    any
	Branch      any
	BlobID      any
	ExternalURL any
}

// Update applies per-field validation to the present fields only.
func (s *Service) Update(ctx context.Context, requesterID, noteID string, in UpdateInput) (*storage.Note, error) {
	note, err := s.loadNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != requesterID {
		return nil, FaultForbidden
	}

	fields, err := buildUpdateFields(in)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return note, nil
	}

	if err := s.store.UpdateNote(ctx, noteID, fields); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, FaultNoteNotFound
		case errors.Is(err, storage.ErrDuplicateKey):
			return nil, FaultDuplicateTitle
		}
		s.logError("catalog.update", "note_update_failed", err, zap.String("note_id", noteID))
		return nil, fault.Unavailable(err)
	}
	return s.loadNote(ctx, noteID)
}

func buildUpdateFields(in UpdateInput) (map[string]any, error) {
	fields := map[string]any{}

	if in.Title != nil {
		title, ok := asString(in.Title)
		if !ok {
			return nil, FaultInvalidType
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return nil, FaultTitleRequired
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return nil, FaultTitleTooLong
		}
		fields["title"] = title
	}
	if in.Description != nil {
		description, ok := asString(in.Description)
		if !ok {
			return nil, FaultInvalidType
		}
		description = strings.TrimSpace(description)
		if description == "" {
			return nil, FaultDescriptionRequired
		}
		if utf8.RuneCountInString(description) > maxDescriptionLength {
			return nil, FaultDescriptionTooLong
		}
		fields["description"] = description
	}
	if in.Subject != nil {
		subject, ok := asString(in.Subject)
		if !ok {
			return nil, FaultInvalidType
		}
		subject = strings.TrimSpace(subject)
		if subject == "" {
			return nil, FaultSubjectRequired
		}
		fields["subject"] = subject
	}
	if in.Semester != nil {
		semester, ok := parseSemester(in.Semester)
		if !ok {
			return nil, FaultInvalidSemester
		}
		fields["semester"] = semester
	}
	if in.Branch != nil {
		branch, _ := asString(in.Branch)
		fields["branch"] = strings.TrimSpace(branch)
	}
	if in.BlobID != nil {
		blobID, _ := asString(in.BlobID)
		fields["blob_id"] = strings.TrimSpace(blobID)
	}
	if in.ExternalURL != nil {
		externalURL, _ := asString(in.ExternalURL)
		fields["external_url"] = strings.TrimSpace(externalURL)
	}
	return fields, nil
}

// Delete removes a note for its owner or a moderator, cascades the
// saved and vote rows, decrements the owner's notesUploaded, and
// releases the internal blob when one backs the note.
func (s *Service) Delete(ctx context.Context, requester identity.Identity, noteID string) error {
	note, err := s.loadNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note.OwnerID != requester.UserID && !requester.IsAdmin {
		return FaultForbidden
	}

	err = s.store.Transact(ctx, func(tx storage.Store) error {
		if err := tx.DeleteNote(ctx, note.ID); err != nil {
			return err
		}
		if err := tx.DeleteSavedByNote(ctx, note.ID); err != nil {
			return err
		}
		if err := tx.DeleteVotesByNote(ctx, note.ID); err != nil {
			return err
		}
		err := tx.AddUserCounters(ctx, note.OwnerID, storage.UserCounterDelta{NotesUploaded: -1})
		if errors.Is(err, storage.ErrNotFound) {
			// Owner may have been removed already; the note cascade stands.
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return FaultNoteNotFound
		}
		s.logError("catalog.delete", "note_delete_failed", err, zap.String("note_id", noteID))
		return fault.Unavailable(err)
	}

	if note.BlobID != "" && s.blobs != nil {
		if err := s.blobs.Remove(ctx, note.BlobID); err != nil {
			s.logError("catalog.delete", "blob_release_failed", err, zap.String("blob_id", note.BlobID))
		}
	}
	return nil
}

// ListParams narrows and pages the catalog listing.
type ListParams struct {
	Subject  string
	Semester int
	Branch   string
	Page     int
	Limit    int
}

// ListResult carries one page plus the totals for the filtered set.
type ListResult struct {
	Notes      []storage.Note
	Total      int64
	TotalPages int64
	Page       int
	Limit      int
}

// List returns the filtered catalog, most recently created first.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 {
		return ListResult{}, FaultInvalidPage
	}
	if params.Limit < 1 || params.Limit > 100 {
		return ListResult{}, FaultInvalidLimit
	}

	filter := storage.NoteFilter{
		Subject:  strings.TrimSpace(params.Subject),
		Semester: params.Semester,
		Branch:   strings.TrimSpace(params.Branch),
	}
	notes, total, err := s.store.ListNotes(ctx, filter, params.Page, params.Limit)
	if err != nil {
		s.logError("catalog.list", "query_failed", err)
		return ListResult{}, fault.Unavailable(err)
	}

	totalPages := total / int64(params.Limit)
	if total%int64(params.Limit) != 0 {
		totalPages++
	}
	return ListResult{
		Notes:      notes,
		Total:      total,
		TotalPages: totalPages,
		Page:       params.Page,
		Limit:      params.Limit,
	}, nil
}

// Report flags a note for moderation.
func (s *Service) Report(ctx context.Context, noteID, reason string) (*storage.Note, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, FaultReasonRequired
	}
	if _, err := s.loadNote(ctx, noteID); err != nil {
		return nil, err
	}
	fields := map[string]any{"is_reported": true, "report_reason": reason}
	if err := s.store.UpdateNote(ctx, noteID, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, FaultNoteNotFound
		}
		return nil, fault.Unavailable(err)
	}
	return s.loadNote(ctx, noteID)
}

// loadNote distinguishes a malformed identifier (client bug) from a
// well-formed identifier with no record (normal not-found).
func (s *Service) loadNote(ctx context.Context, noteID string) (*storage.Note, error) {
	if _, err := uuid.Parse(noteID); err != nil {
		return nil, FaultInvalidNoteID
	}
	note, err := s.store.NoteByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, FaultNoteNotFound
		}
		return nil, fault.Unavailable(err)
	}
	return note, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error(fmt.Sprintf("%s failed", operation), attrs...)
}
