package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// GormStore is the durable Store adapter. It works against any GORM
// dialect the service opens (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open GORM handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func mapGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	// Fallback for dialects without error translation enabled.
	text := err.Error()
	if strings.Contains(text, "UNIQUE constraint failed") || strings.Contains(text, "duplicate key value") {
		return ErrDuplicateKey
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, user *User) error {
	return mapGormError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) UserByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &user, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &user, nil
}

func (s *GormStore) UpdateUserProfile(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddUserCounters applies the delta in a single UPDATE so concurrent
// requests never lose increments. Reputation and notes_uploaded are
// clamped at zero in SQL; the CASE form is portable across dialects.
func (s *GormStore) AddUserCounters(ctx context.Context, id string, delta UserCounterDelta) error {
	updates := map[string]any{}
	if delta.TotalViews != 0 {
		updates["total_views"] = clampedAdd("total_views", delta.TotalViews)
	}
	if delta.TotalDownloads != 0 {
		updates["total_downloads"] = clampedAdd("total_downloads", delta.TotalDownloads)
	}
	if delta.NotesUploaded != 0 {
		updates["notes_uploaded"] = clampedAdd("notes_uploaded", delta.NotesUploaded)
	}
	if delta.Reputation != 0 {
		updates["reputation"] = clampedAdd("reputation", delta.Reputation)
	}
	if len(updates) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func clampedAdd(column string, delta int64) any {
	return gorm.Expr(
		"CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END",
		delta, delta,
	)
}

func (s *GormStore) ListUploaders(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Where("notes_uploaded > 0").Find(&users).Error; err != nil {
		return nil, mapGormError(err)
	}
	return users, nil
}

func (s *GormStore) CreateNote(ctx context.Context, note *Note) error {
	return mapGormError(s.db.WithContext(ctx).Create(note).Error)
}

func (s *GormStore) NoteByID(ctx context.Context, id string) (*Note, error) {
	var note Note
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&note).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &note, nil
}

func (s *GormStore) NoteByUniqueKey(ctx context.Context, title, subject string, semester int) (*Note, error) {
	var note Note
	err := s.db.WithContext(ctx).
		Where("title = ? AND subject = ? AND semester = ?", title, subject, semester).
		Take(&note).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &note, nil
}

func (s *GormStore) UpdateNote(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&Note{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteNote(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Note{})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListNotes(ctx context.Context, filter NoteFilter, page, limit int) ([]Note, int64, error) {
	query := s.db.WithContext(ctx).Model(&Note{})
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.Semester != 0 {
		query = query.Where("semester = ?", filter.Semester)
	}
	if filter.Branch != "" {
		query = query.Where("branch = ?", filter.Branch)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapGormError(err)
	}

	var notes []Note
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, 0, mapGormError(err)
	}
	return notes, total, nil
}

func (s *GormStore) AddNoteCounters(ctx context.Context, id string, delta NoteCounterDelta) error {
	updates := map[string]any{}
	if delta.Views != 0 {
		updates["views"] = clampedAdd("views", delta.Views)
	}
	if delta.Downloads != 0 {
		updates["downloads"] = clampedAdd("downloads", delta.Downloads)
	}
	if delta.Upvotes != 0 {
		updates["upvotes"] = clampedAdd("upvotes", delta.Upvotes)
	}
	if delta.Downvotes != 0 {
		updates["downvotes"] = clampedAdd("downvotes", delta.Downvotes)
	}
	if len(updates) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&Note{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateSavedNote(ctx context.Context, saved *SavedNote) error {
	return mapGormError(s.db.WithContext(ctx).Create(saved).Error)
}

func (s *GormStore) SavedNoteByPair(ctx context.Context, userID, noteID string) (*SavedNote, error) {
	var saved SavedNote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Take(&saved).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &saved, nil
}

func (s *GormStore) DeleteSavedNote(ctx context.Context, userID, noteID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Delete(&SavedNote{})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListSavedByUser(ctx context.Context, userID string) ([]SavedNote, error) {
	var saved []SavedNote
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("saved_at DESC").
		Find(&saved).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return saved, nil
}

func (s *GormStore) DeleteSavedByNote(ctx context.Context, noteID string) error {
	return mapGormError(s.db.WithContext(ctx).Where("note_id = ?", noteID).Delete(&SavedNote{}).Error)
}

func (s *GormStore) VoteByPair(ctx context.Context, userID, noteID string) (*Vote, error) {
	var vote Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Take(&vote).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &vote, nil
}

func (s *GormStore) CreateVote(ctx context.Context, vote *Vote) error {
	return mapGormError(s.db.WithContext(ctx).Create(vote).Error)
}

func (s *GormStore) UpdateVoteType(ctx context.Context, userID, noteID string, voteType VoteType) error {
	result := s.db.WithContext(ctx).Model(&Vote{}).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Update("vote_type", voteType)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteVote(ctx context.Context, userID, noteID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Delete(&Vote{})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteVotesByNote(ctx context.Context, noteID string) error {
	return mapGormError(s.db.WithContext(ctx).Where("note_id = ?", noteID).Delete(&Vote{}).Error)
}

// Transact runs fn inside a database transaction; the adapter passed to
// fn shares the transaction handle so all writes commit together.
func (s *GormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
