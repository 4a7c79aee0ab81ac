package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type pairKey struct {
	userID string
	noteID string
}

// MemoryStore is the in-process fallback adapter. It is a full
// substitute for the durable adapter, not a cache: the same uniqueness
// signalling, the same not-found semantics, the same clamped counters.
// A single mutex serializes every operation, which also closes the
// check-then-insert race the durable adapter closes with unique
// indexes.
type MemoryStore struct {
	mu   sync.Mutex
	core memoryCore
}

type memoryCore struct {
	clock   func() time.Time
	users   map[string]User
	notes   map[string]Note
	saved   map[pairKey]SavedNote
	votes   map[pairKey]Vote
	noteSeq map[string]int64
	seq     int64
}

// NewMemoryStore constructs an empty fallback store.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		core: memoryCore{
			clock:   clock,
			users:   map[string]User{},
			notes:   map[string]Note{},
			saved:   map[pairKey]SavedNote{},
			votes:   map[pairKey]Vote{},
			noteSeq: map[string]int64{},
		},
	}
}

func clampAt0(value, delta int64) int64 {
	if value+delta < 0 {
		return 0
	}
	return value + delta
}

func (c *memoryCore) createUser(user *User) error {
	if _, ok := c.users[user.ID]; ok {
		return ErrDuplicateKey
	}
	for _, existing := range c.users {
		if existing.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = c.clock().UTC()
	}
	c.users[user.ID] = *user
	return nil
}

func (c *memoryCore) userByID(id string) (*User, error) {
	user, ok := c.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (c *memoryCore) userByEmail(email string) (*User, error) {
	for _, user := range c.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCore) updateUserProfile(id string, fields map[string]any) error {
	user, ok := c.users[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range fields {
		switch column {
		case "name":
			user.Name, _ = value.(string)
		case "branch":
			user.Branch, _ = value.(string)
		case "section":
			user.Section, _ = value.(string)
		case "roll_no":
			user.RollNo, _ = value.(string)
		case "password_hash":
			user.PasswordHash, _ = value.(string)
		case "reset_token":
			user.ResetToken, _ = value.(string)
		case "reset_expires_at":
			expiry, _ := value.(*time.Time)
			user.ResetExpiresAt = expiry
		case "is_suspended":
			user.IsSuspended, _ = value.(bool)
		}
	}
	c.users[id] = user
	return nil
}

func (c *memoryCore) addUserCounters(id string, delta UserCounterDelta) error {
	user, ok := c.users[id]
	if !ok {
		return ErrNotFound
	}
	user.TotalViews = clampAt0(user.TotalViews, delta.TotalViews)
	user.TotalDownloads = clampAt0(user.TotalDownloads, delta.TotalDownloads)
	user.NotesUploaded = clampAt0(user.NotesUploaded, delta.NotesUploaded)
	user.Reputation = clampAt0(user.Reputation, delta.Reputation)
	c.users[id] = user
	return nil
}

func (c *memoryCore) listUploaders() []User {
	users := make([]User, 0, len(c.users))
	for _, user := range c.users {
		if user.NotesUploaded > 0 {
			users = append(users, user)
		}
	}
	return users
}

func (c *memoryCore) createNote(note *Note) error {
	if _, ok := c.notes[note.ID]; ok {
		return ErrDuplicateKey
	}
	for _, existing := range c.notes {
		if existing.Title == note.Title && existing.Subject == note.Subject && existing.Semester == note.Semester {
			return ErrDuplicateKey
		}
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = c.clock().UTC()
	}
	c.seq++
	c.noteSeq[note.ID] = c.seq
	c.notes[note.ID] = *note
	return nil
}

func (c *memoryCore) noteByID(id string) (*Note, error) {
	note, ok := c.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := note
	return &copied, nil
}

func (c *memoryCore) noteByUniqueKey(title, subject string, semester int) (*Note, error) {
	for _, note := range c.notes {
		if note.Title == title && note.Subject == subject && note.Semester == semester {
			copied := note
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCore) updateNote(id string, fields map[string]any) error {
	note, ok := c.notes[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range fields {
		switch column {
		case "title":
			note.Title, _ = value.(string)
		case "description":
			note.Description, _ = value.(string)
		case "subject":
			note.Subject, _ = value.(string)
		case "semester":
			semester, _ := value.(int)
			note.Semester = semester
		case "branch":
			note.Branch, _ = value.(string)
		case "blob_id":
			note.BlobID, _ = value.(string)
		case "external_url":
			note.ExternalURL, _ = value.(string)
		case "owner_name":
			note.OwnerName, _ = value.(string)
		case "is_approved":
			note.IsApproved, _ = value.(bool)
		case "is_reported":
			note.IsReported, _ = value.(bool)
		case "report_reason":
			note.ReportReason, _ = value.(string)
		}
	}
	for _, existing := range c.notes {
		if existing.ID == id {
			continue
		}
		if existing.Title == note.Title && existing.Subject == note.Subject && existing.Semester == note.Semester {
			return ErrDuplicateKey
		}
	}
	c.notes[id] = note
	return nil
}

func (c *memoryCore) deleteNote(id string) error {
	if _, ok := c.notes[id]; !ok {
		return ErrNotFound
	}
	delete(c.notes, id)
	delete(c.noteSeq, id)
	return nil
}

func (c *memoryCore) listNotes(filter NoteFilter, page, limit int) ([]Note, int64) {
	matched := make([]Note, 0, len(c.notes))
	for _, note := range c.notes {
		if filter.Subject != "" && note.Subject != filter.Subject {
			continue
		}
		if filter.Semester != 0 && note.Semester != filter.Semester {
			continue
		}
		if filter.Branch != "" && note.Branch != filter.Branch {
			continue
		}
		matched = append(matched, note)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return c.noteSeq[matched[i].ID] > c.noteSeq[matched[j].ID]
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []Note{}, total
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}

func (c *memoryCore) addNoteCounters(id string, delta NoteCounterDelta) error {
	note, ok := c.notes[id]
	if !ok {
		return ErrNotFound
	}
	note.Views = clampAt0(note.Views, delta.Views)
	note.Downloads = clampAt0(note.Downloads, delta.Downloads)
	note.Upvotes = clampAt0(note.Upvotes, delta.Upvotes)
	note.Downvotes = clampAt0(note.Downvotes, delta.Downvotes)
	c.notes[id] = note
	return nil
}

func (c *memoryCore) createSavedNote(saved *SavedNote) error {
	key := pairKey{userID: saved.UserID, noteID: saved.NoteID}
	if _, ok := c.saved[key]; ok {
		return ErrDuplicateKey
	}
	if saved.SavedAt.IsZero() {
		saved.SavedAt = c.clock().UTC()
	}
	c.saved[key] = *saved
	return nil
}

func (c *memoryCore) savedNoteByPair(userID, noteID string) (*SavedNote, error) {
	saved, ok := c.saved[pairKey{userID: userID, noteID: noteID}]
	if !ok {
		return nil, ErrNotFound
	}
	copied := saved
	return &copied, nil
}

func (c *memoryCore) deleteSavedNote(userID, noteID string) error {
	key := pairKey{userID: userID, noteID: noteID}
	if _, ok := c.saved[key]; !ok {
		return ErrNotFound
	}
	delete(c.saved, key)
	return nil
}

func (c *memoryCore) listSavedByUser(userID string) []SavedNote {
	saved := make([]SavedNote, 0)
	for key, row := range c.saved {
		if key.userID == userID {
			saved = append(saved, row)
		}
	}
	sort.Slice(saved, func(i, j int) bool {
		return saved[i].SavedAt.After(saved[j].SavedAt)
	})
	return saved
}

func (c *memoryCore) deleteSavedByNote(noteID string) {
	for key := range c.saved {
		if key.noteID == noteID {
			delete(c.saved, key)
		}
	}
}

func (c *memoryCore) voteByPair(userID, noteID string) (*Vote, error) {
	vote, ok := c.votes[pairKey{userID: userID, noteID: noteID}]
	if !ok {
		return nil, ErrNotFound
	}
	copied := vote
	return &copied, nil
}

func (c *memoryCore) createVote(vote *Vote) error {
	key := pairKey{userID: vote.UserID, noteID: vote.NoteID}
	if _, ok := c.votes[key]; ok {
		return ErrDuplicateKey
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = c.clock().UTC()
	}
	c.votes[key] = *vote
	return nil
}

func (c *memoryCore) updateVoteType(userID, noteID string, voteType VoteType) error {
	key := pairKey{userID: userID, noteID: noteID}
	vote, ok := c.votes[key]
	if !ok {
		return ErrNotFound
	}
	vote.Type = voteType
	c.votes[key] = vote
	return nil
}

func (c *memoryCore) deleteVote(userID, noteID string) error {
	key := pairKey{userID: userID, noteID: noteID}
	if _, ok := c.votes[key]; !ok {
		return ErrNotFound
	}
	delete(c.votes, key)
	return nil
}

func (c *memoryCore) deleteVotesByNote(noteID string) {
	for key := range c.votes {
		if key.noteID == noteID {
			delete(c.votes, key)
		}
	}
}

func (c *memoryCore) snapshot() memoryCore {
	snap := memoryCore{
		clock:   c.clock,
		users:   make(map[string]User, len(c.users)),
		notes:   make(map[string]Note, len(c.notes)),
		saved:   make(map[pairKey]SavedNote, len(c.saved)),
		votes:   make(map[pairKey]Vote, len(c.votes)),
		noteSeq: make(map[string]int64, len(c.noteSeq)),
		seq:     c.seq,
	}
	for key, value := range c.users {
		snap.users[key] = value
	}
	for key, value := range c.notes {
		snap.notes[key] = value
	}
	for key, value := range c.saved {
		snap.saved[key] = value
	}
	for key, value := range c.votes {
		snap.votes[key] = value
	}
	for key, value := range c.noteSeq {
		snap.noteSeq[key] = value
	}
	return snap
}

func (s *MemoryStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.createUser(user)
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.userByID(id)
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.userByEmail(email)
}

func (s *MemoryStore) UpdateUserProfile(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.updateUserProfile(id, fields)
}

func (s *MemoryStore) AddUserCounters(_ context.Context, id string, delta UserCounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.addUserCounters(id, delta)
}

func (s *MemoryStore) ListUploaders(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.listUploaders(), nil
}

func (s *MemoryStore) CreateNote(_ context.Context, note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.createNote(note)
}

func (s *MemoryStore) NoteByID(_ context.Context, id string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.noteByID(id)
}

func (s *MemoryStore) NoteByUniqueKey(_ context.Context, title, subject string, semester int) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.noteByUniqueKey(title, subject, semester)
}

func (s *MemoryStore) UpdateNote(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.updateNote(id, fields)
}

func (s *MemoryStore) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.deleteNote(id)
}

func (s *MemoryStore) ListNotes(_ context.Context, filter NoteFilter, page, limit int) ([]Note, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes, total := s.core.listNotes(filter, page, limit)
	return notes, total, nil
}

func (s *MemoryStore) AddNoteCounters(_ context.Context, id string, delta NoteCounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.addNoteCounters(id, delta)
}

func (s *MemoryStore) CreateSavedNote(_ context.Context, saved *SavedNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.createSavedNote(saved)
}

func (s *MemoryStore) SavedNoteByPair(_ context.Context, userID, noteID string) (*SavedNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.savedNoteByPair(userID, noteID)
}

func (s *MemoryStore) DeleteSavedNote(_ context.Context, userID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.deleteSavedNote(userID, noteID)
}

func (s *MemoryStore) ListSavedByUser(_ context.Context, userID string) ([]SavedNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.listSavedByUser(userID), nil
}

func (s *MemoryStore) DeleteSavedByNote(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.deleteSavedByNote(noteID)
	return nil
}

func (s *MemoryStore) VoteByPair(_ context.Context, userID, noteID string) (*Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.voteByPair(userID, noteID)
}

func (s *MemoryStore) CreateVote(_ context.Context, vote *Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.createVote(vote)
}

func (s *MemoryStore) UpdateVoteType(_ context.Context, userID, noteID string, voteType VoteType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.updateVoteType(userID, noteID, voteType)
}

func (s *MemoryStore) DeleteVote(_ context.Context, userID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.deleteVote(userID, noteID)
}

func (s *MemoryStore) DeleteVotesByNote(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.deleteVotesByNote(noteID)
	return nil
}

// Transact serializes fn behind the store lock and restores a snapshot
// when fn fails, so partial writes never become visible.
func (s *MemoryStore) Transact(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.core.snapshot()
	if err := fn(&memoryTx{core: &s.core}); err != nil {
		s.core = snapshot
		return err
	}
	return nil
}

// memoryTx exposes the Store surface inside Transact without
// re-acquiring the store lock.
type memoryTx struct {
	core *memoryCore
}

func (t *memoryTx) CreateUser(_ context.Context, user *User) error {
	return t.core.createUser(user)
}

func (t *memoryTx) UserByID(_ context.Context, id string) (*User, error) {
	return t.core.userByID(id)
}

func (t *memoryTx) UserByEmail(_ context.Context, email string) (*User, error) {
	return t.core.userByEmail(email)
}

func (t *memoryTx) UpdateUserProfile(_ context.Context, id string, fields map[string]any) error {
	return t.core.updateUserProfile(id, fields)
}

func (t *memoryTx) AddUserCounters(_ context.Context, id string, delta UserCounterDelta) error {
	return t.core.addUserCounters(id, delta)
}

func (t *memoryTx) ListUploaders(_ context.Context) ([]User, error) {
	return t.core.listUploaders(), nil
}

func (t *memoryTx) CreateNote(_ context.Context, note *Note) error {
	return t.core.createNote(note)
}

func (t *memoryTx) NoteByID(_ context.Context, id string) (*Note, error) {
	return t.core.noteByID(id)
}

func (t *memoryTx) NoteByUniqueKey(_ context.Context, title, subject string, semester int) (*Note, error) {
	return t.core.noteByUniqueKey(title, subject, semester)
}

func (t *memoryTx) UpdateNote(_ context.Context, id string, fields map[string]any) error {
	return t.core.updateNote(id, fields)
}

func (t *memoryTx) DeleteNote(_ context.Context, id string) error {
	return t.core.deleteNote(id)
}

func (t *memoryTx) ListNotes(_ context.Context, filter NoteFilter, page, limit int) ([]Note, int64, error) {
	notes, total := t.core.listNotes(filter, page, limit)
	return notes, total, nil
}

func (t *memoryTx) AddNoteCounters(_ context.Context, id string, delta NoteCounterDelta) error {
	return t.core.addNoteCounters(id, delta)
}

func (t *memoryTx) CreateSavedNote(_ context.Context, saved *SavedNote) error {
	return t.core.createSavedNote(saved)
}

func (t *memoryTx) SavedNoteByPair(_ context.Context, userID, noteID string) (*SavedNote, error) {
	return t.core.savedNoteByPair(userID, noteID)
}

func (t *memoryTx) DeleteSavedNote(_ context.Context, userID, noteID string) error {
	return t.core.deleteSavedNote(userID, noteID)
}

func (t *memoryTx) ListSavedByUser(_ context.Context, userID string) ([]SavedNote, error) {
	return t.core.listSavedByUser(userID), nil
}

func (t *memoryTx) DeleteSavedByNote(_ context.Context, noteID string) error {
	t.core.deleteSavedByNote(noteID)
	return nil
}

func (t *memoryTx) VoteByPair(_ context.Context, userID, noteID string) (*Vote, error) {
	return t.core.voteByPair(userID, noteID)
}

func (t *memoryTx) CreateVote(_ context.Context, vote *Vote) error {
	return t.core.createVote(vote)
}

func (t *memoryTx) UpdateVoteType(_ context.Context, userID, noteID string, voteType VoteType) error {
	return t.core.updateVoteType(userID, noteID, voteType)
}

func (t *memoryTx) DeleteVote(_ context.Context, userID, noteID string) error {
	return t.core.deleteVote(userID, noteID)
}

func (t *memoryTx) DeleteVotesByNote(_ context.Context, noteID string) error {
	t.core.deleteVotesByNote(noteID)
	return nil
}

// Transact nested inside a transaction reuses the already-held lock.
func (t *memoryTx) Transact(_ context.Context, fn func(Store) error) error {
	return fn(t)
}
