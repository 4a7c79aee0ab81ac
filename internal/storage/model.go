package storage

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// VoteType enumerates vote directions.
type VoteType string

const (
	VoteUpvote   VoteType = "upvote"
	VoteDownvote VoteType = "downvote"
)

// User models an account together with its engagement aggregates.
// Aggregates only move through counter deltas, never through profile updates.
type User struct {
	ID             string     `gorm:"column:id;primaryKey;size:36;not null"`
	Name           string     `gorm:"column:name;size:190;not null"`
	Email          string     `gorm:"column:email;size:320;not null;uniqueIndex:idx_users_email"`
	PasswordHash   string     `gorm:"column:password_hash;size:190;not null"`
	Role           Role       `gorm:"column:role;size:16;not null;default:'student'"`
	Branch         string     `gorm:"column:branch;size:190"`
	Section        string     `gorm:"column:section;size:64"`
	RollNo         string     `gorm:"column:roll_no;size:64"`
	IsAdmin        bool       `gorm:"column:is_admin;not null;default:false"`
	IsSuspended    bool       `gorm:"column:is_suspended;not null;default:false"`
	TotalDownloads int64      `gorm:"column:total_downloads;not null;default:0"`
	TotalViews     int64      `gorm:"column:total_views;not null;default:0"`
	NotesUploaded  int64      `gorm:"column:notes_uploaded;not null;default:0"`
	Reputation     int64      `gorm:"column:reputation;not null;default:0"`
	ResetToken     string     `gorm:"column:reset_token;size:190"`
	ResetExpiresAt *time.Time `gorm:"column:reset_expires_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Note models a catalog entry. The (title, subject, semester) tuple is
// globally unique; the index closes the race between check and insert.
type Note struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Title        string    `gorm:"column:title;size:200;not null;uniqueIndex:idx_notes_title_subject_semester,priority:1"`
	Subject      string    `gorm:"column:subject;size:190;not null;uniqueIndex:idx_notes_title_subject_semester,priority:2"`
	Semester     int       `gorm:"column:semester;not null;uniqueIndex:idx_notes_title_subject_semester,priority:3"`
	Description  string    `gorm:"column:description;type:text;not null"`
	Branch       string    `gorm:"column:branch;size:190"`
	BlobID       string    `gorm:"column:blob_id;size:190"`
	ExternalURL  string    `gorm:"column:external_url;size:512"`
	OwnerID      string    `gorm:"column:owner_id;size:36;not null;index:idx_notes_owner"`
	OwnerName    string    `gorm:"column:owner_name;size:190;not null"`
	Views        int64     `gorm:"column:views;not null;default:0"`
	Downloads    int64     `gorm:"column:downloads;not null;default:0"`
	Upvotes      int64     `gorm:"column:upvotes;not null;default:0"`
	Downvotes    int64     `gorm:"column:downvotes;not null;default:0"`
	IsApproved   bool      `gorm:"column:is_approved;not null;default:true"`
	IsReported   bool      `gorm:"column:is_reported;not null;default:false"`
	ReportReason string    `gorm:"column:report_reason;size:512"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// SavedNote is the bookmark relation. The composite key makes a repeat
// save a uniqueness violation rather than a silent no-op.
type SavedNote struct {
	UserID  string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	NoteID  string    `gorm:"column:note_id;primaryKey;size:36;not null;index:idx_saved_note"`
	SavedAt time.Time `gorm:"column:saved_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (SavedNote) TableName() string {
	return "saved_notes"
}

// Vote records at most one vote per (user, note) pair.
type Vote struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	NoteID    string    `gorm:"column:note_id;primaryKey;size:36;not null;index:idx_votes_note"`
	Type      VoteType  `gorm:"column:vote_type;size:16;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}
