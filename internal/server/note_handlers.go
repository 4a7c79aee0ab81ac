package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/engagement"
	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/files"
	"github.com/studyshelf/studyshelf/internal/identity"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/saved"
	"github.com/studyshelf/studyshelf/internal/storage"
)

const (
	defaultPageLimit = 20
	maxUploadBytes   = 50 << 20
)

type noteResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Subject      string    `json:"subject"`
	Semester     int       `json:"semester"`
	Branch       string    `json:"branch,omitempty"`
	BlobID       string    `json:"blobId,omitempty"`
	ExternalURL  string    `json:"externalUrl,omitempty"`
	OwnerID      string    `json:"ownerId"`
	OwnerName    string    `json:"ownerName"`
	Views        int64     `json:"views"`
	Downloads    int64     `json:"downloads"`
	Upvotes      int64     `json:"upvotes"`
	Downvotes    int64     `json:"downvotes"`
	IsApproved   bool      `json:"isApproved"`
	IsReported   bool      `json:"isReported"`
	ReportReason string    `json:"reportReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toNoteResponse(note *storage.Note) noteResponse {
	return noteResponse{
		ID:           note.ID,
		Title:        note.Title,
		Description:  note.Description,
		Subject:      note.Subject,
		Semester:     note.Semester,
		Branch:       note.Branch,
		BlobID:       note.BlobID,
		ExternalURL:  note.ExternalURL,
		OwnerID:      note.OwnerID,
		OwnerName:    note.OwnerName,
		Views:        note.Views,
		Downloads:    note.Downloads,
		Upvotes:      note.Upvotes,
		Downvotes:    note.Downvotes,
		IsApproved:   note.IsApproved,
		IsReported:   note.IsReported,
		ReportReason: note.ReportReason,
		CreatedAt:    note.CreatedAt,
	}
}

// notePayload keeps title/description/subject/semester loosely typed so
// the catalog can report InvalidType instead of a bare decode failure.
// Fields outside this shape are dropped on decode, which is how
// read-only fields stay read-only.
type notePayload struct {
	Title       any `json:"title"`
	Description any `json:"description"`
	Subject     any `json:"subject"`
	Semester    any `json:"semester"`
	Branch      any `json:"branch"`
	BlobID      any `json:"blobId"`
	ExternalURL any `json:"externalUrl"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}

	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, catalog.FaultEmptyBody)
		return
	}

	note, err := h.catalog.Create(c.Request.Context(), ident.UserID, catalog.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Subject:     payload.Subject,
		Semester:    payload.Semester,
		Branch:      payload.Branch,
		BlobID:      payload.BlobID,
		ExternalURL: payload.ExternalURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	metrics.NoteCreated()
	c.JSON(http.StatusCreated, toNoteResponse(note))
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}

	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, catalog.FaultEmptyBody)
		return
	}

	note, err := h.catalog.Update(c.Request.Context(), ident.UserID, c.Param("id"), catalog.UpdateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Subject:     payload.Subject,
		Semester:    payload.Semester,
		Branch:      payload.Branch,
		BlobID:      payload.BlobID,
		ExternalURL: payload.ExternalURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(note))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), ident, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(note))
}

type listResponse struct {
	Notes      []noteResponse `json:"notes"`
	Total      int64          `json:"total"`
	TotalPages int64          `json:"totalPages"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	page, err := queryInt(c, "page", 1, catalog.FaultInvalidPage)
	if err != nil {
		h.writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", defaultPageLimit, catalog.FaultInvalidLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	semester := 0
	if raw := strings.TrimSpace(c.Query("semester")); raw != "" {
		semester, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, catalog.FaultInvalidSemester)
			return
		}
	}

	result, err := h.catalog.List(c.Request.Context(), catalog.ListParams{
		Subject:  c.Query("subject"),
		Semester: semester,
		Branch:   c.Query("branch"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	notes := make([]noteResponse, 0, len(result.Notes))
	for i := range result.Notes {
		notes = append(notes, toNoteResponse(&result.Notes[i]))
	}
	c.JSON(http.StatusOK, listResponse{
		Notes:      notes,
		Total:      result.Total,
		TotalPages: result.TotalPages,
		Page:       result.Page,
		Limit:      result.Limit,
	})
}

func queryInt(c *gin.Context, key string, fallback int, invalid *fault.Fault) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid
	}
	return value, nil
}

type votePayload struct {
	VoteType string `json:"voteType"`
}

func (h *httpHandler) handleVote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}

	var payload votePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, engagement.FaultInvalidVoteType)
		return
	}

	counters, err := h.ledger.RecordVote(c.Request.Context(), ident.UserID, c.Param("id"),
		storage.VoteType(strings.ToLower(strings.TrimSpace(payload.VoteType))))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upvotes":   counters.Upvotes,
		"downvotes": counters.Downvotes,
		"removed":   counters.Removed,
	})
}

type reportPayload struct {
	Reason string `json:"reason"`
}

func (h *httpHandler) handleReport(c *gin.Context) {
	if _, ok := h.requireActiveCaller(c); !ok {
		return
	}

	var payload reportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, catalog.FaultReasonRequired)
		return
	}

	note, err := h.catalog.Report(c.Request.Context(), c.Param("id"), payload.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(note))
}

func (h *httpHandler) handleSaveNote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}

	row, err := h.saved.Save(c.Request.Context(), ident.UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, saved.FaultAlreadySaved) && row != nil {
			c.JSON(http.StatusConflict, gin.H{
				"message":   saved.FaultAlreadySaved.Message,
				"errorCode": saved.FaultAlreadySaved.Code,
				"savedAt":   row.SavedAt,
			})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"savedAt": row.SavedAt})
}

func (h *httpHandler) handleUnsaveNote(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}
	if err := h.saved.Unsave(c.Request.Context(), ident.UserID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsaved": true})
}

// handleIsSaved never fails: absent or invalid credentials resolve to
// false rather than an auth error.
func (h *httpHandler) handleIsSaved(c *gin.Context) {
	userID := ""
	if ident, err := h.resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization")); err == nil {
		userID = ident.UserID
	}
	savedFlag := h.saved.IsSaved(c.Request.Context(), userID, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"saved": savedFlag})
}

func (h *httpHandler) handleListSaved(c *gin.Context) {
	ident, ok := callerIdentity(c)
	if !ok {
		h.writeError(c, identity.FaultNoAuthHeader)
		return
	}

	entries, err := h.saved.List(c.Request.Context(), ident.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	type savedResponse struct {
		Note    noteResponse `json:"note"`
		SavedAt time.Time    `json:"savedAt"`
	}
	response := make([]savedResponse, 0, len(entries))
	for i := range entries {
		response = append(response, savedResponse{
			Note:    toNoteResponse(&entries[i].Note),
			SavedAt: entries[i].SavedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"saved": response})
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	entries, err := h.ranker.Rank(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *httpHandler) handleDownload(c *gin.Context) {
	note, err := h.catalog.Peek(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	download, err := h.files.Resolve(c.Request.Context(), note)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.ledger.RecordDownload(c.Request.Context(), note.ID); err != nil {
		h.logger.Warn("download count failed", zap.String("note_id", note.ID), zap.Error(err))
	}
	metrics.DownloadServed()

	if download.IsRedirect() {
		c.Redirect(http.StatusFound, download.RedirectURL)
		return
	}

	defer download.Body.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, download.Size, download.ContentType, download.Body, nil)
}

func (h *httpHandler) handleUploadBlob(c *gin.Context) {
	if _, ok := h.requireActiveCaller(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.writeError(c, fault.Validation("FileRequired", "multipart field 'file' is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		h.writeError(c, fault.Validation("FileTooLarge", "file exceeds the upload limit"))
		return
	}

	reader, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, fault.Validation("FileRequired", "uploaded file is unreadable"))
		return
	}
	defer reader.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	blobID := uuid.NewString()
	err = h.blobs.Put(c.Request.Context(), blobID, reader, fileHeader.Size, files.ObjectInfo{
		ContentType: contentType,
		Filename:    files.SanitizeFilename(fileHeader.Filename),
		Size:        fileHeader.Size,
	})
	if err != nil {
		h.writeError(c, fault.Unavailable(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"blobId":   blobID,
		"filename": files.SanitizeFilename(fileHeader.Filename),
		"size":     fileHeader.Size,
	})
}
