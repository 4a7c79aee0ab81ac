package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/identity"
	"github.com/studyshelf/studyshelf/internal/storage"
)

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
	Section  string `json:"section"`
	RollNo   string `json:"rollNo"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Branch         string    `json:"branch,omitempty"`
	Section        string    `json:"section,omitempty"`
	RollNo         string    `json:"rollNo,omitempty"`
	IsAdmin        bool      `json:"isAdmin"`
	TotalDownloads int64     `json:"totalDownloads"`
	TotalViews     int64     `json:"totalViews"`
	NotesUploaded  int64     `json:"notesUploaded"`
	Reputation     int64     `json:"reputation"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toUserResponse(user *storage.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           string(user.Role),
		Branch:         user.Branch,
		Section:        user.Section,
		RollNo:         user.RollNo,
		IsAdmin:        user.IsAdmin,
		TotalDownloads: user.TotalDownloads,
		TotalViews:     user.TotalViews,
		NotesUploaded:  user.NotesUploaded,
		Reputation:     user.Reputation,
		CreatedAt:      user.CreatedAt,
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, fault.Validation("InvalidBody", "request body must be valid JSON"))
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), identity.RegisterParams{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
		Branch:   payload.Branch,
		Section:  payload.Section,
		RollNo:   payload.RollNo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, fault.Validation("InvalidBody", "request body must be valid JSON"))
		return
	}

	user, token, expiresIn, err := h.accounts.Login(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        toUserResponse(user),
	})
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	ident, ok := callerIdentity(c)
	if !ok {
		h.writeError(c, identity.FaultNoAuthHeader)
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), ident.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// profileUpdatePayload deliberately has no email, id, role, isAdmin, or
// counter fields: anything else a client submits is dropped on decode.
type profileUpdatePayload struct {
	Name    *string `json:"name"`
	Branch  *string `json:"branch"`
	Section *string `json:"section"`
	RollNo  *string `json:"rollNo"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	ident, ok := h.requireActiveCaller(c)
	if !ok {
		return
	}

	var payload profileUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.writeError(c, fault.Validation("InvalidBody", "request body must be valid JSON"))
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), ident.UserID, identity.ProfileUpdate{
		Name:    payload.Name,
		Branch:  payload.Branch,
		Section: payload.Section,
		RollNo:  payload.RollNo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
