// Package server wires the HTTP surface over the catalog services.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/engagement"
	"github.com/studyshelf/studyshelf/internal/files"
	"github.com/studyshelf/studyshelf/internal/identity"
	"github.com/studyshelf/studyshelf/internal/leaderboard"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/saved"
)

const identityContextKey = "studyshelf_identity"

var (
	errMissingResolver = errors.New("identity resolver dependency required")
	errMissingAccounts = errors.New("account service dependency required")
	errMissingCatalog  = errors.New("catalog service dependency required")
	errMissingLedger   = errors.New("engagement ledger dependency required")
	errMissingSaved    = errors.New("saved index dependency required")
	errMissingRanker   = errors.New("leaderboard ranker dependency required")
	errMissingFiles    = errors.New("file resolver dependency required")
	errMissingBlobs    = errors.New("blob store dependency required")
)

// Dependencies collects everything the router serves.
type Dependencies struct {
	Resolver *identity.Resolver
	Accounts *identity.AccountService
	Catalog  *catalog.Service
	Ledger   *engagement.Ledger
	Saved    *saved.Index
	Ranker   *leaderboard.Ranker
	Files    *files.Resolver
	Blobs    files.BlobStore
	Logger   *zap.Logger
}

// NewHTTPHandler builds the router with all catalog operations mounted.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Resolver == nil:
		return nil, errMissingResolver
	case deps.Accounts == nil:
		return nil, errMissingAccounts
	case deps.Catalog == nil:
		return nil, errMissingCatalog
	case deps.Ledger == nil:
		return nil, errMissingLedger
	case deps.Saved == nil:
		return nil, errMissingSaved
	case deps.Ranker == nil:
		return nil, errMissingRanker
	case deps.Files == nil:
		return nil, errMissingFiles
	case deps.Blobs == nil:
		return nil, errMissingBlobs
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		resolver: deps.Resolver,
		accounts: deps.Accounts,
		catalog:  deps.Catalog,
		ledger:   deps.Ledger,
		saved:    deps.Saved,
		ranker:   deps.Ranker,
		files:    deps.Files,
		blobs:    deps.Blobs,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", metrics.Handler())

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	router.GET("/notes", handler.handleListNotes)
	router.GET("/notes/:id", handler.handleGetNote)
	router.GET("/notes/:id/download", handler.handleDownload)
	router.GET("/notes/:id/saved", handler.handleIsSaved)
	router.GET("/leaderboard", handler.handleLeaderboard)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/users/me", handler.handleProfile)
	protected.PUT("/users/me", handler.handleUpdateProfile)
	protected.POST("/notes", handler.handleCreateNote)
	protected.PUT("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)
	protected.POST("/notes/:id/vote", handler.handleVote)
	protected.POST("/notes/:id/report", handler.handleReport)
	protected.POST("/notes/:id/save", handler.handleSaveNote)
	protected.DELETE("/notes/:id/save", handler.handleUnsaveNote)
	protected.GET("/saved", handler.handleListSaved)
	protected.POST("/files", handler.handleUploadBlob)

	return router, nil
}

type httpHandler struct {
	resolver *identity.Resolver
	accounts *identity.AccountService
	catalog  *catalog.Service
	ledger   *engagement.Ledger
	saved    *saved.Index
	ranker   *leaderboard.Ranker
	files    *files.Resolver
	blobs    files.BlobStore
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest resolves the bearer identity and stows it in the
// request context. Suspension is checked again by each mutating
// handler, not here, so read endpoints behind auth stay reachable for
// suspended accounts.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	ident, err := h.resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		h.abortError(c, err)
		return
	}
	c.Set(identityContextKey, ident)
	c.Next()
}

func callerIdentity(c *gin.Context) (identity.Identity, bool) {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return identity.Identity{}, false
	}
	ident, ok := value.(identity.Identity)
	return ident, ok
}

// requireActiveCaller fetches the caller and enforces the suspension
// re-check mutating handlers must perform on every call.
func (h *httpHandler) requireActiveCaller(c *gin.Context) (identity.Identity, bool) {
	ident, ok := callerIdentity(c)
	if !ok {
		h.writeError(c, identity.FaultNoAuthHeader)
		return identity.Identity{}, false
	}
	if err := ident.RequireActive(); err != nil {
		h.writeError(c, err)
		return identity.Identity{}, false
	}
	return ident, true
}
