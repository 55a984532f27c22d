// internal/api/handlers.go
package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/BookFlow/internal/auth"
	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/services"
	"github.com/Corphon/BookFlow/internal/workflow"
)

// Handler serves the REST endpoints.
type Handler struct {
	Chapters *services.ChapterService
	Users    *auth.Table
	Tokens   *auth.TokenConfig
	Queues   *QueueHub
	Response *ResponseHelper
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"identity"`
}

type draftRequest struct {
	Text     string `json:"text"`
	Revision int64  `json:"revision"`
}

type approveRequest struct {
	Text     *string `json:"text"`
	Revision int64   `json:"revision"`
}

type reviewRequest struct {
	Version  string `json:"version"`
	Feedback string `json:"feedback"`
	Revision int64  `json:"revision"`
}

type publishRequest struct {
	FinalVersion string `json:"final_version"`
	Rating       int    `json:"rating"`
	Revision     int64  `json:"revision"`
}

type generateRequest struct {
	URL    string `json:"url"`
	APIURL string `json:"api_url"`
}

// Login exchanges credentials for a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	identity, err := h.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	token, err := auth.GenerateToken(identity, h.Tokens)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, loginResponse{Token: token, Identity: identity})
}

// Me returns the caller's identity.
func (h *Handler) Me(c *gin.Context) {
	id, _ := IdentityFrom(c)
	h.Response.Success(c, id)
}

// Health reports store and index counts.
func (h *Handler) Health(c *gin.Context) {
	stats, err := h.Chapters.Stats(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"status":   "ok",
		"chapters": stats,
		"sockets":  h.Queues.Status(),
	})
}

// GetQueue lists the caller's work queue.
func (h *Handler) GetQueue(c *gin.Context) {
	id, _ := IdentityFrom(c)
	chapters, err := h.Chapters.Queue(c.Request.Context(), id.Role)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	views := make([]workflow.View, len(chapters))
	for i, ch := range chapters {
		views[i] = workflow.Render(ch)
	}
	h.Response.Success(c, views)
}

// OpenChapter returns the caller's workspace for a chapter.
func (h *Handler) OpenChapter(c *gin.Context) {
	id, _ := IdentityFrom(c)
	ws, err := h.Chapters.Open(c.Request.Context(), id.Role, c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ws)
}

func (h *Handler) SaveDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	ch, err := h.Chapters.SaveDraft(c.Request.Context(), c.Param("id"), req.Text, req.Revision)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, workflow.Render(ch), "Draft saved")
}

func (h *Handler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	ch, err := h.Chapters.Approve(c.Request.Context(), c.Param("id"), req.Text, req.Revision)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, workflow.Render(ch), "Chapter sent to reviewer")
}

func (h *Handler) SubmitReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	ch, err := h.Chapters.SubmitReview(c.Request.Context(), c.Param("id"), req.Version, req.Feedback, req.Revision)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, workflow.Render(ch), "Review submitted")
}

func (h *Handler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	ch, err := h.Chapters.Publish(c.Request.Context(), c.Param("id"), req.FinalVersion, req.Rating, req.Revision)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, workflow.Render(ch), "Chapter published successfully!")
}

// Generate ingests a chapter through the generation API.
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	ch, err := h.Chapters.Ingest(c.Request.Context(), req.URL, req.APIURL)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, workflow.Render(ch), "Chapter generated")
}

// ListPublished searches the library by book name or title.
func (h *Handler) ListPublished(c *gin.Context) {
	entries, err := h.Chapters.SearchLibrary(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, entries)
}

// ReadPublished returns one published chapter.
func (h *Handler) ReadPublished(c *gin.Context) {
	ws, err := h.Chapters.Open(c.Request.Context(), models.RoleReader, c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ws.View)
}

func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.Chapters.Books(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, books)
}

// FullTextSearch queries the published chapter index.
func (h *Handler) FullTextSearch(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.Response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	hits, err := h.Chapters.FullText(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, hits)
}
