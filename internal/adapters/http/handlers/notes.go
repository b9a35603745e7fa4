package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loggate/loggate/internal/adapters/http/dto"
	"github.com/loggate/loggate/internal/app"
	"github.com/loggate/loggate/internal/domain"
)

// NoteHandler handles note HTTP endpoints.
type NoteHandler struct {
	service *app.NoteService
}

// NewNoteHandler creates a note handler.
func NewNoteHandler(service *app.NoteService) *NoteHandler {
	return &NoteHandler{service: service}
}

// CreateNoteRequest is the payload for creating a note.
type CreateNoteRequest struct {
	Title string `json:"title" validate:"required,notempty,max=200"`
	Body  string `json:"body"  validate:"max=10000"`
}

// NoteResponse is the HTTP response structure for a note.
type NoteResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func toNoteResponse(n *domain.Note) *NoteResponse {
	return &NoteResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/v1/notes.
func (h *NoteHandler) Create(c *gin.Context) {
	var req CreateNoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		if fields := dto.ValidationErrors(err); len(fields) > 0 {
			dto.HandleValidationErrors(c, fields)
			return
		}
		dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, "invalid request body")
		return
	}

	note, err := h.service.Create(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toNoteResponse(note))
}

// Get handles GET /api/v1/notes/:id.
func (h *NoteHandler) Get(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}

	note, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toNoteResponse(note))
}

// List handles GET /api/v1/notes.
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.service.List(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	out := make([]*NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}

	c.JSON(http.StatusOK, gin.H{"notes": out})
}

// Delete handles DELETE /api/v1/notes/:id.
func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterNoteRoutes registers note routes on the given router group.
func (h *NoteHandler) RegisterNoteRoutes(rg *gin.RouterGroup) {
	notes := rg.Group("/notes")
	notes.POST("", h.Create)
	notes.GET("", h.List)
	notes.GET("/:id", h.Get)
	notes.DELETE("/:id", h.Delete)
}

func noteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, "note ID must be a positive integer")
		return 0, false
	}
	return id, true
}
