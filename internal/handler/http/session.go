package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/service"
)

// SessionHandler exposes the persistence collaborator over REST:
// save/list/load of serialized canvases.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	if sessions == nil {
		panic("SessionService cannot be nil for SessionHandler")
	}
	return &SessionHandler{sessions: sessions}
}

type saveSessionRequest struct {
	RoomID string `json:"roomId" binding:"required"`
	Name   string `json:"name"`
}

// Save handles POST /api/sessions: snapshots a live room under a new
// handle.
func (h *SessionHandler) Save(c *gin.Context) {
	var req saveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "roomId is required")
		return
	}

	meta, err := h.sessions.Save(c.Request.Context(), req.RoomID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			ErrorResponse(c, http.StatusNotFound, "room not found")
			return
		}
		logrus.WithError(err).WithField("room_id", req.RoomID).Error("Session save failed")
		ErrorResponse(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	SuccessResponse(c, http.StatusOK, meta)
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(c *gin.Context) {
	metas, err := h.sessions.List(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Session listing failed")
		ErrorResponse(c, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"sessions": metas})
}

type loadSessionRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// Load handles POST /api/sessions/:handle/load: restores a saved canvas
// into a live room, which re-broadcasts the full state to its members.
func (h *SessionHandler) Load(c *gin.Context) {
	handle := c.Param("handle")
	var req loadSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "roomId is required")
		return
	}

	err := h.sessions.Load(c.Request.Context(), handle, req.RoomID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			ErrorResponse(c, http.StatusNotFound, "saved session not found")
		case errors.Is(err, service.ErrRoomNotFound):
			ErrorResponse(c, http.StatusNotFound, "room not found")
		default:
			logrus.WithError(err).WithField("handle", handle).Error("Session load failed")
			ErrorResponse(c, http.StatusInternalServerError, "failed to load session")
		}
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"loaded": handle})
}
