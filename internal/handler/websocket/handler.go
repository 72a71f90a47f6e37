// Package websocket upgrades authenticated HTTP requests into gateway
// clients.
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/hub"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/middleware"
)

// Handler upgrades connections and hands them to the hub. Room membership
// is not bound at upgrade time: the client joins (and may switch) rooms
// with join-room events on the socket.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewHandler creates a websocket Handler.
func NewHandler(h *hub.Hub) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the deploy origin is fixed.
				return true
			},
		},
		hub: h,
	}
}

// HandleConnection handles GET /ws.
func (h *Handler) HandleConnection(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		logrus.Error("WS handler: authenticated user missing from context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	logCtx := logrus.WithField("user_id", user.ID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS handler: failed to upgrade connection")
		return
	}
	logCtx.Info("WS handler: connection upgraded")

	client := hub.NewClient(h.hub, conn, user)
	client.Run()
}
