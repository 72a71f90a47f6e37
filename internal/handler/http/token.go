package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/service"
)

// TokenHandler issues guest session tokens.
type TokenHandler struct {
	tokens *service.TokenService
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	if tokens == nil {
		panic("TokenService cannot be nil for TokenHandler")
	}
	return &TokenHandler{tokens: tokens}
}

type issueTokenRequest struct {
	Name string `json:"name" binding:"required"`
}

// Issue handles POST /api/token: mints a guest identity from a display
// name.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "name is required")
		return
	}

	token, user, err := h.tokens.Issue(req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			ErrorResponse(c, http.StatusBadRequest, "name must not be empty")
			return
		}
		logrus.WithError(err).Error("Token issuance failed")
		ErrorResponse(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"token": token, "user": user})
}
