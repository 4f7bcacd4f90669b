package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hazemshokry/train-tracking-app/internal/middleware"
	"github.com/hazemshokry/train-tracking-app/internal/service"
	"github.com/hazemshokry/train-tracking-app/pkg/response"
)

// ReliabilityHandler handles HTTP requests for user reliability
type ReliabilityHandler struct {
	service *service.ReliabilityService
}

// NewReliabilityHandler creates a new reliability handler
func NewReliabilityHandler(service *service.ReliabilityService) *ReliabilityHandler {
	return &ReliabilityHandler{service: service}
}

// GetMine handles GET /api/v1/users/me/reliability
func (h *ReliabilityHandler) GetMine(c *gin.Context) {
	h.get(c, middleware.UserID(c))
}

// GetUser handles GET /api/v1/users/:id/reliability
func (h *ReliabilityHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user ID")
		return
	}
	h.get(c, id)
}

func (h *ReliabilityHandler) get(c *gin.Context, userID int64) {
	rec, err := h.service.GetUserReliability(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, rec)
}

// Promote handles POST /api/v1/admin/users/:id/promote
func (h *ReliabilityHandler) Promote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user ID")
		return
	}

	rec, err := h.service.PromoteToAdmin(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, rec)
}
