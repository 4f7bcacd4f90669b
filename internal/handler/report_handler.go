package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hazemshokry/train-tracking-app/internal/middleware"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/service"
	"github.com/hazemshokry/train-tracking-app/pkg/response"
)

// ReportHandler handles HTTP requests for passenger reports
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(service *service.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// SubmitReport handles POST /api/v1/reports
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	var in models.SubmitReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid report: "+err.Error())
		return
	}
	in.UserID = middleware.UserID(c)

	result, err := h.service.SubmitReport(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// GetReport handles GET /api/v1/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid report ID")
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}

// DeleteReport handles DELETE /api/v1/reports/:id
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid report ID")
		return
	}

	err := h.service.DeleteReport(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// ListOperationReports handles GET /api/v1/reports/operation
func (h *ReportHandler) ListOperationReports(c *gin.Context) {
	var filter models.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	reports, err := h.service.ListOperationReports(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"data":  reports,
		"total": len(reports),
	})
}

type reviewRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// FlagReport handles POST /api/v1/admin/reports/:id/flag
func (h *ReportHandler) FlagReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid report ID")
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	report, err := h.service.FlagReport(c.Request.Context(), id, middleware.UserID(c), req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}

// ApproveReport handles POST /api/v1/admin/reports/:id/approve
func (h *ReportHandler) ApproveReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid report ID")
		return
	}
	// body is optional
	var req reviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}

	report, err := h.service.ApproveReport(c.Request.Context(), id, middleware.UserID(c), req.Notes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}

// GetMyStats handles GET /api/v1/users/me/stats
func (h *ReportHandler) GetMyStats(c *gin.Context) {
	days := 0
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(c, "Invalid days parameter")
			return
		}
		days = n
	}

	stats, err := h.service.GetUserReportStats(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}
