package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hazemshokry/train-tracking-app/internal/middleware"
	"github.com/hazemshokry/train-tracking-app/internal/models"
	"github.com/hazemshokry/train-tracking-app/internal/service"
	"github.com/hazemshokry/train-tracking-app/pkg/response"
)

// EstimateHandler handles HTTP requests for calculated estimates and train status
type EstimateHandler struct {
	service *service.EstimateService
}

// NewEstimateHandler creates a new estimate handler
func NewEstimateHandler(service *service.EstimateService) *EstimateHandler {
	return &EstimateHandler{service: service}
}

func estimateKey(c *gin.Context) (operationID, stationID int64, ok bool) {
	if operationID, ok = paramID(c, "operation_id"); !ok {
		response.BadRequest(c, "Invalid operation ID")
		return 0, 0, false
	}
	if stationID, ok = paramID(c, "station_id"); !ok {
		response.BadRequest(c, "Invalid station ID")
		return 0, 0, false
	}
	return operationID, stationID, true
}

// GetEstimate handles GET /api/v1/estimates/:operation_id/:station_id
func (h *EstimateHandler) GetEstimate(c *gin.Context) {
	opID, stationID, ok := estimateKey(c)
	if !ok {
		return
	}

	est, err := h.service.GetCalculatedEstimate(c.Request.Context(), opID, stationID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, est)
}

// ListEstimates handles GET /api/v1/estimates/:operation_id
func (h *EstimateHandler) ListEstimates(c *gin.Context) {
	opID, ok := paramID(c, "operation_id")
	if !ok {
		response.BadRequest(c, "Invalid operation ID")
		return
	}

	estimates, err := h.service.ListEstimates(c.Request.Context(), opID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"data":  estimates,
		"total": len(estimates),
	})
}

// GetTrainStatus handles GET /api/v1/trains/:number/status
func (h *EstimateHandler) GetTrainStatus(c *gin.Context) {
	status, err := h.service.GetTrainStatus(c.Request.Context(), c.Param("number"), c.Query("date"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, status)
}

// Override handles PUT /api/v1/admin/estimates/:operation_id/:station_id/override
func (h *EstimateHandler) Override(c *gin.Context) {
	opID, stationID, ok := estimateKey(c)
	if !ok {
		return
	}
	var in models.AdminOverrideInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid override: "+err.Error())
		return
	}
	in.AdminID = middleware.UserID(c)
	in.OperationID = opID
	in.StationID = stationID

	est, err := h.service.AdminOverride(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, est)
}

// ClearOverride handles DELETE /api/v1/admin/estimates/:operation_id/:station_id/override
func (h *EstimateHandler) ClearOverride(c *gin.Context) {
	opID, stationID, ok := estimateKey(c)
	if !ok {
		return
	}

	est, err := h.service.ClearAdminOverride(c.Request.Context(), opID, stationID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, est)
}
