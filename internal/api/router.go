package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hazemshokry/train-tracking-app/internal/config"
	"github.com/hazemshokry/train-tracking-app/internal/handler"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/metrics"
	"github.com/hazemshokry/train-tracking-app/internal/middleware"
)

// Handlers groups the HTTP handlers mounted under /api/v1.
type Handlers struct {
	Reports     *handler.ReportHandler
	Estimates   *handler.EstimateHandler
	Reliability *handler.ReliabilityHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers, log *logger.Logger, m *metrics.Collector) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log, m))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Train tracking API is running",
		})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret), middleware.RateLimit(cfg.HTTPRateLimit, cfg.HTTPRateWindow))
	{
		reports := api.Group("/reports")
		{
			reports.POST("", h.Reports.SubmitReport)
			reports.GET("/operation", h.Reports.ListOperationReports)
			reports.GET("/:id", h.Reports.GetReport)
			reports.DELETE("/:id", h.Reports.DeleteReport)
		}

		users := api.Group("/users")
		{
			users.GET("/me/reliability", h.Reliability.GetMine)
			users.GET("/me/stats", h.Reports.GetMyStats)
			users.GET("/:id/reliability", h.Reliability.GetUser)
		}

		estimates := api.Group("/estimates")
		{
			estimates.GET("/:operation_id", h.Estimates.ListEstimates)
			estimates.GET("/:operation_id/:station_id", h.Estimates.GetEstimate)
		}

		api.GET("/trains/:number/status", h.Estimates.GetTrainStatus)

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.POST("/reports/:id/flag", h.Reports.FlagReport)
			admin.POST("/reports/:id/approve", h.Reports.ApproveReport)
			admin.PUT("/estimates/:operation_id/:station_id/override", h.Estimates.Override)
			admin.DELETE("/estimates/:operation_id/:station_id/override", h.Estimates.ClearOverride)
			admin.POST("/users/:id/promote", h.Reliability.Promote)
		}
	}

	return r
}
