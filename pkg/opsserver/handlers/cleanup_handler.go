package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/retention"
)

type CleanupHandler struct {
	job    *retention.Job
	logger *zap.Logger
}

func NewCleanupHandler(job *retention.Job, logger *zap.Logger) *CleanupHandler {
	return &CleanupHandler{job: job, logger: logger}
}

type cleanupRequest struct {
	TenantID      string `json:"tenantId"`
	LogDays       int    `json:"logDays"`
	ExecutionDays int    `json:"executionDays"`
}

// Trigger runs a retention sweep on demand, optionally narrowed to one
// tenant with override windows.
func (h *CleanupHandler) Trigger(c *gin.Context) {
	var req cleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if req.LogDays < 0 || req.ExecutionDays < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention windows must be positive"})
		return
	}

	opts := retention.Options{
		LogDays:       req.LogDays,
		ExecutionDays: req.ExecutionDays,
	}
	if req.TenantID != "" {
		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
			return
		}
		opts.TenantID = &tenantID
	}

	report, err := h.job.Sweep(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("manual retention sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
