package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowExecution, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, status *model.ExecutionStatus, limit, offset int) ([]model.WorkflowExecution, int64, error)
}

type LogStore interface {
	ListByExecution(ctx context.Context, executionID uuid.UUID, limit int) ([]model.WorkflowExecutionLog, error)
}

type ExecutionHandler struct {
	executions ExecutionStore
	logs       LogStore
	logger     *zap.Logger
}

func NewExecutionHandler(executions ExecutionStore, logs LogStore, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{executions: executions, logs: logs, logger: logger}
}

type executionResponse struct {
	ID            string      `json:"id"`
	WorkflowID    string      `json:"workflowId"`
	RecordType    string      `json:"recordType"`
	RecordID      string      `json:"recordId"`
	Status        string      `json:"status"`
	CurrentStepID *string     `json:"currentStepId,omitempty"`
	StartedAt     string      `json:"startedAt"`
	CompletedAt   *string     `json:"completedAt,omitempty"`
	EndedAt       *string     `json:"endedAt,omitempty"`
	ErrorDetails  model.JSONB `json:"errorDetails,omitempty"`
	Metadata      model.JSONB `json:"metadata,omitempty"`
}

func toExecutionResponse(execution *model.WorkflowExecution) executionResponse {
	resp := executionResponse{
		ID:           execution.ID.String(),
		WorkflowID:   execution.WorkflowID.String(),
		RecordType:   execution.RecordType,
		RecordID:     execution.RecordID.String(),
		Status:       string(execution.Status),
		StartedAt:    execution.StartedAt.UTC().Format(time.RFC3339Nano),
		CompletedAt:  formatTime(execution.CompletedAt),
		EndedAt:      formatTime(execution.EndedAt),
		ErrorDetails: execution.ErrorDetails,
		Metadata:     execution.Metadata,
	}
	if execution.CurrentStepID != nil {
		id := execution.CurrentStepID.String()
		resp.CurrentStepID = &id
	}
	return resp
}

func (h *ExecutionHandler) List(c *gin.Context) {
	tenantID, ok := requestTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	var status *model.ExecutionStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.ExecutionStatus(raw)
		switch parsed {
		case model.ExecutionRunning, model.ExecutionWaiting, model.ExecutionCompleted,
			model.ExecutionFailed, model.ExecutionCancelled:
			status = &parsed
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	executions, total, err := h.executions.ListByStatus(c.Request.Context(), tenantID, status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list executions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list executions"})
		return
	}

	items := make([]executionResponse, 0, len(executions))
	for i := range executions {
		items = append(items, toExecutionResponse(&executions[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": items,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *ExecutionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	execution, err := h.executions.GetByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load execution", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution"})
		return
	}

	if tenantID, ok := requestTenantID(c); ok && execution.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}

	logs, err := h.logs.ListByExecution(c.Request.Context(), execution.ID, 500)
	if err != nil {
		h.logger.Error("failed to load execution logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution logs"})
		return
	}

	logItems := make([]gin.H, 0, len(logs))
	for _, entry := range logs {
		item := gin.H{
			"eventType": entry.EventType,
			"status":    entry.Status,
			"message":   entry.Message,
			"timestamp": entry.StartedAt.UTC().Format(time.RFC3339Nano),
		}
		if entry.StepID != nil {
			item["stepId"] = entry.StepID.String()
		}
		if entry.Metadata != nil {
			item["metadata"] = entry.Metadata
		}
		logItems = append(logItems, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"execution": toExecutionResponse(execution),
		"logs":      logItems,
	})
}
