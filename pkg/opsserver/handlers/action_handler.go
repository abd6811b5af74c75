package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// ActionHandler validates step configurations for the workflow authoring
// UI. Validation never touches a record or the database.
type ActionHandler struct {
	dispatcher *action.Dispatcher
	logger     *zap.Logger
}

func NewActionHandler(dispatcher *action.Dispatcher, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher, logger: logger}
}

type validateRequest struct {
	ActionType string      `json:"actionType"`
	Config     model.JSONB `json:"config"`
}

func (h *ActionHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ActionType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actionType is required"})
		return
	}

	result := h.dispatcher.Validate(req.ActionType, req.Config)
	c.JSON(http.StatusOK, result)
}
