package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

// TriggerConsumer matches inbound domain events against active workflow
// definitions and enrolls the record into each match.
type TriggerConsumer struct {
	workflows WorkflowStore
	manager   *Manager
	logger    *zap.Logger
}

func NewTriggerConsumer(workflows WorkflowStore, manager *Manager, logger *zap.Logger) *TriggerConsumer {
	return &TriggerConsumer{workflows: workflows, manager: manager, logger: logger}
}

// HandleEvent is the queue handler for the domain event topic. Enrollment
// failures surface as a handler error so the event redelivers; the
// duplicate-execution guard makes redelivery safe for workflows that
// already enrolled.
func (c *TriggerConsumer) HandleEvent(ctx context.Context, delivery queue.Delivery) error {
	var event queue.EventEnvelope
	if err := json.Unmarshal(delivery.Value, &event); err != nil {
		c.logger.Error("dropping malformed trigger event", zap.Error(err))
		metrics.ProcessingErrors.WithLabelValues("trigger").Inc()
		return nil
	}

	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		c.logger.Error("dropping trigger event with invalid tenant id",
			zap.String("tenant_id", event.TenantID))
		metrics.ProcessingErrors.WithLabelValues("trigger").Inc()
		return nil
	}
	recordID, err := uuid.Parse(event.RecordID)
	if err != nil {
		c.logger.Error("dropping trigger event with invalid record id",
			zap.String("record_id", event.RecordID))
		metrics.ProcessingErrors.WithLabelValues("trigger").Inc()
		return nil
	}
	recordType, err := record.ParseType(event.RecordType)
	if err != nil {
		c.logger.Warn("dropping trigger event for unknown record type",
			zap.String("record_type", event.RecordType),
			zap.String("event_type", event.EventType))
		return nil
	}

	workflows, err := c.workflows.ListActiveForTrigger(ctx, tenantID, event.EventType, event.RecordType)
	if err != nil {
		return fmt.Errorf("list workflows for trigger: %w", err)
	}

	var firstErr error
	for i := range workflows {
		workflow := &workflows[i]
		result, err := c.manager.Enroll(ctx, action.EnrollRequest{
			TargetWorkflowID: workflow.ID,
			TenantID:         tenantID,
			RecordType:       recordType,
			RecordID:         recordID,
		})
		if err != nil {
			c.logger.Error("enrollment failed",
				zap.String("workflow_id", workflow.ID.String()),
				zap.String("record_id", recordID.String()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.logger.Debug("trigger evaluated",
			zap.String("workflow_id", workflow.ID.String()),
			zap.String("event_type", event.EventType),
			zap.String("outcome", string(result.Outcome)))
	}
	return firstErr
}
