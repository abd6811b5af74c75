package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

// StepProcessor consumes step messages, dispatches the action, and moves
// the execution forward. A returned error redelivers the message through
// the retry topic; nil commits it.
type StepProcessor struct {
	workflows  WorkflowStore
	executions ExecutionStore
	logs       LogStore
	tenants    TenantStore
	steps      StepPublisher
	dispatcher *action.Dispatcher
	deps       action.Deps
	logger     *zap.Logger
	now        clock
}

func NewStepProcessor(workflows WorkflowStore, executions ExecutionStore, logs LogStore, tenants TenantStore, steps StepPublisher, dispatcher *action.Dispatcher, deps action.Deps, logger *zap.Logger) *StepProcessor {
	return &StepProcessor{
		workflows:  workflows,
		executions: executions,
		logs:       logs,
		tenants:    tenants,
		steps:      steps,
		dispatcher: dispatcher,
		deps:       deps,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleStep is the queue handler for the step topic.
func (p *StepProcessor) HandleStep(ctx context.Context, delivery queue.Delivery) error {
	var envelope queue.StepEnvelope
	if err := json.Unmarshal(delivery.Value, &envelope); err != nil {
		// Malformed payloads never become parseable; drop instead of
		// cycling through retries.
		p.logger.Error("dropping malformed step message", zap.Error(err))
		metrics.ProcessingErrors.WithLabelValues("engine").Inc()
		return nil
	}

	executionID, err := uuid.Parse(envelope.ExecutionID)
	if err != nil {
		p.logger.Error("dropping step message with invalid execution id",
			zap.String("execution_id", envelope.ExecutionID))
		metrics.ProcessingErrors.WithLabelValues("engine").Inc()
		return nil
	}
	stepID, err := uuid.Parse(envelope.StepID)
	if err != nil {
		p.logger.Error("dropping step message with invalid step id",
			zap.String("step_id", envelope.StepID))
		metrics.ProcessingErrors.WithLabelValues("engine").Inc()
		return nil
	}

	execution, err := p.executions.GetByID(ctx, executionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.logger.Warn("dropping step message for unknown execution",
			zap.String("execution_id", envelope.ExecutionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load execution: %w", err)
	}

	// Cancellation is cooperative: a message already in flight when the
	// execution left the active states is acknowledged without acting.
	if !execution.Status.IsActive() {
		p.logger.Info("skipping step for inactive execution",
			zap.String("execution_id", execution.ID.String()),
			zap.String("status", string(execution.Status)))
		return nil
	}
	if execution.CurrentStepID == nil {
		p.logger.Warn("dropping step message for execution with no current step",
			zap.String("execution_id", execution.ID.String()),
			zap.String("step_id", stepID.String()))
		return nil
	}
	if *execution.CurrentStepID != stepID {
		// A mismatched step id means the execution already advanced, but
		// the follow-up message may never have been enqueued (the publish
		// failed after the advance, or the process died between the two).
		// Re-enqueue the current step so redelivery converges instead of
		// stranding the execution in waiting.
		return p.reenqueueCurrentStep(ctx, execution, stepID)
	}

	step, err := p.workflows.GetStep(ctx, stepID)
	if err != nil {
		return fmt.Errorf("load step: %w", err)
	}

	if err := p.executions.MarkRunning(ctx, execution.ID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	actx, err := p.buildContext(ctx, execution, step)
	if err != nil {
		return err
	}

	started := p.now()
	result := p.dispatcher.Execute(ctx, step.ActionType, step.ActionConfig, actx)
	metrics.ActionDuration.WithLabelValues(step.ActionType).Observe(time.Since(started).Seconds())

	if !result.Success {
		metrics.ActionsExecuted.WithLabelValues(execution.TenantID.String(), step.ActionType, "failure").Inc()
		p.appendLog(ctx, &model.WorkflowExecutionLog{
			ExecutionID: execution.ID,
			StepID:      &step.ID,
			EventType:   model.LogEventActionExecuted,
			Status:      model.LogStatusFailure,
			Message:     result.Error,
		})
		return fmt.Errorf("action %s failed: %s", step.ActionType, result.Error)
	}

	eventType := model.LogEventActionExecuted
	message := fmt.Sprintf("Executed %s", step.ActionType)
	status := "success"
	if result.Skipped {
		eventType = model.LogEventActionSkipped
		message = result.Reason
		status = "skipped"
	}
	metrics.ActionsExecuted.WithLabelValues(execution.TenantID.String(), step.ActionType, status).Inc()
	p.appendLog(ctx, &model.WorkflowExecutionLog{
		ExecutionID: execution.ID,
		StepID:      &step.ID,
		EventType:   eventType,
		Status:      model.LogStatusSuccess,
		Message:     message,
		Metadata:    model.JSONB(result.Output),
	})

	if step.NextStepID == nil {
		return p.complete(ctx, execution)
	}
	return p.advance(ctx, execution, *step.NextStepID)
}

func (p *StepProcessor) buildContext(ctx context.Context, execution *model.WorkflowExecution, step *model.WorkflowStep) (*action.Context, error) {
	recordType, err := record.ParseType(execution.RecordType)
	if err != nil {
		return nil, fmt.Errorf("execution %s: %w", execution.ID, err)
	}

	fields, err := p.deps.Records.Fetch(ctx, recordType, execution.TenantID, execution.RecordID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", recordType, execution.RecordID, err)
	}

	tenant, err := p.tenants.GetByID(ctx, execution.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	return &action.Context{
		TenantID:    execution.TenantID,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		StepID:      step.ID,
		RecordType:  recordType,
		RecordID:    execution.RecordID,
		Record:      fields,
		Tenant:      tenant.DecodeSettings(),
		Deps:        p.deps,
	}, nil
}

func (p *StepProcessor) advance(ctx context.Context, execution *model.WorkflowExecution, nextStepID uuid.UUID) error {
	next, err := p.workflows.GetStep(ctx, nextStepID)
	if err != nil {
		return fmt.Errorf("load next step: %w", err)
	}
	if err := p.executions.AdvanceStep(ctx, execution.ID, next.ID); err != nil {
		return fmt.Errorf("advance step: %w", err)
	}

	envelope := queue.StepEnvelope{
		ExecutionID: execution.ID.String(),
		WorkflowID:  execution.WorkflowID.String(),
		TenantID:    execution.TenantID.String(),
		StepID:      next.ID.String(),
		Action:      next.ActionType,
	}
	if err := p.steps.Publish(ctx, execution.ID.String(), envelope); err != nil {
		return fmt.Errorf("enqueue next step: %w", err)
	}
	return nil
}

func (p *StepProcessor) reenqueueCurrentStep(ctx context.Context, execution *model.WorkflowExecution, staleStepID uuid.UUID) error {
	current, err := p.workflows.GetStep(ctx, *execution.CurrentStepID)
	if err != nil {
		return fmt.Errorf("load current step: %w", err)
	}
	envelope := queue.StepEnvelope{
		ExecutionID: execution.ID.String(),
		WorkflowID:  execution.WorkflowID.String(),
		TenantID:    execution.TenantID.String(),
		StepID:      current.ID.String(),
		Action:      current.ActionType,
	}
	if err := p.steps.Publish(ctx, execution.ID.String(), envelope); err != nil {
		return fmt.Errorf("re-enqueue current step: %w", err)
	}
	p.logger.Warn("re-enqueued current step for stale message",
		zap.String("execution_id", execution.ID.String()),
		zap.String("stale_step_id", staleStepID.String()),
		zap.String("current_step_id", current.ID.String()))
	return nil
}

func (p *StepProcessor) complete(ctx context.Context, execution *model.WorkflowExecution) error {
	if err := p.executions.Complete(ctx, execution.ID); err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}
	p.appendLog(ctx, &model.WorkflowExecutionLog{
		ExecutionID: execution.ID,
		EventType:   model.LogEventCompleted,
		Status:      model.LogStatusSuccess,
		Message:     "Workflow completed",
	})
	if err := p.workflows.IncrementActiveCount(ctx, execution.WorkflowID, -1); err != nil {
		p.logger.Warn("failed to decrement active count",
			zap.String("workflow_id", execution.WorkflowID.String()), zap.Error(err))
	}
	metrics.ExecutionsCompleted.WithLabelValues(execution.TenantID.String(), execution.WorkflowID.String()).Inc()
	return nil
}

func (p *StepProcessor) appendLog(ctx context.Context, entry *model.WorkflowExecutionLog) {
	if err := p.logs.Append(ctx, entry); err != nil {
		p.logger.Warn("failed to append execution log",
			zap.String("execution_id", entry.ExecutionID.String()),
			zap.String("event_type", entry.EventType),
			zap.Error(err))
	}
}
