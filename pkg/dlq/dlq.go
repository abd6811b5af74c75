// Package dlq drains the dead-letter topic. A message lands here after
// exhausting its redeliveries; the processor marks the owning execution
// failed, records why, and alerts the tenant's admins.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/notify"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
)

type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Workflow, error)
	IncrementActiveCount(ctx context.Context, id uuid.UUID, delta int) error
	IncrementFailedCount(ctx context.Context, id uuid.UUID) error
}

type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowExecution, error)
	MarkFailed(ctx context.Context, id uuid.UUID, details model.JSONB) (bool, error)
}

type LogStore interface {
	Append(ctx context.Context, entry *model.WorkflowExecutionLog) error
}

type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
}

// StatusEmitter pushes the failure to connected app clients. May be nil.
type StatusEmitter interface {
	EmitExecutionStatus(ctx context.Context, execution *model.WorkflowExecution, message string)
}

type Processor struct {
	workflows  WorkflowStore
	executions ExecutionStore
	logs       LogStore
	tenants    TenantStore
	alerter    *notify.Alerter
	status     StatusEmitter
	logger     *zap.Logger
}

func NewProcessor(workflows WorkflowStore, executions ExecutionStore, logs LogStore, tenants TenantStore, alerter *notify.Alerter, status StatusEmitter, logger *zap.Logger) *Processor {
	return &Processor{
		workflows:  workflows,
		executions: executions,
		logs:       logs,
		tenants:    tenants,
		alerter:    alerter,
		status:     status,
		logger:     logger,
	}
}

// HandleDeadLetter is the queue handler for the dead-letter topic.
// Semantic problems with a message are terminal and never redeliver; only
// storage failures return an error.
func (p *Processor) HandleDeadLetter(ctx context.Context, delivery queue.Delivery) error {
	envelope, err := queue.DecodeDeadLetter(delivery)
	if err != nil {
		p.logger.Error("dropping undecodable dead letter", zap.Error(err))
		metrics.DeadLettersProcessed.WithLabelValues("unknown", "undecodable").Inc()
		return nil
	}

	if envelope.Step != nil {
		return p.processStep(ctx, envelope)
	}
	return p.processTrigger(ctx, envelope)
}

func (p *Processor) processStep(ctx context.Context, envelope *queue.DeadLetterEnvelope) error {
	step := envelope.Step
	executionID, err := uuid.Parse(step.ExecutionID)
	if err != nil {
		p.logger.Error("dead letter carries invalid execution id",
			zap.String("execution_id", step.ExecutionID))
		metrics.DeadLettersProcessed.WithLabelValues(step.TenantID, "undecodable").Inc()
		return nil
	}

	execution, err := p.executions.GetByID(ctx, executionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.logger.Warn("dead letter for unknown execution",
			zap.String("execution_id", step.ExecutionID))
		metrics.DeadLettersProcessed.WithLabelValues(step.TenantID, "orphaned").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load execution: %w", err)
	}

	details := model.JSONB{
		"lastError":             envelope.LastError,
		"attemptCount":          envelope.ApproximateReceiveCount,
		"sourceQueue":           envelope.SourceQueue,
		"stepId":                step.StepID,
		"action":                step.Action,
		"sentTimestamp":         envelope.SentTimestamp.UTC().Format(time.RFC3339),
		"firstReceiveTimestamp": envelope.FirstReceiveTimestamp.UTC().Format(time.RFC3339),
	}

	transitioned, err := p.executions.MarkFailed(ctx, execution.ID, details)
	if err != nil {
		return fmt.Errorf("mark execution failed: %w", err)
	}
	if !transitioned {
		// Terminal executions stay terminal: reprocessed dead letters and
		// dead letters racing a cancel or completion must not flip the
		// status or double-count.
		metrics.DeadLettersProcessed.WithLabelValues(execution.TenantID.String(), "already_terminal").Inc()
		return nil
	}

	stepID, _ := uuid.Parse(step.StepID)
	logEntry := &model.WorkflowExecutionLog{
		ExecutionID: execution.ID,
		EventType:   model.LogEventFailed,
		Status:      model.LogStatusFailure,
		Message:     fmt.Sprintf("Execution failed after %d attempts: %s", envelope.ApproximateReceiveCount, envelope.LastError),
		Metadata:    details,
	}
	if stepID != uuid.Nil {
		logEntry.StepID = &stepID
	}
	if err := p.logs.Append(ctx, logEntry); err != nil {
		p.logger.Warn("failed to append failure log",
			zap.String("execution_id", execution.ID.String()), zap.Error(err))
	}

	if err := p.workflows.IncrementActiveCount(ctx, execution.WorkflowID, -1); err != nil {
		p.logger.Warn("failed to decrement active count",
			zap.String("workflow_id", execution.WorkflowID.String()), zap.Error(err))
	}
	if err := p.workflows.IncrementFailedCount(ctx, execution.WorkflowID); err != nil {
		p.logger.Warn("failed to increment failed count",
			zap.String("workflow_id", execution.WorkflowID.String()), zap.Error(err))
	}
	metrics.ExecutionsFailed.WithLabelValues(execution.TenantID.String(), execution.WorkflowID.String()).Inc()
	metrics.DeadLettersProcessed.WithLabelValues(execution.TenantID.String(), "execution_failed").Inc()

	execution.Status = model.ExecutionFailed
	if p.status != nil {
		p.status.EmitExecutionStatus(ctx, execution, envelope.LastError)
	}
	p.alert(ctx, execution, envelope)
	return nil
}

// processTrigger handles a dead-lettered trigger event. There is no
// execution to fail; the event is recorded and dropped.
func (p *Processor) processTrigger(ctx context.Context, envelope *queue.DeadLetterEnvelope) error {
	event := envelope.Event
	p.logger.Error("trigger event exhausted its retries",
		zap.String("event_type", event.EventType),
		zap.String("tenant_id", event.TenantID),
		zap.String("record_id", event.RecordID),
		zap.Int("attempts", envelope.ApproximateReceiveCount),
		zap.String("last_error", envelope.LastError))
	metrics.DeadLettersProcessed.WithLabelValues(event.TenantID, "trigger_dropped").Inc()
	return nil
}

func (p *Processor) alert(ctx context.Context, execution *model.WorkflowExecution, envelope *queue.DeadLetterEnvelope) {
	if p.alerter == nil {
		return
	}
	tenant, err := p.tenants.GetByID(ctx, execution.TenantID)
	if err != nil {
		p.logger.Warn("failed to load tenant for failure alert",
			zap.String("tenant_id", execution.TenantID.String()), zap.Error(err))
		return
	}

	workflowName := execution.WorkflowID.String()
	if workflow, err := p.workflows.GetByID(ctx, execution.WorkflowID); err == nil {
		workflowName = workflow.Name
	}

	p.alerter.Send(ctx, notify.FailureAlert{
		Tenant:       tenant,
		WorkflowID:   execution.WorkflowID,
		WorkflowName: workflowName,
		ExecutionID:  execution.ID,
		FailedAt:     time.Now(),
		AttemptCount: envelope.ApproximateReceiveCount,
		LastError:    envelope.LastError,
	})
}
