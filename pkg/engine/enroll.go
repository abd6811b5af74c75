package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
)

// Manager gates enrollment and unenrollment. It implements action.Enroller
// so the enroll/unenroll executors route through the same guards as
// trigger events.
type Manager struct {
	workflows  WorkflowStore
	executions ExecutionStore
	logs       LogStore
	steps      StepPublisher
	logger     *zap.Logger
	now        clock
}

func NewManager(workflows WorkflowStore, executions ExecutionStore, logs LogStore, steps StepPublisher, logger *zap.Logger) *Manager {
	return &Manager{
		workflows:  workflows,
		executions: executions,
		logs:       logs,
		steps:      steps,
		logger:     logger,
		now:        time.Now,
	}
}

// Enroll creates an execution for the record unless a guard rejects or
// skips it. Guards run in a fixed order: self-enrollment, workflow
// status, record kind, duplicate active execution, re-enrollment policy.
func (m *Manager) Enroll(ctx context.Context, req action.EnrollRequest) (action.EnrollResult, error) {
	if req.SourceWorkflowID != uuid.Nil && req.TargetWorkflowID == req.SourceWorkflowID {
		return action.EnrollResult{Outcome: action.EnrollRejectedCircular}, nil
	}

	workflow, err := m.workflows.GetByID(ctx, req.TargetWorkflowID)
	if err != nil {
		return action.EnrollResult{}, fmt.Errorf("load workflow: %w", err)
	}
	if workflow.Status != model.WorkflowActive {
		return action.EnrollResult{Outcome: action.EnrollSkippedInactive}, nil
	}
	if workflow.ObjectType != string(req.RecordType) {
		return action.EnrollResult{Outcome: action.EnrollRejectedType}, nil
	}

	active, err := m.executions.HasActive(ctx, workflow.ID, string(req.RecordType), req.RecordID)
	if err != nil {
		return action.EnrollResult{}, fmt.Errorf("check active execution: %w", err)
	}
	if active {
		return action.EnrollResult{Outcome: action.EnrollSkippedActive}, nil
	}

	prior, err := m.executions.LatestFor(ctx, workflow.ID, string(req.RecordType), req.RecordID)
	if err != nil {
		return action.EnrollResult{}, fmt.Errorf("load prior execution: %w", err)
	}
	if prior != nil {
		settings := workflow.DecodeSettings()
		if !settings.AllowReenrollment {
			return action.EnrollResult{Outcome: action.EnrollSkippedPolicy}, nil
		}
		if settings.ReenrollmentDelayDays > 0 {
			eligible := prior.CreatedAt.Add(time.Duration(settings.ReenrollmentDelayDays) * 24 * time.Hour)
			if m.now().Before(eligible) {
				return action.EnrollResult{
					Outcome:          action.EnrollSkippedCooldown,
					NextEligibleDate: &eligible,
				}, nil
			}
		}
	}

	entry, err := m.workflows.EntryStep(ctx, workflow.ID)
	if err != nil {
		return action.EnrollResult{}, err
	}

	execution := &model.WorkflowExecution{
		TenantID:      req.TenantID,
		WorkflowID:    workflow.ID,
		RecordType:    string(req.RecordType),
		RecordID:      req.RecordID,
		Status:        model.ExecutionWaiting,
		CurrentStepID: &entry.ID,
	}
	if req.SourceWorkflowID != uuid.Nil {
		execution.Metadata = model.JSONB{
			"enrolledBy": map[string]interface{}{
				"workflowId":  req.SourceWorkflowID.String(),
				"executionId": req.SourceExecutionID.String(),
				"stepId":      req.SourceStepID.String(),
			},
		}
	}
	if err := m.executions.Create(ctx, execution); err != nil {
		return action.EnrollResult{}, fmt.Errorf("create execution: %w", err)
	}

	m.appendLog(ctx, &model.WorkflowExecutionLog{
		ExecutionID: execution.ID,
		EventType:   model.LogEventEnrolled,
		Status:      model.LogStatusSuccess,
		Message:     fmt.Sprintf("Enrolled %s %s in workflow %q", req.RecordType, req.RecordID, workflow.Name),
	})
	if err := m.workflows.IncrementActiveCount(ctx, workflow.ID, 1); err != nil {
		m.logger.Warn("failed to increment active count",
			zap.String("workflow_id", workflow.ID.String()), zap.Error(err))
	}
	metrics.ExecutionsEnrolled.WithLabelValues(req.TenantID.String(), workflow.ID.String()).Inc()

	envelope := queue.StepEnvelope{
		ExecutionID: execution.ID.String(),
		WorkflowID:  workflow.ID.String(),
		TenantID:    req.TenantID.String(),
		StepID:      entry.ID.String(),
		Action:      entry.ActionType,
	}
	if err := m.steps.Publish(ctx, execution.ID.String(), envelope); err != nil {
		return action.EnrollResult{}, fmt.Errorf("enqueue entry step: %w", err)
	}

	return action.EnrollResult{Outcome: action.EnrollCreated, ExecutionID: execution.ID}, nil
}

// Unenroll cancels the record's active executions, excluding the source
// workflow's own execution. A nil TargetWorkflowID cancels across all
// workflows.
func (m *Manager) Unenroll(ctx context.Context, req action.UnenrollRequest) (action.UnenrollResult, error) {
	executions, err := m.executions.ListActiveForRecord(ctx, req.TenantID,
		string(req.RecordType), req.RecordID, req.SourceWorkflowID, req.TargetWorkflowID)
	if err != nil {
		return action.UnenrollResult{}, fmt.Errorf("list active executions: %w", err)
	}

	cancelledAt := m.now().UTC().Format(time.RFC3339)
	cancelled := 0
	for i := range executions {
		execution := &executions[i]
		provenance := model.JSONB{
			"unenrolledBy": map[string]interface{}{
				"workflowId":  req.SourceWorkflowID.String(),
				"executionId": req.SourceExecutionID.String(),
				"stepId":      req.SourceStepID.String(),
			},
			"unenrolledAt": cancelledAt,
		}
		if err := m.executions.Cancel(ctx, execution.ID, provenance); err != nil {
			return action.UnenrollResult{CancelledCount: cancelled}, fmt.Errorf("cancel execution %s: %w", execution.ID, err)
		}
		cancelled++

		m.appendLog(ctx, &model.WorkflowExecutionLog{
			ExecutionID: execution.ID,
			EventType:   model.LogEventUnenrolled,
			Status:      model.LogStatusSuccess,
			Message:     fmt.Sprintf("Unenrolled by workflow %s", req.SourceWorkflowID),
		})
		if err := m.workflows.IncrementActiveCount(ctx, execution.WorkflowID, -1); err != nil {
			m.logger.Warn("failed to decrement active count",
				zap.String("workflow_id", execution.WorkflowID.String()), zap.Error(err))
		}
		metrics.ExecutionsCancelled.WithLabelValues(execution.TenantID.String(), execution.WorkflowID.String()).Inc()
	}

	return action.UnenrollResult{CancelledCount: cancelled}, nil
}

func (m *Manager) appendLog(ctx context.Context, entry *model.WorkflowExecutionLog) {
	if err := m.logs.Append(ctx, entry); err != nil {
		m.logger.Warn("failed to append execution log",
			zap.String("execution_id", entry.ExecutionID.String()),
			zap.String("event_type", entry.EventType),
			zap.Error(err))
	}
}
