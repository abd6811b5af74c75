package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *model.WorkflowExecution) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowExecution, error) {
	var execution model.WorkflowExecution
	err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

// HasActive reports whether an execution in running/waiting exists for the
// workflow/record pair.
func (r *ExecutionRepository) HasActive(ctx context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("workflow_id = ? AND record_type = ? AND record_id = ? AND status IN ?",
			workflowID, recordType, recordID,
			[]model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Count(&count).Error
	return count > 0, err
}

// LatestFor returns the most recent execution for the workflow/record
// pair, or nil when none exists.
func (r *ExecutionRepository) LatestFor(ctx context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (*model.WorkflowExecution, error) {
	var execution model.WorkflowExecution
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND record_type = ? AND record_id = ?", workflowID, recordType, recordID).
		Order("created_at DESC").
		First(&execution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

// ListActiveForRecord returns active executions for a record, excluding
// the given workflow and optionally restricted to a target workflow.
func (r *ExecutionRepository) ListActiveForRecord(ctx context.Context, tenantID uuid.UUID, recordType string, recordID uuid.UUID, excludeWorkflowID uuid.UUID, targetWorkflowID *uuid.UUID) ([]model.WorkflowExecution, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND record_type = ? AND record_id = ? AND status IN ?",
			tenantID, recordType, recordID,
			[]model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Where("workflow_id <> ?", excludeWorkflowID)

	if targetWorkflowID != nil {
		query = query.Where("workflow_id = ?", *targetWorkflowID)
	}

	var executions []model.WorkflowExecution
	err := query.Find(&executions).Error
	return executions, err
}

// AdvanceStep moves an active execution to its next step and returns it to
// the waiting state until the step message is picked up.
func (r *ExecutionRepository) AdvanceStep(ctx context.Context, id, stepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("id = ? AND status IN ?", id,
			[]model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Updates(map[string]interface{}{
			"current_step_id": stepID,
			"status":          model.ExecutionWaiting,
			"updated_at":      time.Now(),
		}).Error
}

func (r *ExecutionRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionWaiting).
		Update("status", model.ExecutionRunning).Error
}

func (r *ExecutionRepository) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("id = ? AND status IN ?", id,
			[]model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Updates(map[string]interface{}{
			"status":       model.ExecutionCompleted,
			"completed_at": &now,
			"ended_at":     &now,
		}).Error
}

// Cancel sets an active execution to cancelled and merges unenrollment
// provenance into its metadata.
func (r *ExecutionRepository) Cancel(ctx context.Context, id uuid.UUID, provenance model.JSONB) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":   model.ExecutionCancelled,
		"ended_at": &now,
	}
	if len(provenance) > 0 {
		raw, err := provenance.Value()
		if err != nil {
			return err
		}
		updates["metadata"] = gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", raw)
	}
	return r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("id = ? AND status IN ?", id,
			[]model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Updates(updates).Error
}

// MarkFailed transitions an execution to failed with error details. The
// update is idempotent and terminal states are immutable: only an
// execution still in an active state transitions, and the return value
// reports whether this call performed the transition.
func (r *ExecutionRepository) MarkFailed(ctx context.Context, id uuid.UUID, details model.JSONB) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("id = ? AND status IN ?", id, []model.ExecutionStatus{model.ExecutionRunning, model.ExecutionWaiting}).
		Updates(map[string]interface{}{
			"status":        model.ExecutionFailed,
			"completed_at":  &now,
			"ended_at":      &now,
			"error_details": details,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ExecutionRepository) ListByStatus(ctx context.Context, tenantID uuid.UUID, status *model.ExecutionStatus, limit, offset int) ([]model.WorkflowExecution, int64, error) {
	var executions []model.WorkflowExecution
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&executions).Error
	return executions, total, err
}

// DeleteTerminalBefore removes the tenant's terminal executions whose
// completion precedes the cutoff, returning the number of rows removed.
func (r *ExecutionRepository) DeleteTerminalBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND COALESCE(completed_at, ended_at) < ?",
			tenantID,
			[]model.ExecutionStatus{model.ExecutionCompleted, model.ExecutionFailed, model.ExecutionCancelled},
			cutoff).
		Delete(&model.WorkflowExecution{})
	return result.RowsAffected, result.Error
}
