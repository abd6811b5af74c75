package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Workflow, error) {
	var workflow model.Workflow
	err := r.db.WithContext(ctx).First(&workflow, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

// ListActiveForTrigger returns the active workflows enrolled by a domain
// event of the given type for the given record kind.
func (r *WorkflowRepository) ListActiveForTrigger(ctx context.Context, tenantID uuid.UUID, triggerEvent, objectType string) ([]model.Workflow, error) {
	var workflows []model.Workflow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND trigger_event = ? AND object_type = ?",
			tenantID, model.WorkflowActive, triggerEvent, objectType).
		Find(&workflows).Error
	return workflows, err
}

func (r *WorkflowRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*model.WorkflowStep, error) {
	var step model.WorkflowStep
	err := r.db.WithContext(ctx).First(&step, "id = ?", stepID).Error
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *WorkflowRepository) EntryStep(ctx context.Context, workflowID uuid.UUID) (*model.WorkflowStep, error) {
	var step model.WorkflowStep
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND is_entry_point = true", workflowID).
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("workflow has no entry step")
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// IncrementActiveCount adjusts the active-execution counter atomically in
// the database; decrements floor at zero.
func (r *WorkflowRepository) IncrementActiveCount(ctx context.Context, id uuid.UUID, delta int) error {
	if delta >= 0 {
		return r.db.WithContext(ctx).
			Model(&model.Workflow{}).
			Where("id = ?", id).
			UpdateColumn("active_count", gorm.Expr("active_count + ?", delta)).Error
	}
	return r.db.WithContext(ctx).
		Model(&model.Workflow{}).
		Where("id = ?", id).
		UpdateColumn("active_count", gorm.Expr("GREATEST(active_count + ?, 0)", delta)).Error
}

func (r *WorkflowRepository) IncrementFailedCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Workflow{}).
		Where("id = ?", id).
		UpdateColumn("failed_count", gorm.Expr("failed_count + 1")).Error
}
