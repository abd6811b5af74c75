package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type ExecutionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository(db *gorm.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

func (r *ExecutionLogRepository) Append(ctx context.Context, entry *model.WorkflowExecutionLog) error {
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID uuid.UUID, limit int) ([]model.WorkflowExecutionLog, error) {
	var logs []model.WorkflowExecutionLog
	query := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("started_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	return logs, err
}

// DeleteBefore removes log rows older than the cutoff whose parent
// execution belongs to the tenant, returning the number of rows removed.
func (r *ExecutionLogRepository) DeleteBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		DELETE FROM workflow_execution_logs
		WHERE started_at < ?
		  AND execution_id IN (
			SELECT id FROM workflow_executions WHERE tenant_id = ?
		  )
	`, cutoff, tenantID)
	return result.RowsAffected, result.Error
}
