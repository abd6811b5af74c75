// Package engine drives workflow executions: it enrolls records into
// workflows when trigger events arrive, runs one step per queue message,
// and advances or completes the execution afterwards.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// WorkflowStore reads workflow definitions and adjusts their counters.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Workflow, error)
	ListActiveForTrigger(ctx context.Context, tenantID uuid.UUID, triggerEvent, objectType string) ([]model.Workflow, error)
	GetStep(ctx context.Context, stepID uuid.UUID) (*model.WorkflowStep, error)
	EntryStep(ctx context.Context, workflowID uuid.UUID) (*model.WorkflowStep, error)
	IncrementActiveCount(ctx context.Context, id uuid.UUID, delta int) error
	IncrementFailedCount(ctx context.Context, id uuid.UUID) error
}

// ExecutionStore owns the execution state machine rows.
type ExecutionStore interface {
	Create(ctx context.Context, execution *model.WorkflowExecution) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowExecution, error)
	HasActive(ctx context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error)
	LatestFor(ctx context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (*model.WorkflowExecution, error)
	ListActiveForRecord(ctx context.Context, tenantID uuid.UUID, recordType string, recordID uuid.UUID, excludeWorkflowID uuid.UUID, targetWorkflowID *uuid.UUID) ([]model.WorkflowExecution, error)
	AdvanceStep(ctx context.Context, id, stepID uuid.UUID) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, provenance model.JSONB) error
}

// LogStore appends to the execution audit trail.
type LogStore interface {
	Append(ctx context.Context, entry *model.WorkflowExecutionLog) error
}

// TenantStore resolves tenant settings for executor contexts.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
}

// StepPublisher enqueues step work. Satisfied by *queue.Queue.
type StepPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// clock is swapped in tests.
type clock func() time.Time
