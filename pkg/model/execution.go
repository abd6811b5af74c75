package model

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
// Terminal executions are immutable except for retention deletion.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// IsActive reports whether the execution still owns queued or pending work.
func (s ExecutionStatus) IsActive() bool {
	return s == ExecutionRunning || s == ExecutionWaiting
}

// WorkflowExecution is one enrollment of a record into a workflow.
// Rows are owned exclusively by the enrollment manager and the
// dead-letter processor.
type WorkflowExecution struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	WorkflowID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_exec_workflow_record"`
	Workflow      *Workflow       `gorm:"foreignKey:WorkflowID"`
	RecordType    string          `gorm:"type:varchar(50);not null;index:idx_exec_workflow_record"`
	RecordID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_exec_workflow_record"`
	Status        ExecutionStatus `gorm:"type:varchar(20);default:'running';index"`
	CurrentStepID *uuid.UUID      `gorm:"type:uuid"`
	StartedAt     time.Time       `gorm:"autoCreateTime"`
	CompletedAt   *time.Time      `gorm:"index"`
	EndedAt       *time.Time
	ErrorDetails  JSONB `gorm:"type:jsonb"`
	Metadata      JSONB `gorm:"type:jsonb;default:'{}'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (WorkflowExecution) TableName() string {
	return "workflow_executions"
}

const (
	LogEventEnrolled       = "enrolled"
	LogEventUnenrolled     = "unenrolled"
	LogEventActionExecuted = "action_executed"
	LogEventActionSkipped  = "action_skipped"
	LogEventCompleted      = "completed"
	LogEventFailed         = "failed"
)

const (
	LogStatusSuccess = "success"
	LogStatusFailure = "failure"
)

// WorkflowExecutionLog is the append-only audit trail. Rows are only
// inserted, and later bulk-deleted by retention.
type WorkflowExecutionLog struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	ExecutionID uuid.UUID  `gorm:"type:uuid;not null;index:idx_exec_logs_time"`
	StepID      *uuid.UUID `gorm:"type:uuid"`
	EventType   string     `gorm:"type:varchar(50);not null"`
	Status      string     `gorm:"type:varchar(20);not null"`
	Message     string     `gorm:"type:text"`
	Metadata    JSONB      `gorm:"type:jsonb"`
	StartedAt   time.Time  `gorm:"not null;index:idx_exec_logs_time"`
}

func (WorkflowExecutionLog) TableName() string {
	return "workflow_execution_logs"
}
