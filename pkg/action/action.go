// Package action holds the closed set of workflow step executors and the
// dispatcher that routes step work to them.
package action

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

type Type string

const (
	TypeSendSMS              Type = "send_sms"
	TypeSendEmail            Type = "send_email"
	TypeSendNotification     Type = "send_notification"
	TypeCreateTask           Type = "create_task"
	TypeUpdateField          Type = "update_field"
	TypeAddToSegment         Type = "add_to_segment"
	TypeRemoveFromSegment    Type = "remove_from_segment"
	TypeEnrollInWorkflow     Type = "enroll_in_workflow"
	TypeUnenrollFromWorkflow Type = "unenroll_from_workflow"
	TypeWebhook              Type = "webhook"
)

var ErrUnknownActionType = fmt.Errorf("unknown action type")

func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeSendSMS, TypeSendEmail, TypeSendNotification, TypeCreateTask,
		TypeUpdateField, TypeAddToSegment, TypeRemoveFromSegment,
		TypeEnrollInWorkflow, TypeUnenrollFromWorkflow, TypeWebhook:
		return Type(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActionType, value)
	}
}

// Result is the outcome of one executor invocation. A failed result feeds
// back to the transport as a handler error so the message redelivers.
type Result struct {
	Success bool                   `json:"success"`
	Skipped bool                   `json:"skipped,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Output  map[string]interface{} `json:"output,omitempty"`
}

func succeeded(output map[string]interface{}) Result {
	return Result{Success: true, Output: output}
}

func skipped(reason string) Result {
	return Result{Success: true, Skipped: true, Reason: reason}
}

func failed(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ValidationResult is returned at workflow authoring time, before any
// execution references the step.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func validationErrors(errs ...string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Executor performs one kind of side effect. Validate must be callable
// without a live record or database handle.
type Executor interface {
	Execute(ctx context.Context, config model.JSONB, actx *Context) Result
	Validate(config model.JSONB) ValidationResult
}

// Context supplies an executor with the target record and the handles it
// may write through.
type Context struct {
	TenantID    uuid.UUID
	WorkflowID  uuid.UUID
	ExecutionID uuid.UUID
	StepID      uuid.UUID
	RecordType  record.Type
	RecordID    uuid.UUID
	Record      map[string]interface{}
	Tenant      model.TenantSettings
	Deps        Deps
}

// Deps are the data-access and side-channel handles shared by all
// executors. Stores are interfaces so tests can substitute fakes.
type Deps struct {
	Records        *record.Registry
	Segments       SegmentStore
	Tasks          TaskStore
	Notifications  NotificationStore
	Comms          CommunicationStore
	Audits         AuditStore
	WebhookLogs    WebhookStore
	Templates      TemplateStore
	Enroller       Enroller
	SMS            provider.SMSProvider
	Email          provider.EmailProvider
	Realtime       RealtimeEmitter
	HTTPClient     *http.Client
	WebhookTimeout time.Duration
	Logger         *zap.Logger
}

type SegmentStore interface {
	GetSegment(ctx context.Context, id uuid.UUID) (*model.Segment, error)
	AddMember(ctx context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error)
	RemoveMember(ctx context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *model.Notification) error
}

type CommunicationStore interface {
	CreateCommunicationLog(ctx context.Context, entry *model.CommunicationLog) error
}

type AuditStore interface {
	CreateFieldAudit(ctx context.Context, entry *model.FieldAuditLog) error
}

type WebhookStore interface {
	CreateWebhookLog(ctx context.Context, entry *model.WebhookLog) error
}

type TemplateStore interface {
	GetEmailTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (subject, body string, err error)
}

// RealtimeEmitter fans a notification out to connected clients. Emission
// is best-effort; implementations log failures and never return them.
type RealtimeEmitter interface {
	EmitNotification(ctx context.Context, notification *model.Notification)
}

// Enroller creates and cancels workflow executions on behalf of the
// enroll/unenroll actions. The engine's enrollment manager implements it.
type Enroller interface {
	Enroll(ctx context.Context, req EnrollRequest) (EnrollResult, error)
	Unenroll(ctx context.Context, req UnenrollRequest) (UnenrollResult, error)
}

type EnrollRequest struct {
	TargetWorkflowID  uuid.UUID
	SourceWorkflowID  uuid.UUID
	SourceExecutionID uuid.UUID
	SourceStepID      uuid.UUID
	TenantID          uuid.UUID
	RecordType        record.Type
	RecordID          uuid.UUID
}

type EnrollOutcome string

const (
	EnrollCreated          EnrollOutcome = "created"
	EnrollRejectedCircular EnrollOutcome = "rejected_circular"
	EnrollRejectedType     EnrollOutcome = "rejected_type_mismatch"
	EnrollSkippedInactive  EnrollOutcome = "skipped_inactive"
	EnrollSkippedActive    EnrollOutcome = "skipped_already_active"
	EnrollSkippedCooldown  EnrollOutcome = "skipped_cooldown"
	EnrollSkippedPolicy    EnrollOutcome = "skipped_reenrollment_disabled"
)

type EnrollResult struct {
	Outcome          EnrollOutcome
	ExecutionID      uuid.UUID
	NextEligibleDate *time.Time
}

type UnenrollRequest struct {
	// TargetWorkflowID is empty when the action targets all workflows.
	TargetWorkflowID  *uuid.UUID
	SourceWorkflowID  uuid.UUID
	SourceExecutionID uuid.UUID
	SourceStepID      uuid.UUID
	TenantID          uuid.UUID
	RecordType        record.Type
	RecordID          uuid.UUID
}

type UnenrollResult struct {
	CancelledCount int
}
