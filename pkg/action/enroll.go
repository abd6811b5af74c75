package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// UnenrollAllTarget selects every workflow except the invoking one.
const UnenrollAllTarget = "all"

// EnrollInWorkflowExecutor enrolls the current record into another
// workflow. Guard evaluation lives in the enrollment manager; this
// executor maps its outcome onto the action result shape.
type EnrollInWorkflowExecutor struct{}

func (e *EnrollInWorkflowExecutor) Validate(config model.JSONB) ValidationResult {
	if _, ok := configUUID(config, "targetWorkflowId"); !ok {
		return validationErrors("targetWorkflowId is required")
	}
	return validationErrors()
}

func (e *EnrollInWorkflowExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	targetID, ok := configUUID(config, "targetWorkflowId")
	if !ok {
		return failed("targetWorkflowId is required")
	}

	result, err := actx.Deps.Enroller.Enroll(ctx, EnrollRequest{
		TargetWorkflowID:  targetID,
		SourceWorkflowID:  actx.WorkflowID,
		SourceExecutionID: actx.ExecutionID,
		SourceStepID:      actx.StepID,
		TenantID:          actx.TenantID,
		RecordType:        actx.RecordType,
		RecordID:          actx.RecordID,
	})
	if err != nil {
		return failed("enroll in workflow %s: %v", targetID, err)
	}

	switch result.Outcome {
	case EnrollCreated:
		return succeeded(map[string]interface{}{
			"executionId": result.ExecutionID.String(),
		})
	case EnrollRejectedCircular:
		return failed("circular enrollment: workflow cannot enroll records into itself")
	case EnrollRejectedType:
		return failed("record type %q does not match target workflow object type", actx.RecordType)
	case EnrollSkippedInactive:
		return skipped("target workflow is not active")
	case EnrollSkippedActive:
		return skipped("record already has an active execution in target workflow")
	case EnrollSkippedPolicy:
		return skipped("target workflow does not allow re-enrollment")
	case EnrollSkippedCooldown:
		out := skipped("re-enrollment delay has not elapsed")
		if result.NextEligibleDate != nil {
			out.Output = map[string]interface{}{
				"nextEligibleDate": result.NextEligibleDate.UTC().Format(time.RFC3339),
			}
		}
		return out
	default:
		return failed("unexpected enrollment outcome %q", result.Outcome)
	}
}

// UnenrollFromWorkflowExecutor cancels the record's active executions in a
// target workflow, or in every workflow other than the invoking one when
// the target is "all". Absence of a match is a skip, not an error.
type UnenrollFromWorkflowExecutor struct{}

func (e *UnenrollFromWorkflowExecutor) Validate(config model.JSONB) ValidationResult {
	raw := configString(config, "targetWorkflowId")
	if raw == "" {
		return validationErrors("targetWorkflowId is required")
	}
	if raw == UnenrollAllTarget {
		return validationErrors()
	}
	if _, err := uuid.Parse(raw); err != nil {
		return validationErrors("targetWorkflowId must be a workflow id or \"all\"")
	}
	return validationErrors()
}

func (e *UnenrollFromWorkflowExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	raw := configString(config, "targetWorkflowId")
	if raw == "" {
		return failed("targetWorkflowId is required")
	}

	req := UnenrollRequest{
		SourceWorkflowID:  actx.WorkflowID,
		SourceExecutionID: actx.ExecutionID,
		SourceStepID:      actx.StepID,
		TenantID:          actx.TenantID,
		RecordType:        actx.RecordType,
		RecordID:          actx.RecordID,
	}
	if raw != UnenrollAllTarget {
		targetID, err := uuid.Parse(raw)
		if err != nil {
			return failed("invalid targetWorkflowId %q", raw)
		}
		req.TargetWorkflowID = &targetID
	}

	result, err := actx.Deps.Enroller.Unenroll(ctx, req)
	if err != nil {
		return failed("unenroll: %v", err)
	}

	if result.CancelledCount == 0 {
		return skipped("no matching active executions")
	}

	return succeeded(map[string]interface{}{
		"cancelledCount": result.CancelledCount,
		"cancelledAt":    time.Now().UTC().Format(time.RFC3339),
	})
}
