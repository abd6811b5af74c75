package action

import (
	"context"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// SendNotificationExecutor inserts an in-app notification for a staff
// user resolved from config or from the record's owner/assignee fields.
// The realtime emit is best-effort and never fails the action.
type SendNotificationExecutor struct{}

func (e *SendNotificationExecutor) Validate(config model.JSONB) ValidationResult {
	if configString(config, "message") == "" {
		return validationErrors("message is required")
	}
	return validationErrors()
}

func (e *SendNotificationExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	message := configString(config, "message")
	if message == "" {
		return failed("message is required")
	}

	target, ok := configUUID(config, "userId")
	if !ok {
		target, ok = recordUUID(actx.Record, "assigneeId", "assignee_id", "ownerId", "owner_id")
	}
	if !ok || target == uuid.Nil {
		return failed("no resolvable target user")
	}

	notification := &model.Notification{
		TenantID: actx.TenantID,
		UserID:   target,
		Title:    interpolate.Interpolate(configString(config, "title"), actx.Record),
		Message:  interpolate.Interpolate(message, actx.Record),
		Metadata: model.JSONB{
			"workflowId":  actx.WorkflowID.String(),
			"executionId": actx.ExecutionID.String(),
			"recordType":  string(actx.RecordType),
			"recordId":    actx.RecordID.String(),
		},
	}

	if err := actx.Deps.Notifications.CreateNotification(ctx, notification); err != nil {
		return failed("insert notification: %v", err)
	}

	actx.Deps.Realtime.EmitNotification(ctx, notification)

	return succeeded(map[string]interface{}{"userId": target.String()})
}
