package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// CreateTaskExecutor inserts a staff task due a configurable number of
// days from now, with a best-effort notification to the assignee.
type CreateTaskExecutor struct{}

func (e *CreateTaskExecutor) Validate(config model.JSONB) ValidationResult {
	if configString(config, "title") == "" {
		return validationErrors("title is required")
	}
	return validationErrors()
}

func (e *CreateTaskExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	title := configString(config, "title")
	if title == "" {
		return failed("title is required")
	}

	dueInDays, ok := configFloat(config, "dueInDays")
	if !ok {
		dueInDays = 0
	}
	dueAt := time.Now().UTC().Add(time.Duration(dueInDays*24) * time.Hour)

	recordID := actx.RecordID
	task := &model.Task{
		TenantID:    actx.TenantID,
		Title:       interpolate.Interpolate(title, actx.Record),
		Description: interpolate.Interpolate(configString(config, "description"), actx.Record),
		RecordType:  string(actx.RecordType),
		RecordID:    &recordID,
		Status:      model.TaskOpen,
		DueAt:       &dueAt,
	}
	if assignee, ok := configUUID(config, "assigneeId"); ok {
		task.AssigneeID = &assignee
	}

	if err := actx.Deps.Tasks.CreateTask(ctx, task); err != nil {
		return failed("insert task: %v", err)
	}

	if task.AssigneeID != nil {
		notification := &model.Notification{
			TenantID: actx.TenantID,
			UserID:   *task.AssigneeID,
			Title:    "New task assigned",
			Message:  task.Title,
			Metadata: model.JSONB{"taskId": task.ID.String()},
		}
		if err := actx.Deps.Notifications.CreateNotification(ctx, notification); err != nil {
			actx.Deps.Logger.Warn("failed to notify task assignee", zap.Error(err))
		} else {
			actx.Deps.Realtime.EmitNotification(ctx, notification)
		}
	}

	return succeeded(map[string]interface{}{
		"taskId": task.ID.String(),
		"dueAt":  dueAt.Format(time.RFC3339),
	})
}
