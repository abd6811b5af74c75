package action

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// Dispatcher routes step work to the executor registered for its action
// type. The registry is built once at startup; unknown types fail closed
// with a failure result so a single bad step cannot crash the consumer
// loop.
type Dispatcher struct {
	executors map[Type]Executor
	logger    *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		executors: map[Type]Executor{
			TypeSendSMS:              &SendSMSExecutor{},
			TypeSendEmail:            &SendEmailExecutor{},
			TypeSendNotification:     &SendNotificationExecutor{},
			TypeCreateTask:           &CreateTaskExecutor{},
			TypeUpdateField:          &UpdateFieldExecutor{},
			TypeAddToSegment:         &AddToSegmentExecutor{},
			TypeRemoveFromSegment:    &RemoveFromSegmentExecutor{},
			TypeEnrollInWorkflow:     &EnrollInWorkflowExecutor{},
			TypeUnenrollFromWorkflow: &UnenrollFromWorkflowExecutor{},
			TypeWebhook:              &WebhookExecutor{},
		},
		logger: logger,
	}
}

// Execute runs the executor for actionType. Panics are recovered and
// converted into the same failure shape, preserving the message.
func (d *Dispatcher) Execute(ctx context.Context, actionType string, config model.JSONB, actx *Context) (result Result) {
	parsed, err := ParseType(actionType)
	if err != nil {
		return Result{Success: false, Error: "Unknown action type"}
	}

	executor, ok := d.executors[parsed]
	if !ok {
		return Result{Success: false, Error: "Unknown action type"}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("action executor panicked",
				zap.String("action_type", actionType),
				zap.Any("panic", recovered),
			)
			result = Result{Success: false, Error: fmt.Sprintf("%v", recovered)}
		}
	}()

	return executor.Execute(ctx, config, actx)
}

// Validate checks an action config at authoring time. It never touches a
// record or the database.
func (d *Dispatcher) Validate(actionType string, config model.JSONB) ValidationResult {
	parsed, err := ParseType(actionType)
	if err != nil {
		return validationErrors("Unknown action type")
	}

	executor, ok := d.executors[parsed]
	if !ok {
		return validationErrors("Unknown action type")
	}

	return executor.Validate(config)
}
