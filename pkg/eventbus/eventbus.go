// Package eventbus fans engine events out to connected app clients over
// redis pub/sub. Every publish is best-effort: failures are logged and
// never surfaced to the caller.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

const (
	ChannelNotification = "bb:events:notification"
	ChannelExecution    = "bb:events:execution"
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type NotificationEvent struct {
	NotificationID string `json:"notification_id"`
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	Title          string `json:"title,omitempty"`
	Message        string `json:"message"`
}

type ExecutionEvent struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	TenantID    string `json:"tenant_id"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

type Bus struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewBus(client redis.UniversalClient, logger *zap.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}, nil
}

func (b *Bus) publish(ctx context.Context, channel string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("failed to marshal bus event", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Warn("failed to publish bus event",
			zap.String("channel", channel), zap.Error(err))
	}
}

// EmitNotification pushes a freshly inserted notification to connected
// clients.
func (b *Bus) EmitNotification(ctx context.Context, notification *model.Notification) {
	event, err := NewEvent("notification_created", NotificationEvent{
		NotificationID: notification.ID.String(),
		TenantID:       notification.TenantID.String(),
		UserID:         notification.UserID.String(),
		Title:          notification.Title,
		Message:        notification.Message,
	})
	if err != nil {
		b.logger.Warn("failed to build notification event", zap.Error(err))
		return
	}
	b.publish(ctx, ChannelNotification, event)
}

// EmitExecutionStatus announces an execution status transition.
func (b *Bus) EmitExecutionStatus(ctx context.Context, execution *model.WorkflowExecution, message string) {
	event, err := NewEvent("execution_status_changed", ExecutionEvent{
		ExecutionID: execution.ID.String(),
		WorkflowID:  execution.WorkflowID.String(),
		TenantID:    execution.TenantID.String(),
		Status:      string(execution.Status),
		Message:     message,
	})
	if err != nil {
		b.logger.Warn("failed to build execution event", zap.Error(err))
		return
	}
	b.publish(ctx, ChannelExecution, event)
}

// Subscribe returns a channel of decoded events for the given channels.
// It drains until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) <-chan *Event {
	sub := b.client.Subscribe(ctx, channels...)
	ch := make(chan *Event, 100)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			ch <- &event
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch
}
