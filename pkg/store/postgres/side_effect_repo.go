package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// SideEffectRepository groups the insert-only stores the action executors
// write through: tasks, notifications, communication/audit/webhook logs,
// and template lookups.
type SideEffectRepository struct {
	db *gorm.DB
}

func NewSideEffectRepository(db *gorm.DB) *SideEffectRepository {
	return &SideEffectRepository{db: db}
}

func (r *SideEffectRepository) CreateTask(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *SideEffectRepository) CreateNotification(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *SideEffectRepository) CreateCommunicationLog(ctx context.Context, entry *model.CommunicationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SideEffectRepository) CreateFieldAudit(ctx context.Context, entry *model.FieldAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SideEffectRepository) CreateWebhookLog(ctx context.Context, entry *model.WebhookLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SideEffectRepository) GetEmailTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (string, string, error) {
	var template model.MessageTemplate
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", templateID, tenantID).
		First(&template).Error
	if err != nil {
		return "", "", err
	}
	return template.Subject, template.Body, nil
}
