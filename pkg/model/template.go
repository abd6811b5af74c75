package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageTemplate is a stored email template referenced by id from
// send_email action configs.
type MessageTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	Subject   string    `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MessageTemplate) TableName() string {
	return "message_templates"
}
