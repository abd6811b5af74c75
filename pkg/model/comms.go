package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// CommunicationLog records every outbound SMS/email the executors send.
type CommunicationLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Channel    string     `gorm:"type:varchar(20);not null"`
	Recipient  string     `gorm:"not null"`
	Subject    string
	Body       string     `gorm:"type:text"`
	Status     string     `gorm:"type:varchar(20);not null"`
	RecordType string     `gorm:"type:varchar(50)"`
	RecordID   *uuid.UUID `gorm:"type:uuid"`
	WorkflowID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt  time.Time
}

func (CommunicationLog) TableName() string {
	return "communication_logs"
}

// FieldAuditLog captures before/after values for update_field mutations.
type FieldAuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	RecordType string    `gorm:"type:varchar(50);not null"`
	RecordID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Field      string    `gorm:"not null"`
	Operation  string    `gorm:"type:varchar(20);not null"`
	Before     JSONB     `gorm:"type:jsonb"`
	After      JSONB     `gorm:"type:jsonb"`
	ActorType  string    `gorm:"type:varchar(50);default:'workflow'"`
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time
}

func (FieldAuditLog) TableName() string {
	return "field_audit_logs"
}

// WebhookLog persists the full request/response pair for every webhook
// call, regardless of outcome.
type WebhookLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index"`
	ExecutionID     *uuid.UUID `gorm:"type:uuid;index"`
	URL             string    `gorm:"not null"`
	Method          string    `gorm:"type:varchar(10);not null"`
	RequestHeaders  JSONB     `gorm:"type:jsonb"`
	RequestBody     string    `gorm:"type:text"`
	StatusCode      int
	ResponseBody    string `gorm:"type:text"`
	Error           string
	DurationMs      int64
	CreatedAt       time.Time
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}
