package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is a staff to-do created by the create_task action.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title       string     `gorm:"not null"`
	Description string     `gorm:"type:text"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid;index"`
	RecordType  string     `gorm:"type:varchar(50)"`
	RecordID    *uuid.UUID `gorm:"type:uuid"`
	Status      TaskStatus `gorm:"type:varchar(20);default:'open';index"`
	DueAt       *time.Time `gorm:"index"`
	CreatedBy   string     `gorm:"type:varchar(50);default:'workflow'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification is an in-app notification row inserted by the
// send_notification action and fanned out best-effort over the event bus.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string
	Message   string `gorm:"type:text;not null"`
	Read      bool   `gorm:"default:false"`
	Metadata  JSONB  `gorm:"type:jsonb"`
	CreatedAt time.Time
}
