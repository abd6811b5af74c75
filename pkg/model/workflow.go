package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type WorkflowStatus string

const (
	WorkflowActive   WorkflowStatus = "active"
	WorkflowInactive WorkflowStatus = "inactive"
	WorkflowDraft    WorkflowStatus = "draft"
)

// Workflow is a tenant-scoped automation definition. Definitions are
// authored by configuration tooling; the engine only reads them and
// adjusts the active/failed counters.
type Workflow struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant       *Tenant   `gorm:"foreignKey:TenantID"`
	Name         string    `gorm:"not null"`
	Description  string
	ObjectType   string         `gorm:"type:varchar(50);not null;index"`
	TriggerEvent string         `gorm:"type:varchar(100);index"`
	Status       WorkflowStatus `gorm:"type:varchar(20);default:'draft';index"`
	Settings     JSONB          `gorm:"type:jsonb;default:'{}'"`
	ActiveCount  int64          `gorm:"default:0"`
	FailedCount  int64          `gorm:"default:0"`
	Steps        []WorkflowStep `gorm:"foreignKey:WorkflowID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkflowSettings is the decoded shape of Workflow.Settings.
type WorkflowSettings struct {
	AllowReenrollment     bool `json:"allowReenrollment"`
	ReenrollmentDelayDays int  `json:"reenrollmentDelayDays"`
}

func (w *Workflow) DecodeSettings() WorkflowSettings {
	var settings WorkflowSettings
	if w.Settings == nil {
		return settings
	}
	raw, err := json.Marshal(w.Settings)
	if err != nil {
		return settings
	}
	_ = json.Unmarshal(raw, &settings)
	return settings
}

// WorkflowStep is an ordered node within a workflow. Steps are immutable
// once an execution references them.
type WorkflowStep struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	WorkflowID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Workflow     *Workflow  `gorm:"foreignKey:WorkflowID"`
	IsEntryPoint bool       `gorm:"default:false"`
	ActionType   string     `gorm:"type:varchar(50);not null"`
	ActionConfig JSONB      `gorm:"type:jsonb;default:'{}'"`
	NextStepID   *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (WorkflowStep) TableName() string {
	return "workflow_steps"
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) GormDataType() string {
	return "jsonb"
}
