package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Tenant struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Settings  JSONB     `gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TenantSettings is the decoded shape of Tenant.Settings. Zero values fall
// back to platform defaults at the point of use.
type TenantSettings struct {
	LogRetentionDays       int            `json:"logRetentionDays"`
	ExecutionRetentionDays int            `json:"executionRetentionDays"`
	FailureAlertsEnabled   bool           `json:"failureAlertsEnabled"`
	FailureAlertRecipients []string       `json:"failureAlertRecipients"`
	SMSProvider            ProviderConfig `json:"smsProvider"`
	EmailProvider          ProviderConfig `json:"emailProvider"`
}

type ProviderConfig struct {
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
	From   string `json:"from"`
}

func (c ProviderConfig) Configured() bool {
	return c.Kind != ""
}

func (t *Tenant) DecodeSettings() TenantSettings {
	var settings TenantSettings
	if t.Settings == nil {
		return settings
	}
	raw, err := json.Marshal(t.Settings)
	if err != nil {
		return settings
	}
	_ = json.Unmarshal(raw, &settings)
	return settings
}

// Staff is a tenant user who can be targeted by notifications and tasks.
type Staff struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name      string         `gorm:"not null"`
	Email     string         `gorm:"not null"`
	Roles     pq.StringArray `gorm:"type:text[]"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Staff) TableName() string {
	return "staff"
}
