package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// The engine treats business records as opaque field mappings keyed by
// (record_type, record_id). These models carry only the columns the
// executors read or update; the CRUD services own everything else.

type Pet struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	OwnerID    *uuid.UUID `gorm:"type:uuid;index"`
	Name       string    `gorm:"not null"`
	Species    string    `gorm:"type:varchar(50)"`
	Breed      string
	Tags       pq.StringArray `gorm:"type:text[]"`
	Fields     JSONB          `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

type Owner struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName    string
	LastName     string
	Email        string `gorm:"index"`
	Phone        string
	EmailConsent *bool
	SMSConsent   *bool
	Fields       JSONB `gorm:"type:jsonb;default:'{}'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

type Booking struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	PetID      *uuid.UUID `gorm:"type:uuid;index"`
	OwnerID    *uuid.UUID `gorm:"type:uuid;index"`
	AssigneeID *uuid.UUID `gorm:"type:uuid"`
	Status     string     `gorm:"type:varchar(30);index"`
	StartDate  *time.Time
	EndDate    *time.Time
	Fields     JSONB `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}
