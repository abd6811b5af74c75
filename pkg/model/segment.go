package model

import (
	"time"

	"github.com/google/uuid"
)

type SegmentType string

const (
	SegmentStatic  SegmentType = "static"
	SegmentDynamic SegmentType = "dynamic"
)

// Segment is a named set of records. Static segments carry explicit
// membership rows; dynamic segments are rule-derived and never mutated
// by the engine.
type Segment struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	Name        string      `gorm:"not null"`
	Type        SegmentType `gorm:"type:varchar(20);default:'static'"`
	MemberCount int64       `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SegmentMember rows are unique per (segment, record); double-add and
// double-remove are no-ops.
type SegmentMember struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SegmentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_segment_member"`
	RecordType string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_segment_member"`
	RecordID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_segment_member"`
	CreatedAt  time.Time
}

func (SegmentMember) TableName() string {
	return "segment_members"
}
