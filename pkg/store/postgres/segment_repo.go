package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type SegmentRepository struct {
	db *gorm.DB
}

func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

func (r *SegmentRepository) GetSegment(ctx context.Context, id uuid.UUID) (*model.Segment, error) {
	var segment model.Segment
	err := r.db.WithContext(ctx).First(&segment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// AddMember inserts a membership row if absent and bumps the member count
// atomically. Returns false when the record was already a member.
func (r *SegmentRepository) AddMember(ctx context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	member := &model.SegmentMember{
		SegmentID:  segmentID,
		RecordType: recordType,
		RecordID:   recordID,
	}

	var inserted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(member)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true
		return tx.Model(&model.Segment{}).
			Where("id = ?", segmentID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error
	})
	return inserted, err
}

// RemoveMember deletes a membership row if present and decrements the
// member count. Returns false when the record was not a member.
func (r *SegmentRepository) RemoveMember(ctx context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("segment_id = ? AND record_type = ? AND record_id = ?", segmentID, recordType, recordID).
			Delete(&model.SegmentMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&model.Segment{}).
			Where("id = ?", segmentID).
			UpdateColumn("member_count", gorm.Expr("GREATEST(member_count - 1, 0)")).Error
	})
	return removed, err
}
