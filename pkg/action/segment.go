package action

import (
	"context"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

// AddToSegmentExecutor inserts a membership row into a static segment.
// Membership is unique; adding an existing member is a no-op skip.
type AddToSegmentExecutor struct{}

func (e *AddToSegmentExecutor) Validate(config model.JSONB) ValidationResult {
	if _, ok := configUUID(config, "segmentId"); !ok {
		return validationErrors("segmentId is required")
	}
	return validationErrors()
}

func (e *AddToSegmentExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	segmentID, ok := configUUID(config, "segmentId")
	if !ok {
		return failed("segmentId is required")
	}

	segment, err := actx.Deps.Segments.GetSegment(ctx, segmentID)
	if err != nil {
		return failed("segment %s not found", segmentID)
	}
	if segment.Type != model.SegmentStatic {
		return failed("segment %s is dynamic; membership is rule-derived", segmentID)
	}

	added, err := actx.Deps.Segments.AddMember(ctx, segmentID, string(actx.RecordType), actx.RecordID)
	if err != nil {
		return failed("add segment member: %v", err)
	}
	if !added {
		return skipped("record is already a member")
	}

	return succeeded(map[string]interface{}{"segmentId": segmentID.String()})
}

// RemoveFromSegmentExecutor deletes a membership row. Removing an absent
// member is a no-op skip.
type RemoveFromSegmentExecutor struct{}

func (e *RemoveFromSegmentExecutor) Validate(config model.JSONB) ValidationResult {
	if _, ok := configUUID(config, "segmentId"); !ok {
		return validationErrors("segmentId is required")
	}
	return validationErrors()
}

func (e *RemoveFromSegmentExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	segmentID, ok := configUUID(config, "segmentId")
	if !ok {
		return failed("segmentId is required")
	}

	segment, err := actx.Deps.Segments.GetSegment(ctx, segmentID)
	if err != nil {
		return failed("segment %s not found", segmentID)
	}
	if segment.Type != model.SegmentStatic {
		return failed("segment %s is dynamic; membership is rule-derived", segmentID)
	}

	removed, err := actx.Deps.Segments.RemoveMember(ctx, segmentID, string(actx.RecordType), actx.RecordID)
	if err != nil {
		return failed("remove segment member: %v", err)
	}
	if !removed {
		return skipped("record is not a member")
	}

	return succeeded(map[string]interface{}{"segmentId": segmentID.String()})
}
