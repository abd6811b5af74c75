package action

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

const (
	opSet       = "set"
	opClear     = "clear"
	opIncrement = "increment"
	opDecrement = "decrement"
	opAppend    = "append"
	opToggle    = "toggle"
)

var fieldOperations = map[string]struct{}{
	opSet: {}, opClear: {}, opIncrement: {}, opDecrement: {}, opAppend: {}, opToggle: {},
}

// UpdateFieldExecutor computes a new field value from the record's current
// value and persists it through the typed repository for the record kind,
// with a before/after audit entry.
type UpdateFieldExecutor struct{}

func (e *UpdateFieldExecutor) Validate(config model.JSONB) ValidationResult {
	var errs []string
	if configString(config, "field") == "" {
		errs = append(errs, "field is required")
	}
	operation := configString(config, "operation")
	if operation == "" {
		errs = append(errs, "operation is required")
	} else if _, ok := fieldOperations[operation]; !ok {
		errs = append(errs, fmt.Sprintf("unknown operation %q", operation))
	}
	return validationErrors(errs...)
}

func (e *UpdateFieldExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	field := configString(config, "field")
	operation := configString(config, "operation")
	if field == "" || operation == "" {
		return failed("field and operation are required")
	}
	if _, ok := fieldOperations[operation]; !ok {
		return failed("unknown operation %q", operation)
	}

	repo, err := actx.Deps.Records.Resolve(actx.RecordType)
	if err != nil {
		return failed("record type %q has no storage mapping", actx.RecordType)
	}

	current := actx.Record[field]
	newValue, err := applyFieldOperation(operation, current, config["value"], actx.Record)
	if err != nil {
		return failed("%v", err)
	}

	if err := repo.UpdateField(ctx, actx.TenantID, actx.RecordID, field, newValue); err != nil {
		return failed("update %s.%s: %v", actx.RecordType, field, err)
	}

	audit := &model.FieldAuditLog{
		TenantID:   actx.TenantID,
		RecordType: string(actx.RecordType),
		RecordID:   actx.RecordID,
		Field:      field,
		Operation:  operation,
		Before:     model.JSONB{"value": current},
		After:      model.JSONB{"value": newValue},
	}
	if err := actx.Deps.Audits.CreateFieldAudit(ctx, audit); err != nil {
		actx.Deps.Logger.Warn("failed to write field audit log", zap.Error(err))
	}

	return succeeded(map[string]interface{}{
		"field":    field,
		"newValue": newValue,
	})
}

func applyFieldOperation(operation string, current, configured interface{}, record map[string]interface{}) (interface{}, error) {
	switch operation {
	case opSet:
		if text, ok := configured.(string); ok {
			return interpolate.Interpolate(text, record), nil
		}
		return configured, nil
	case opClear:
		return nil, nil
	case opIncrement, opDecrement:
		delta := 1.0
		if configured != nil {
			delta = coerceNumber(configured)
		}
		if operation == opDecrement {
			delta = -delta
		}
		return coerceNumber(current) + delta, nil
	case opAppend:
		suffix := ""
		if text, ok := configured.(string); ok {
			suffix = interpolate.Interpolate(text, record)
		} else if configured != nil {
			suffix = fmt.Sprintf("%v", configured)
		}
		if list, ok := current.([]interface{}); ok {
			return append(append([]interface{}{}, list...), suffix), nil
		}
		if current == nil {
			return suffix, nil
		}
		return fmt.Sprintf("%v%s", current, suffix), nil
	case opToggle:
		if flag, ok := current.(bool); ok {
			return !flag, nil
		}
		return true, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}
}
