package action

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

func configString(config model.JSONB, keys ...string) string {
	for _, key := range keys {
		if value, ok := config[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func configFloat(config model.JSONB, key string) (float64, bool) {
	switch value := config[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func configUUID(config model.JSONB, key string) (uuid.UUID, bool) {
	raw, ok := config[key].(string)
	if !ok {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}

func recordString(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func recordUUID(record map[string]interface{}, keys ...string) (uuid.UUID, bool) {
	raw := recordString(record, keys...)
	if raw == "" {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}

// consentRevoked is true only when the field is explicitly false; missing
// consent fields do not block sending.
func consentRevoked(record map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if value, ok := record[key].(bool); ok && !value {
			return true
		}
	}
	return false
}

// coerceNumber applies the update_field numeric semantics: operands parse
// with a floating-point parse and non-numeric values are treated as 0.
func coerceNumber(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
