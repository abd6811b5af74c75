// Package interpolate substitutes {{dotted.path}} placeholders in message
// templates with values looked up from a record. Unresolvable paths degrade
// to the empty string; interpolation never fails.
package interpolate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

const dateLayout = "Jan 2, 2006"

// Interpolate replaces every {{path}} token in template with the value
// resolved from record by sequential key lookup.
func Interpolate(template string, record map[string]interface{}) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		return formatValue(resolve(record, path))
	})
}

// ExtractVariables returns the dotted paths referenced by template, in
// order of first appearance, for authoring-time validation.
func ExtractVariables(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		path := match[1]
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	return paths
}

func resolve(record map[string]interface{}, path string) interface{} {
	var current interface{} = record
	for _, key := range strings.Split(path, ".") {
		mapping, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = mapping[key]
		if !ok {
			return nil
		}
	}
	return current
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(dateLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(dateLayout)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	case map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
