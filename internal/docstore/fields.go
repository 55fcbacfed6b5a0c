// ABOUTME: Maps record and payload field names to SQL expressions
// ABOUTME: Used by Find selectors and CreateIndexes composite indexes

package docstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// fieldExpr returns the SQL expression for a field name. Record columns are
// addressed directly; anything else is a path into the JSON payload.
func fieldExpr(field string) (string, error) {
	switch field {
	case "table":
		return "table_name", nil
	case "id", "_id":
		return "id", nil
	case "createdAt":
		return "created_at", nil
	case "updatedAt":
		return "updated_at", nil
	}

	path := strings.TrimPrefix(field, "payload.")
	if !fieldPath.MatchString(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return fmt.Sprintf("json_extract(payload, '$.%s')", path), nil
}

// indexName derives a stable index name from its field list.
func indexName(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strings.ReplaceAll(strings.TrimPrefix(f, "payload."), ".", "_")
	}
	return "idx_documents_" + strings.Join(parts, "__")
}

// bindValue converts a selector value into something both SQLite drivers
// compare equal to the output of json_extract.
func bindValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return formatTime(x)
	default:
		return v
	}
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
