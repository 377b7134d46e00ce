package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// SortKey is one ORDER BY entry. On the wire it is either a bare field name
// (ascending) or {"field": ..., "order": "asc"|"desc"}; the object form must
// carry an order.
type SortKey struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

func (k *SortKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var field string
		if err := json.Unmarshal(data, &field); err != nil {
			return err
		}
		*k = SortKey{Field: field, Order: "asc"}
		return nil
	}

	var obj struct {
		Field string `json:"field"`
		Order any    `json:"order"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("sort key: %w", err)
	}
	k.Field = obj.Field
	switch o := obj.Order.(type) {
	case string:
		k.Order = o
	case nil:
		k.Order = ""
	default:
		// Kept verbatim so that validation rejects it.
		k.Order = fmt.Sprint(o)
	}
	return nil
}

// ParseSort decodes a JSON array of sort keys.
func ParseSort(data []byte) ([]SortKey, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var keys []SortKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse sort: %w", err)
	}
	return keys, nil
}

// orderDir validates an order token. Unlike filter operators there is no
// fallback: anything but asc or desc is rejected.
func orderDir(field, order string) (string, error) {
	switch strings.ToLower(order) {
	case "asc":
		return "ASC", nil
	case "desc":
		return "DESC", nil
	}
	return "", invalidSortOrder(field, order)
}

// BuildOrderBy compiles sort keys to ORDER BY clauses, ending with the primary
// key unless the caller already sorts by it, so that pages are reproducible.
func BuildOrderBy(keys []SortKey) ([]string, error) {
	clauses := make([]string, 0, len(keys)+1)
	byID := false
	for _, k := range keys {
		dir, err := orderDir(k.Field, k.Order)
		if err != nil {
			return nil, err
		}
		expr, err := sortExpr(k.Field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, fmt.Sprintf(`%s %s`, expr, dir))
		byID = byID || k.Field == "id"
	}

	if !byID {
		clauses = append(clauses, fmt.Sprintf(`%s ASC`, icol("id")))
	}
	return clauses, nil
}

func sortExpr(field string) (string, error) {
	if err := ValidateFieldPath(field); err != nil {
		return "", err
	}
	if col, ok := schema.InterviewColumns[field]; ok {
		return icol(col.Name), nil
	}

	segments, ok := splitPath(field)
	if !ok || len(segments) < 2 {
		return "", invalidField(field, "unknown sort field")
	}
	root, ok := schema.PayloadRoots[segments[0]]
	if !ok {
		return "", invalidField(field, fmt.Sprintf("unknown field root %q", segments[0]))
	}
	return jsonLeaf(JSONPath{Root: root, Keys: segments[1:]}), nil
}
