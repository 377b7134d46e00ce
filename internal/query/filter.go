package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type FilterOp string

const (
	OpEq   FilterOp = "eq"
	OpGt   FilterOp = "gt"
	OpLt   FilterOp = "lt"
	OpGte  FilterOp = "gte"
	OpLte  FilterOp = "lte"
	OpNot  FilterOp = "not"
	OpLike FilterOp = "like"
)

var validOps = map[FilterOp]bool{
	OpEq: true, OpGt: true, OpLt: true, OpGte: true,
	OpLte: true, OpNot: true, OpLike: true,
}

// ParseOp maps a caller-supplied operator onto the closed operator set.
// Unknown strings fall back to eq; they never reach the SQL text.
func ParseOp(raw string) FilterOp {
	op := FilterOp(raw)
	if validOps[op] {
		return op
	}
	return OpEq
}

// SQLOp returns the SQL operator token for a FilterOp.
func SQLOp(op FilterOp) string {
	switch op {
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpNot:
		return "!="
	case OpLike:
		return "LIKE"
	default:
		return "="
	}
}

func isOrdering(op FilterOp) bool {
	return op == OpGt || op == OpGte || op == OpLt || op == OpLte
}

// Filter is one field entry of a filter specification. Op is kept raw; an
// empty Op means no operator was given.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Filters is an ordered filter specification. Order matters: predicates and
// their bindings are emitted in this order.
type Filters []Filter

// UnmarshalJSON decodes {"field": value | [values] | {"value": v, "op": o}}
// keeping the key order of the document.
func (fs *Filters) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*fs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filters: expected object, got %v", tok)
	}

	var out Filters
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		field, ok := tok.(string)
		if !ok {
			return fmt.Errorf("filters: expected field name, got %v", tok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("filters: field %q: %w", field, err)
		}
		out = append(out, filterFromJSON(field, raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*fs = out
	return nil
}

func filterFromJSON(field string, raw any) Filter {
	f := Filter{Field: field, Value: raw}
	obj, ok := raw.(map[string]any)
	if !ok {
		return f
	}
	v, hasValue := obj["value"]
	if !hasValue {
		return f
	}
	f.Value = v
	if op, ok := obj["op"].(string); ok {
		f.Op = op
	}
	return f
}

// ParseFilters decodes a JSON filter specification.
func ParseFilters(data []byte) (Filters, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var fs Filters
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}
	return fs, nil
}
