package query

import (
	"fmt"
	"math"
	"strconv"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// CompileFilter validates one filter entry and turns it into predicates.
// Array values produce one predicate per element; callers AND them.
func CompileFilter(f Filter) ([]Predicate, error) {
	if err := ValidateFieldPath(f.Field); err != nil {
		return nil, err
	}
	op := ParseOp(f.Op)
	f.Value = normalizeValue(f.Value)

	if f.Field == schema.AuditsField {
		return compileAudits(f)
	}
	if col, ok := schema.InterviewColumns[f.Field]; ok {
		return compileColumn(col, f, op)
	}
	return compileJSONPath(f, op)
}

// CompileFilters compiles every entry in order.
func CompileFilters(fs Filters) ([]Predicate, error) {
	var preds []Predicate
	for _, f := range fs {
		p, err := CompileFilter(f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p...)
	}
	return preds, nil
}

func compileAudits(f Filter) ([]Predicate, error) {
	var preds []Predicate
	for _, v := range valueList(f.Value) {
		code, ok := v.(string)
		if !ok {
			return nil, invalidValue(f.Field, fmt.Sprintf("audit code must be a string, got %T", v))
		}
		if !fieldPathRe.MatchString(code) || code == "" {
			return nil, invalidValue(f.Field, "audit code may only contain word characters and dots")
		}
		preds = append(preds, AuditCode{Code: code})
	}
	return preds, nil
}

func compileColumn(col schema.ColumnDef, f Filter, op FilterOp) ([]Predicate, error) {
	switch col.Kind {
	case schema.ColumnTriState:
		return []Predicate{TriState{Column: col.Name, Value: Booleish(f.Value), Negate: op == OpNot}}, nil

	case schema.ColumnTimestamp:
		return compileTimestamp(col, f, op)
	}

	if f.Value == nil {
		return []Predicate{ColumnNull{Column: col.Name, Negate: op == OpNot}}, nil
	}

	var preds []Predicate
	for _, v := range valueList(f.Value) {
		if col.Kind == schema.ColumnPlain {
			n, ok := number(v)
			if s, isText := v.(string); !ok && isText {
				parsed, err := strconv.ParseFloat(s, 64)
				n, ok = parsed, err == nil
			}
			if !ok {
				return nil, invalidValue(f.Field, fmt.Sprintf("expected a number, got %v", v))
			}
			if op == OpLike {
				op = OpEq
			}
			preds = append(preds, ColumnCmp{Column: col.Name, Kind: col.Kind, Op: op, Value: integral(n)})
			continue
		}
		text, ok := scalarText(v)
		if !ok {
			return nil, invalidValue(f.Field, fmt.Sprintf("unsupported value type %T", v))
		}
		preds = append(preds, ColumnCmp{Column: col.Name, Kind: col.Kind, Op: op, Value: text})
	}
	return preds, nil
}

func compileTimestamp(col schema.ColumnDef, f Filter, op FilterOp) ([]Predicate, error) {
	if f.Value == nil {
		return []Predicate{ColumnNull{Column: col.Name, Negate: op == OpNot}}, nil
	}

	if arr, ok := f.Value.([]any); ok {
		if len(arr) != 2 {
			return nil, invalidValue(f.Field, "a timestamp range needs exactly two bounds")
		}
		from, okFrom := epochSeconds(arr[0])
		to, okTo := epochSeconds(arr[1])
		if !okFrom || !okTo {
			return nil, invalidValue(f.Field, "range bounds must be unix seconds or RFC 3339 timestamps")
		}
		return []Predicate{TimestampRange{Column: col.Name, From: from, To: to}}, nil
	}

	secs, ok := epochSeconds(f.Value)
	if !ok {
		return nil, invalidValue(f.Field, "expected unix seconds or an RFC 3339 timestamp")
	}
	if op == OpLike {
		op = OpEq
	}
	return []Predicate{TimestampCmp{Column: col.Name, Op: op, Seconds: secs}}, nil
}

func compileJSONPath(f Filter, op FilterOp) ([]Predicate, error) {
	segments, ok := splitPath(f.Field)
	if !ok || len(segments) < 2 {
		return nil, invalidField(f.Field, "expected a payload path such as response.home.geography")
	}
	root, ok := schema.PayloadRoots[segments[0]]
	if !ok {
		return nil, invalidField(f.Field, fmt.Sprintf("unknown field root %q", segments[0]))
	}
	path := JSONPath{Root: root, Keys: segments[1:]}

	switch v := f.Value.(type) {
	case nil:
		return []Predicate{JSONNull{Path: path, Negate: op == OpNot}}, nil

	case map[string]any:
		poly, isPolygon, err := polygonFeature(v)
		if err != nil {
			return nil, invalidValue(f.Field, err.Error())
		}
		if !isPolygon {
			return []Predicate{Never{Reason: "object value is not a polygon feature"}}, nil
		}
		return []Predicate{GeoContains{Path: path, Polygon: poly}}, nil

	case []any:
		if f.Op == "" && len(v) == 2 {
			from, okFrom := number(v[0])
			to, okTo := number(v[1])
			if okFrom && okTo {
				return []Predicate{JSONRange{Path: path, From: from, To: to}}, nil
			}
		}
		preds := make([]Predicate, 0, len(v))
		for _, elem := range v {
			p, err := jsonScalar(f.Field, path, op, elem)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return preds, nil
	}

	p, err := jsonScalar(f.Field, path, op, f.Value)
	if err != nil {
		return nil, err
	}
	return []Predicate{p}, nil
}

func jsonScalar(field string, path JSONPath, op FilterOp, v any) (Predicate, error) {
	if isOrdering(op) {
		if n, ok := number(v); ok {
			return JSONNumber{Path: path, Op: op, Number: n}, nil
		}
	}
	text, ok := scalarText(v)
	if !ok {
		return nil, invalidValue(field, fmt.Sprintf("array elements must be scalars, got %T", v))
	}
	return JSONText{Path: path, Op: op, Text: text}, nil
}

// integral returns n as int64 when it has no fractional part, so it binds to
// integer columns.
func integral(n float64) any {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n)
	}
	return n
}

// valueList treats a scalar as a one-element list.
func valueList(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	if v == nil {
		return []any{nil}
	}
	return []any{v}
}
