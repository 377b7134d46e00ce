package query

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var fieldPathRe = regexp.MustCompile(`^[\w.]*$`)

// ValidateFieldPath rejects anything but word characters and dots. It is the
// only barrier between caller-supplied field names and raw SQL text.
func ValidateFieldPath(field string) error {
	if !fieldPathRe.MatchString(field) {
		return invalidField(field, "only word characters and dots are allowed")
	}
	return nil
}

// splitPath splits a dotted path and rejects empty segments.
func splitPath(field string) ([]string, bool) {
	segments := strings.Split(field, ".")
	for _, s := range segments {
		if s == "" {
			return nil, false
		}
	}
	return segments, true
}

// Booleish coerces loosely typed truthy and falsy values. Anything it does not
// recognise, nil included, yields nil.
func Booleish(v any) *bool {
	t, f := true, false
	switch x := v.(type) {
	case bool:
		return &x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return &t
		case "false", "f", "no", "n", "0":
			return &f
		}
	case json.Number:
		return Booleish(x.String())
	case int:
		return Booleish(strconv.Itoa(x))
	case int64:
		return Booleish(strconv.FormatInt(x, 10))
	case float64:
		return Booleish(strconv.FormatFloat(x, 'f', -1, 64))
	}
	return nil
}

// scalarText renders a scalar the way Postgres ->> renders the JSON value.
func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

// number extracts a numeric value. Strings are not coerced.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// epochSeconds accepts unix seconds or an RFC 3339 string.
func epochSeconds(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	switch x := v.(type) {
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return 0, false
		}
		return unixSeconds(t), true
	case time.Time:
		return unixSeconds(x), true
	}
	return 0, false
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// normalizeValue turns typed Go slices into []any so values built in code
// behave like values decoded from JSON.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []string:
		return toAny(x)
	case []int:
		return toAny(x)
	case []int64:
		return toAny(x)
	case []float64:
		return toAny(x)
	case []bool:
		return toAny(x)
	}
	return v
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
