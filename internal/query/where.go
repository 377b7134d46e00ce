package query

import (
	"fmt"
	"strings"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// Base predicates. ActiveBase is used for lists and statistics, StreamBase
// for streams, which also export inactive interviews.
var (
	StreamBase = fmt.Sprintf(`%s IS TRUE AND %s IS NOT TRUE`,
		schema.Col(schema.ParticipantAlias, "is_valid"),
		schema.Col(schema.ParticipantAlias, "is_test"),
	)
	ActiveBase = fmt.Sprintf(`%s IS TRUE AND %s`, icol("is_active"), StreamBase)
)

// Where is a compiled WHERE clause with '?' placeholders and its bindings.
// One Where value is shared by every statement of a request, so counts and
// pages are computed from the same predicate.
type Where struct {
	SQL  string
	Args []any
}

// ToSql implements squirrel.Sqlizer.
func (w Where) ToSql() (string, []any, error) {
	return w.SQL, w.Args, nil
}

// BuildWhere folds the filters over base, conjunctively and in filter order.
func BuildWhere(base string, filters Filters) (Where, error) {
	preds, err := CompileFilters(filters)
	if err != nil {
		return Where{}, err
	}
	return AppendPredicates(Where{SQL: base}, preds...)
}

// AppendPredicates ANDs extra predicates onto w.
func AppendPredicates(w Where, preds ...Predicate) (Where, error) {
	var b strings.Builder
	b.WriteString(w.SQL)
	args := append([]any(nil), w.Args...)

	for _, p := range preds {
		expr, err := Render(p)
		if err != nil {
			return Where{}, err
		}
		frag, fragArgs, err := expr.ToSql()
		if err != nil {
			return Where{}, fmt.Errorf("render %T: %w", p, err)
		}
		if b.Len() > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("(")
		b.WriteString(frag)
		b.WriteString(")")
		args = append(args, fragArgs...)
	}

	return Where{SQL: b.String(), Args: args}, nil
}
