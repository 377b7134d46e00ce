package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/interview_registry/internal/schema"
)

func qi(name string) string { return schema.QuoteIdent(name) }

// icol returns "i"."column".
func icol(column string) string { return schema.Col(schema.InterviewAlias, column) }

// jsonNode returns the jsonb node at p: "i"."response"->'home'->'geography'.
func jsonNode(p JSONPath) string {
	var b strings.Builder
	b.WriteString(icol(string(p.Root)))
	for _, k := range p.Keys {
		b.WriteString("->")
		b.WriteString(schema.QuoteLit(k))
	}
	return b.String()
}

// jsonLeaf returns the text of the leaf at p: "i"."response"->'home'->>'city'.
func jsonLeaf(p JSONPath) string {
	var b strings.Builder
	b.WriteString(icol(string(p.Root)))
	last := len(p.Keys) - 1
	for i, k := range p.Keys {
		if i == last {
			b.WriteString("->>")
		} else {
			b.WriteString("->")
		}
		b.WriteString(schema.QuoteLit(k))
	}
	return b.String()
}

// numericPattern matches the text of a JSON number, or of a string holding one.
const numericPattern = `'^-{0,1}[0-9]+([.][0-9]+){0,1}([eE][-+]{0,1}[0-9]+){0,1}$'`

// numericLeaf casts the leaf at p to numeric, or yields NULL when its text is
// not a number, so one malformed answer never fails the whole statement.
func numericLeaf(p JSONPath) string {
	leaf := jsonLeaf(p)
	return fmt.Sprintf(`CASE WHEN %[1]s ~ %[2]s THEN (%[1]s)::numeric END`, leaf, numericPattern)
}

func likePattern(s string) string { return "%" + s + "%" }

// Render translates a compiled predicate to a Squirrel expression. Values are
// always bound; only validated identifiers reach the SQL text.
func Render(p Predicate) (sq.Sqlizer, error) {
	switch p := p.(type) {
	case ColumnCmp:
		col := icol(p.Column)
		if p.Kind == schema.ColumnUUID {
			col += "::text"
		}
		if p.Op == OpLike {
			return sq.Expr(fmt.Sprintf(`%s::text LIKE ?`, icol(p.Column)), likePattern(fmt.Sprint(p.Value))), nil
		}
		return sq.Expr(fmt.Sprintf(`%s %s ?`, col, SQLOp(p.Op)), p.Value), nil

	case ColumnNull:
		if p.Negate {
			return sq.NotEq{icol(p.Column): nil}, nil
		}
		return sq.Eq{icol(p.Column): nil}, nil

	case TimestampCmp:
		return sq.Expr(fmt.Sprintf(`%s %s to_timestamp(?)`, icol(p.Column), SQLOp(p.Op)), p.Seconds), nil

	case TimestampRange:
		return sq.Expr(fmt.Sprintf(`%s BETWEEN to_timestamp(?) AND to_timestamp(?)`, icol(p.Column)), p.From, p.To), nil

	case TriState:
		not := ""
		if p.Negate {
			not = "NOT "
		}
		val := "NULL"
		if p.Value != nil {
			val = "FALSE"
			if *p.Value {
				val = "TRUE"
			}
		}
		return sq.Expr(fmt.Sprintf(`%s IS %s%s`, icol(p.Column), not, val)), nil

	case JSONText:
		if p.Op == OpLike {
			return sq.Expr(fmt.Sprintf(`%s LIKE ?`, jsonLeaf(p.Path)), likePattern(p.Text)), nil
		}
		return sq.Expr(fmt.Sprintf(`%s %s ?`, jsonLeaf(p.Path), SQLOp(p.Op)), p.Text), nil

	case JSONNumber:
		return sq.Expr(fmt.Sprintf(`(%s) %s ?`, numericLeaf(p.Path), SQLOp(p.Op)), p.Number), nil

	case JSONRange:
		return sq.Expr(fmt.Sprintf(`(%s) BETWEEN ? AND ?`, numericLeaf(p.Path)), p.From, p.To), nil

	case JSONNull:
		if p.Negate {
			return sq.Expr(fmt.Sprintf(`%s IS NOT NULL`, jsonLeaf(p.Path))), nil
		}
		return sq.Expr(fmt.Sprintf(`%s IS NULL`, jsonLeaf(p.Path))), nil

	case AuditCode:
		return sq.Expr(fmt.Sprintf(`%s IN (SELECT %s FROM %s AS %s WHERE %s = ?)`,
			icol("id"),
			schema.Col("sa", "interview_id"),
			qi(schema.AuditsTable), qi("sa"),
			schema.Col("sa", "error_code"),
		), p.Code), nil

	case GeoContains:
		wkbBytes, err := encodePolygon(p.Polygon)
		if err != nil {
			return nil, fmt.Errorf("encode polygon: %w", err)
		}
		geom := jsonNode(p.Path) + "->'geometry'"
		return sq.Expr(fmt.Sprintf(
			`CASE WHEN jsonb_typeof(%[1]s) = 'object' THEN ST_Contains(ST_GeomFromWKB(?, %[2]d), ST_SetSRID(ST_GeomFromGeoJSON((%[1]s)::text), %[2]d)) ELSE FALSE END`,
			geom, srid,
		), wkbBytes), nil

	case ForCorrection:
		flag := schema.Col(schema.ParadataAlias, "event_data") + "->'forCorrection'"
		want := "FALSE"
		if p.Value {
			want = "TRUE"
		}
		// Events without a boolean flag belong to both modes.
		return sq.Expr(fmt.Sprintf(`(CASE WHEN jsonb_typeof(%[1]s) = 'boolean' THEN (%[1]s)::boolean = %[2]s ELSE TRUE END)`, flag, want)), nil

	case Never:
		return sq.Expr("FALSE"), nil
	}

	return nil, fmt.Errorf("unsupported predicate %T", p)
}
