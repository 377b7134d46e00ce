package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/interview_registry/internal/schema"
)

const (
	auditCountAlias       = "ac"
	interviewerCountAlias = "ic"
)

// Builder generates the statements of the list, stream, log and statistics
// paths. All of them take an already compiled Where.
type Builder struct {
	interviewerPrefix string
}

// NewBuilder returns a builder. interviewerPrefix is the username prefix of
// participants created by phone interviewers.
func NewBuilder(interviewerPrefix string) *Builder {
	return &Builder{interviewerPrefix: interviewerPrefix}
}

func interviewsFrom() string {
	return fmt.Sprintf(`%s AS %s`, qi(schema.InterviewsTable), qi(schema.InterviewAlias))
}

func participantJoin() string {
	return fmt.Sprintf(`%s AS %s ON %s = %s`,
		qi(schema.ParticipantsTable), qi(schema.ParticipantAlias),
		schema.Col(schema.ParticipantAlias, "id"), icol("participant_id"))
}

// auditCountsJoin aggregates audits per interview into a JSON array of
// single-key objects, {"code": count}.
func auditCountsJoin() string {
	return fmt.Sprintf(`(SELECT "interview_id", json_agg(json_build_object("error_code", "cnt") ORDER BY "error_code") AS "audits"
	FROM (SELECT "interview_id", "error_code", count(*) AS "cnt" FROM %s GROUP BY "interview_id", "error_code") AS "codes"
	GROUP BY "interview_id") AS %s ON %s = %s`,
		qi(schema.AuditsTable), qi(auditCountAlias),
		schema.Col(auditCountAlias, "interview_id"), icol("id"))
}

func interviewerCountJoin() string {
	return fmt.Sprintf(`(SELECT "interview_id", count(DISTINCT "user_id") AS "interviewer_count"
	FROM %s WHERE "for_validation" IS NOT TRUE GROUP BY "interview_id") AS %s ON %s = %s`,
		qi(schema.AccessesTable), qi(interviewerCountAlias),
		schema.Col(interviewerCountAlias, "interview_id"), icol("id"))
}

func withWhere(qb sq.SelectBuilder, w Where) sq.SelectBuilder {
	if w.SQL == "" {
		return qb
	}
	return qb.Where(w)
}

// BuildCount counts the interviews matching w.
func (b *Builder) BuildCount(w Where) (string, []any, error) {
	qb := sq.Select(fmt.Sprintf(`count(%s)`, icol("id"))).
		From(interviewsFrom()).
		LeftJoin(participantJoin()).
		PlaceholderFormat(sq.Dollar)
	qb = withWhere(qb, w)
	return qb.ToSql()
}

// BuildList selects one page of interviews matching w.
func (b *Builder) BuildList(w Where, orderBy []string, p ListParams) (string, []any, error) {
	columns := []string{
		icol("id"),
		icol("uuid") + `::text AS "uuid"`,
		icol("participant_id"),
		icol("created_at"),
		icol("updated_at"),
		icol("response"),
		icol("corrected_response"),
		icol("is_valid"),
		icol("is_completed"),
		icol("is_validated"),
		icol("is_questionable"),
		schema.Col(schema.ParticipantAlias, "username"),
		fmt.Sprintf(`%s IS NOT NULL AS "facebook"`, schema.Col(schema.ParticipantAlias, "facebook_id")),
		fmt.Sprintf(`%s IS NOT NULL AS "google"`, schema.Col(schema.ParticipantAlias, "google_id")),
		schema.Col(auditCountAlias, "audits"),
	}

	qb := sq.Select(columns...).
		From(interviewsFrom()).
		LeftJoin(participantJoin()).
		LeftJoin(auditCountsJoin()).
		PlaceholderFormat(sq.Dollar)
	qb = withWhere(qb, w)
	qb = qb.OrderBy(orderBy...)

	if limit, offset, ok := p.Limit(); ok {
		qb = qb.Limit(limit).Offset(offset)
	}
	return qb.ToSql()
}

// BuildStream selects every interview matching w, projecting the parts
// chosen by sel.
func (b *Builder) BuildStream(w Where, orderBy []string, sel Selection) (string, []any, error) {
	qb := sq.Select(
		icol("id"),
		icol("uuid")+`::text AS "uuid"`,
		icol("participant_id"),
		icol("created_at"),
		icol("updated_at"),
		icol("is_valid"),
		icol("is_completed"),
		icol("is_validated"),
		icol("is_questionable"),
		fmt.Sprintf(`%s IS NOT NULL AS "corrected_response_available"`, icol("corrected_response")),
	).
		From(interviewsFrom()).
		LeftJoin(participantJoin()).
		PlaceholderFormat(sq.Dollar)

	mode := sel.Payload
	if mode == "" {
		mode = PayloadBoth
	}
	switch mode {
	case PayloadBoth:
		qb = qb.Columns(icol("response"), icol("corrected_response"))
	case PayloadOriginal:
		qb = qb.Columns(icol("response"))
	case PayloadCorrected:
		qb = qb.Columns(icol("corrected_response"))
	case PayloadCorrectedIfAvailable:
		qb = qb.Columns(fmt.Sprintf(`COALESCE(%s, %s) AS "response"`, icol("corrected_response"), icol("response")))
	case PayloadNone:
	default:
		return "", nil, fmt.Errorf("unknown payload mode %q", mode)
	}

	if sel.Audits() {
		qb = qb.Column(schema.Col(auditCountAlias, "audits")).LeftJoin(auditCountsJoin())
	}
	if sel.IncludeInterviewerData {
		qb = qb.
			Column(sq.Expr(fmt.Sprintf(`COALESCE(%s LIKE ?, FALSE) AS "interviewer_created"`,
				schema.Col(schema.ParticipantAlias, "username")), b.interviewerPrefix+"%")).
			Column(schema.Col(interviewerCountAlias, "interviewer_count")).
			LeftJoin(interviewerCountJoin())
	}

	qb = withWhere(qb, w)
	qb = qb.OrderBy(orderBy...)
	return qb.ToSql()
}

// BuildLogStream selects one row per paradata event of the interviews
// matching w, grouped by interview and ordered by time within each.
func (b *Builder) BuildLogStream(w Where) (string, []any, error) {
	pe := func(col string) string { return schema.Col(schema.ParadataAlias, col) }

	qb := sq.Select(
		icol("id")+` AS "interview_id"`,
		icol("uuid")+`::text AS "interview_uuid"`,
		icol("participant_id"),
		pe("id")+` AS "event_id"`,
		pe("timestamp"),
		pe("event_type")+`::text AS "event_type"`,
		pe("user_id"),
		pe("event_data")+`->'valuesByPath' AS "values_by_path"`,
		pe("event_data")+`->'unsetPaths' AS "unset_paths"`,
		pe("event_data")+`->'userAction' AS "user_action"`,
	).
		From(interviewsFrom()).
		Join(fmt.Sprintf(`%s AS %s ON %s = %s`,
			qi(schema.ParadataTable), qi(schema.ParadataAlias), pe("interview_id"), icol("id"))).
		LeftJoin(participantJoin()).
		PlaceholderFormat(sq.Dollar)

	qb = withWhere(qb, w)
	qb = qb.OrderBy(icol("id")+" ASC", pe("timestamp")+" ASC", pe("id")+" ASC")
	return qb.ToSql()
}

// BuildAuditStats counts audits of the interviews matching w by error code,
// level and object type.
func (b *Builder) BuildAuditStats(w Where) (string, []any, error) {
	a := func(col string) string { return schema.Col(schema.AuditAlias, col) }
	level := fmt.Sprintf(`CASE WHEN %s IS TRUE THEN 'warning' ELSE 'error' END`, a("is_warning"))

	qb := sq.Select(
		a("error_code"),
		level+` AS "level"`,
		a("object_type"),
		`count(*) AS "cnt"`,
	).
		From(interviewsFrom()).
		Join(fmt.Sprintf(`%s AS %s ON %s = %s`,
			qi(schema.AuditsTable), qi(schema.AuditAlias), a("interview_id"), icol("id"))).
		LeftJoin(participantJoin()).
		PlaceholderFormat(sq.Dollar)

	qb = withWhere(qb, w)
	qb = qb.GroupBy(a("error_code"), level, a("object_type")).
		OrderBy(`"cnt" DESC`, a("error_code")+" ASC")
	return qb.ToSql()
}

// CompileList compiles the shared WHERE and the ORDER BY of a list request.
func CompileList(p ListParams) (Where, []string, error) {
	w, err := BuildWhere(ActiveBase, p.Filters)
	if err != nil {
		return Where{}, nil, err
	}
	order, err := BuildOrderBy(p.Sort)
	if err != nil {
		return Where{}, nil, err
	}
	return w, order, nil
}

// CompileStream compiles the WHERE and ORDER BY of a record stream request.
func CompileStream(p StreamParams) (Where, []string, error) {
	w, err := BuildWhere(StreamBase, p.Filters)
	if err != nil {
		return Where{}, nil, err
	}
	order, err := BuildOrderBy(p.Sort)
	if err != nil {
		return Where{}, nil, err
	}
	return w, order, nil
}

// CompileLogStream compiles the WHERE of an edit-log stream request.
func CompileLogStream(p LogStreamParams) (Where, error) {
	w, err := BuildWhere(StreamBase, p.Filters)
	if err != nil {
		return Where{}, err
	}
	var extra []Predicate
	if p.InterviewID != nil {
		extra = append(extra, ColumnCmp{Column: "id", Kind: schema.ColumnPlain, Op: OpEq, Value: *p.InterviewID})
	}
	if p.ForCorrection != nil {
		extra = append(extra, ForCorrection{Value: *p.ForCorrection})
	}
	return AppendPredicates(w, extra...)
}

// CompileAuditStats compiles the WHERE of an audit statistics request.
func CompileAuditStats(filters Filters) (Where, error) {
	return BuildWhere(ActiveBase, filters)
}
