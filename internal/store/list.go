package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
)

// Record is one interview row with blank fields removed. Its "audits" entry,
// when present, is a map of error code to count.
type Record map[string]any

// ListResult is one page of interviews and the total number of matches.
type ListResult struct {
	Interviews []Record `json:"interviews"`
	TotalCount int64    `json:"totalCount"`
}

// List returns one page of active interviews matching p. The count and the
// page are computed from the same compiled predicate.
func (s *Store) List(ctx context.Context, p query.ListParams) (ListResult, error) {
	w, order, err := query.CompileList(p)
	if err != nil {
		return ListResult{}, s.fail("list", err)
	}

	countSQL, countArgs, err := s.builder.BuildCount(w)
	if err != nil {
		return ListResult{}, s.fail("list", fmt.Errorf("build count: %w", err))
	}
	var total int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return ListResult{}, s.fail("list", backendError(CodeList, schema.InterviewsTable, "count", err))
	}
	if total == 0 {
		return ListResult{Interviews: []Record{}, TotalCount: 0}, nil
	}

	listSQL, listArgs, err := s.builder.BuildList(w, order, p)
	if err != nil {
		return ListResult{}, s.fail("list", fmt.Errorf("build list: %w", err))
	}
	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return ListResult{}, s.fail("list", backendError(CodeList, schema.InterviewsTable, "list", err))
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return ListResult{}, s.fail("list", backendError(CodeList, schema.InterviewsTable, "list", err))
	}

	return ListResult{Interviews: records, TotalCount: total}, nil
}

// scanRecord reads a row into a Record, drops blank fields and flattens the
// aggregated audits.
func scanRecord(row pgx.CollectableRow) (Record, error) {
	m, err := pgx.RowToMap(row)
	if err != nil {
		return nil, err
	}
	if raw, ok := m["audits"]; ok {
		m["audits"] = flattenAudits(raw)
	}
	return Record(removeBlankFields(m)), nil
}

// removeBlankFields drops nil values and empty strings.
func removeBlankFields(m map[string]any) map[string]any {
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if x == "" {
				delete(m, k)
			}
		case map[string]int64:
			if len(x) == 0 {
				delete(m, k)
			}
		}
	}
	return m
}

// flattenAudits turns [{"code": n}, ...] into {"code": n}. A nil aggregate
// stays nil.
func flattenAudits(raw any) map[string]int64 {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(list))
	for _, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		for code, n := range obj {
			out[code] += toInt64(n)
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case json.Number:
		n, _ := x.Int64()
		return n
	}
	return 0
}

// AuditStat is the number of audits with one error code.
type AuditStat struct {
	ErrorCode string `json:"errorCode"`
	Count     int64  `json:"count"`
}

// AuditStats groups audit counts by level, then object type. Within a group,
// entries keep the descending count order of the query.
type AuditStats map[string]map[string][]AuditStat

type auditStatRow struct {
	ErrorCode  string `db:"error_code"`
	Level      string `db:"level"`
	ObjectType string `db:"object_type"`
	Count      int64  `db:"cnt"`
}

// ValidationAuditStats counts the audits of active interviews matching
// filters, by level, object type and error code.
func (s *Store) ValidationAuditStats(ctx context.Context, filters query.Filters) (AuditStats, error) {
	w, err := query.CompileAuditStats(filters)
	if err != nil {
		return nil, s.fail("audit_stats", err)
	}
	sql, args, err := s.builder.BuildAuditStats(w)
	if err != nil {
		return nil, s.fail("audit_stats", fmt.Errorf("build audit stats: %w", err))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.fail("audit_stats", backendError(CodeAuditStats, schema.AuditsTable, "audit stats", err))
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[auditStatRow])
	if err != nil {
		return nil, s.fail("audit_stats", backendError(CodeAuditStats, schema.AuditsTable, "audit stats", err))
	}
	return nestAuditStats(stats), nil
}

func nestAuditStats(rows []auditStatRow) AuditStats {
	out := AuditStats{}
	for _, r := range rows {
		byType, ok := out[r.Level]
		if !ok {
			byType = map[string][]AuditStat{}
			out[r.Level] = byType
		}
		byType[r.ObjectType] = append(byType[r.ObjectType], AuditStat{ErrorCode: r.ErrorCode, Count: r.Count})
	}
	return out
}
