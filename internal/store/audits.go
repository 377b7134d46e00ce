package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// Audit is one validation error recorded against an object of an interview.
type Audit struct {
	ErrorCode  string  `json:"errorCode" db:"error_code"`
	ObjectType string  `json:"objectType" db:"object_type"`
	ObjectUUID string  `json:"objectUuid" db:"object_uuid"`
	Version    int32   `json:"version" db:"version"`
	IsWarning  *bool   `json:"isWarning,omitempty" db:"is_warning"`
	Message    *string `json:"message,omitempty" db:"message"`
	Ignore     bool    `json:"ignore,omitempty" db:"ignore"`
}

type auditKey struct {
	code, objectType, objectUUID string
}

func (a Audit) key() auditKey {
	return auditKey{a.ErrorCode, a.ObjectType, a.ObjectUUID}
}

var auditColumns = []string{"error_code", "object_type", "object_uuid", "version", "is_warning", "message", "ignore"}

// AuditsForInterview returns the audits stored for one interview.
func (s *Store) AuditsForInterview(ctx context.Context, interviewID int64) ([]Audit, error) {
	audits, err := s.auditsForInterview(ctx, s.db, interviewID)
	if err != nil {
		return nil, s.fail("get_audits", backendError(CodeGetAudits, schema.AuditsTable, "get", err))
	}
	return audits, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) auditsForInterview(ctx context.Context, q queryer, interviewID int64) ([]Audit, error) {
	sql, args, err := sq.Select(auditColumns...).
		From(schema.AuditsTable).
		Where(sq.Eq{"interview_id": interviewID}).
		OrderBy("object_type", "object_uuid", "error_code").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Audit])
}

// mergeIgnored carries the ignore flag of previous audits over to new audits
// of the same error code and object.
func mergeIgnored(next, prev []Audit) []Audit {
	ignored := make(map[auditKey]bool, len(prev))
	for _, a := range prev {
		if a.Ignore {
			ignored[a.key()] = true
		}
	}
	out := make([]Audit, len(next))
	for i, a := range next {
		if ignored[a.key()] {
			a.Ignore = true
		}
		out[i] = a
	}
	return out
}

// SetAudits replaces the audits of an interview in one transaction and
// returns what was stored. Audits that were ignored before stay ignored.
func (s *Store) SetAudits(ctx context.Context, interviewID int64, audits []Audit) ([]Audit, error) {
	wrap := func(err error) error {
		return s.fail("set_audits", backendError(CodeSetAudits, schema.AuditsTable, "set", err))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prev, err := s.auditsForInterview(ctx, tx, interviewID)
	if err != nil {
		return nil, wrap(err)
	}
	merged := mergeIgnored(audits, prev)

	if _, err := tx.Exec(ctx, `DELETE FROM `+schema.QuoteIdent(schema.AuditsTable)+` WHERE interview_id = $1`, interviewID); err != nil {
		return nil, wrap(err)
	}

	if len(merged) > 0 {
		cols := append([]string{"interview_id"}, auditColumns...)
		n, err := tx.CopyFrom(ctx, pgx.Identifier{schema.AuditsTable}, cols,
			pgx.CopyFromSlice(len(merged), func(i int) ([]any, error) {
				a := merged[i]
				version := a.Version
				if version == 0 {
					version = 1
				}
				return []any{interviewID, a.ErrorCode, a.ObjectType, a.ObjectUUID, version, a.IsWarning, a.Message, a.Ignore}, nil
			}))
		if err != nil {
			return nil, wrap(err)
		}
		if int(n) != len(merged) {
			return nil, wrap(fmt.Errorf("copied %d of %d audits", n, len(merged)))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrap(err)
	}
	s.logger.Debug("audits set", "interview_id", interviewID, "count", len(merged))
	return merged, nil
}

// ErrAuditNotFound is returned by UpdateAudit when no audit matches.
var ErrAuditNotFound = errors.New("audit not found")

// UpdateAudit changes the ignore flag and message of one audit, addressed by
// error code and object.
func (s *Store) UpdateAudit(ctx context.Context, interviewID int64, a Audit) error {
	qb := sq.Update(schema.AuditsTable).
		Set("ignore", a.Ignore).
		Where(sq.Eq{
			"interview_id": interviewID,
			"error_code":   a.ErrorCode,
			"object_type":  a.ObjectType,
			"object_uuid":  a.ObjectUUID,
		}).
		PlaceholderFormat(sq.Dollar)
	if a.Message != nil {
		qb = qb.Set("message", *a.Message)
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return s.fail("update_audit", fmt.Errorf("build update: %w", err))
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return s.fail("update_audit", backendError(CodeSetAudits, schema.AuditsTable, "update", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrAuditNotFound
	}
	return nil
}
