package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
)

// Interview is the stored form of one interview.
type Interview struct {
	ID                int64          `json:"id"`
	UUID              uuid.UUID      `json:"uuid"`
	ParticipantID     *int64         `json:"participantId,omitempty"`
	SurveyID          *int32         `json:"surveyId,omitempty"`
	IsActive          *bool          `json:"isActive,omitempty"`
	IsValid           *bool          `json:"isValid,omitempty"`
	IsCompleted       *bool          `json:"isCompleted,omitempty"`
	IsValidated       *bool          `json:"isValidated,omitempty"`
	IsQuestionable    *bool          `json:"isQuestionable,omitempty"`
	IsFrozen          *bool          `json:"isFrozen,omitempty"`
	Response          map[string]any `json:"response"`
	CorrectedResponse map[string]any `json:"correctedResponse,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         *time.Time     `json:"updatedAt,omitempty"`
}

type interviewRow struct {
	ID                int64          `db:"id"`
	UUID              string         `db:"uuid"`
	ParticipantID     *int64         `db:"participant_id"`
	SurveyID          *int32         `db:"survey_id"`
	IsActive          *bool          `db:"is_active"`
	IsValid           *bool          `db:"is_valid"`
	IsCompleted       *bool          `db:"is_completed"`
	IsValidated       *bool          `db:"is_validated"`
	IsQuestionable    *bool          `db:"is_questionable"`
	IsFrozen          *bool          `db:"is_frozen"`
	Response          map[string]any `db:"response"`
	CorrectedResponse map[string]any `db:"corrected_response"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         *time.Time     `db:"updated_at"`
}

var interviewColumns = []string{
	"id", `uuid::text AS "uuid"`, "participant_id", "survey_id",
	"is_active", "is_valid", "is_completed", "is_validated", "is_questionable", "is_frozen",
	"response", "corrected_response", "created_at", "updated_at",
}

func (r interviewRow) interview() (Interview, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return Interview{}, fmt.Errorf("interview %d uuid: %w", r.ID, err)
	}
	return Interview{
		ID:                r.ID,
		UUID:              id,
		ParticipantID:     r.ParticipantID,
		SurveyID:          r.SurveyID,
		IsActive:          r.IsActive,
		IsValid:           r.IsValid,
		IsCompleted:       r.IsCompleted,
		IsValidated:       r.IsValidated,
		IsQuestionable:    r.IsQuestionable,
		IsFrozen:          r.IsFrozen,
		Response:          r.Response,
		CorrectedResponse: r.CorrectedResponse,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

// NewInterview holds the fields of an interview to create. A zero UUID is
// replaced by a random one.
type NewInterview struct {
	UUID          uuid.UUID
	ParticipantID int64
	IsActive      *bool
	Response      map[string]any
}

// InterviewUpdate lists the fields to change. Nil fields are left untouched.
type InterviewUpdate struct {
	IsActive          *bool
	IsValid           *bool
	IsCompleted       *bool
	IsValidated       *bool
	IsQuestionable    *bool
	IsFrozen          *bool
	Response          map[string]any
	CorrectedResponse map[string]any
}

var nullEscape = []byte(`\u0000`)

// jsonbArg encodes a payload for a jsonb column. Postgres rejects the NUL
// escape in jsonb, so it is removed.
func jsonbArg(v map[string]any) (sq.Sqlizer, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	b = bytes.ReplaceAll(b, nullEscape, nil)
	return sq.Expr("?::jsonb", string(b)), nil
}

// CreateInterview inserts an interview for the store's survey and returns it.
func (s *Store) CreateInterview(ctx context.Context, in NewInterview) (Interview, error) {
	id := in.UUID
	if id == uuid.Nil {
		id = uuid.New()
	}
	response := in.Response
	if response == nil {
		response = map[string]any{}
	}
	payload, err := jsonbArg(response)
	if err != nil {
		return Interview{}, s.fail("create_interview", fmt.Errorf("encode response: %w", err))
	}

	sql, args, err := sq.Insert(schema.InterviewsTable).
		Columns("uuid", "participant_id", "survey_id", "is_active", "response").
		Values(id.String(), in.ParticipantID, s.survey.ID, in.IsActive, payload).
		Suffix("RETURNING " + strings.Join(interviewColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Interview{}, s.fail("create_interview", fmt.Errorf("build insert: %w", err))
	}

	iv, err := s.scanInterview(ctx, sql, args)
	if err != nil {
		return Interview{}, s.fail("create_interview", backendError(CodeCreate, schema.InterviewsTable, "create", err))
	}
	return iv, nil
}

// UpdateInterview applies u to the interview with the given uuid and stamps
// updated_at.
func (s *Store) UpdateInterview(ctx context.Context, id uuid.UUID, u InterviewUpdate) (Interview, error) {
	qb := sq.Update(schema.InterviewsTable).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"uuid": id.String()}).
		Suffix("RETURNING " + strings.Join(interviewColumns, ", ")).
		PlaceholderFormat(sq.Dollar)

	flags := []struct {
		col string
		v   *bool
	}{
		{"is_active", u.IsActive},
		{"is_valid", u.IsValid},
		{"is_completed", u.IsCompleted},
		{"is_validated", u.IsValidated},
		{"is_questionable", u.IsQuestionable},
		{"is_frozen", u.IsFrozen},
	}
	for _, f := range flags {
		if f.v != nil {
			qb = qb.Set(f.col, *f.v)
		}
	}
	docs := []struct {
		col string
		v   map[string]any
	}{
		{"response", u.Response},
		{"corrected_response", u.CorrectedResponse},
	}
	for _, d := range docs {
		if d.v == nil {
			continue
		}
		payload, err := jsonbArg(d.v)
		if err != nil {
			return Interview{}, s.fail("update_interview", fmt.Errorf("encode %s: %w", d.col, err))
		}
		qb = qb.Set(d.col, payload)
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return Interview{}, s.fail("update_interview", fmt.Errorf("build update: %w", err))
	}
	iv, err := s.scanInterview(ctx, sql, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return Interview{}, s.fail("update_interview", ErrNotFound)
	}
	if err != nil {
		return Interview{}, s.fail("update_interview", backendError(CodeUpdate, schema.InterviewsTable, "update", err))
	}
	return iv, nil
}

// InterviewByUUID returns the interview with the given uuid. A malformed uuid
// is an invalid value; an unknown one is ErrNotFound.
func (s *Store) InterviewByUUID(ctx context.Context, rawUUID string) (Interview, error) {
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return Interview{}, s.fail("interview_by_uuid", query.InvalidValue("uuid", err.Error()))
	}

	sql, args, err := sq.Select(interviewColumns...).
		From(schema.InterviewsTable).
		Where(sq.Eq{"uuid": id.String()}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Interview{}, s.fail("interview_by_uuid", fmt.Errorf("build select: %w", err))
	}

	iv, err := s.scanInterview(ctx, sql, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return Interview{}, s.fail("interview_by_uuid", ErrNotFound)
	}
	if err != nil {
		return Interview{}, s.fail("interview_by_uuid", backendError("", schema.InterviewsTable, "get", err))
	}
	return iv, nil
}

func (s *Store) scanInterview(ctx context.Context, sql string, args []any) (Interview, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return Interview{}, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[interviewRow])
	if err != nil {
		return Interview{}, err
	}
	return row.interview()
}
