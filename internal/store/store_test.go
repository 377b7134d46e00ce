package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
)

func newTestStore(db DB) *Store {
	return New(db, schema.Survey{ID: 1, Shortname: "test"}, Options{InterviewerPrefix: "interviewer"})
}

func TestListShortCircuitsOnZeroCount(t *testing.T) {
	db := &fakeDB{count: 0}
	res, err := newTestStore(db).List(context.Background(), query.ListParams{PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.TotalCount)
	assert.NotNil(t, res.Interviews)
	assert.Empty(t, res.Interviews)
	assert.Len(t, db.queryRows, 1)
	assert.Empty(t, db.queries, "no page query when nothing matches")
}

func TestListUsesSameBindingsForCountAndPage(t *testing.T) {
	db := &fakeDB{
		count:   2,
		columns: []string{"id", "username", "corrected_response", "audits"},
		rows: [][]any{
			{int64(1), "alice", nil, []any{map[string]any{"errorOne": float64(2)}, map[string]any{"errorTwo": float64(1)}}},
			{int64(2), "", map[string]any{"home": "x"}, nil},
		},
	}
	p := query.ListParams{
		Filters:  query.Filters{{Field: "response.accessCode", Op: "like", Value: "111"}},
		PageSize: 10,
	}

	res, err := newTestStore(db).List(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, db.queryRows, 1)
	require.Len(t, db.queries, 1)
	assert.Equal(t, db.queryRows[0].args, db.queries[0].args)
	assert.Equal(t, []any{"%111%"}, db.queries[0].args)

	assert.Equal(t, int64(2), res.TotalCount)
	require.Len(t, res.Interviews, 2)

	first := res.Interviews[0]
	assert.Equal(t, map[string]int64{"errorOne": 2, "errorTwo": 1}, first["audits"])
	assert.NotContains(t, first, "corrected_response")

	second := res.Interviews[1]
	assert.NotContains(t, second, "username", "blank strings are removed")
	assert.NotContains(t, second, "audits", "missing audit aggregate is removed")
	assert.Equal(t, map[string]any{"home": "x"}, second["corrected_response"])
}

func TestListRejectsSpecErrorsBeforeQuerying(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(db)

	_, err := s.List(context.Background(), query.ListParams{
		Filters: query.Filters{{Field: "is_valid is true; delete from sv_interviews;", Value: true}},
	})
	require.Error(t, err)
	assert.True(t, IsSpecError(err))
	assert.ErrorIs(t, err, query.ErrInvalidField)

	_, err = s.List(context.Background(), query.ListParams{
		Sort: []query.SortKey{{Field: "id", Order: "desc; drop table sv_interviews"}},
	})
	assert.ErrorIs(t, err, query.ErrInvalidSortOrder)

	assert.Empty(t, db.queryRows)
	assert.Empty(t, db.queries)
}

func TestListWrapsBackendErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	db := &fakeDB{countErr: pgErr}

	_, err := newTestStore(db).List(context.Background(), query.ListParams{})
	require.Error(t, err)
	assert.False(t, IsSpecError(err))

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, CodeList, be.Code)
	assert.Equal(t, schema.InterviewsTable, be.Table)

	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "42P01", got.Code)
}

func TestValidationAuditStats(t *testing.T) {
	db := &fakeDB{
		columns: []string{"error_code", "level", "object_type", "cnt"},
		rows: [][]any{
			{"E1", "error", "person", int64(3)},
			{"E3", "warning", "home", int64(2)},
			{"E2", "error", "person", int64(1)},
			{"E4", "error", "interview", int64(1)},
		},
	}
	stats, err := newTestStore(db).ValidationAuditStats(context.Background(), query.Filters{{Field: "is_completed", Value: true}})
	require.NoError(t, err)

	assert.Equal(t, AuditStats{
		"error": {
			"person":    {{ErrorCode: "E1", Count: 3}, {ErrorCode: "E2", Count: 1}},
			"interview": {{ErrorCode: "E4", Count: 1}},
		},
		"warning": {
			"home": {{ErrorCode: "E3", Count: 2}},
		},
	}, stats)
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0].sql, `"i"."is_completed" IS TRUE`)
}

func TestValidationAuditStatsBackendError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection reset")}
	_, err := newTestStore(db).ValidationAuditStats(context.Background(), nil)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, CodeAuditStats, be.Code)
}

func TestFlattenAudits(t *testing.T) {
	assert.Nil(t, flattenAudits(nil))
	assert.Equal(t, map[string]int64{"a": 3, "b": 1}, flattenAudits([]any{
		map[string]any{"a": float64(2)},
		map[string]any{"b": int64(1)},
		map[string]any{"a": float64(1)},
		"ignored",
	}))
}

func TestRemoveBlankFields(t *testing.T) {
	m := removeBlankFields(map[string]any{
		"id":      int64(1),
		"empty":   "",
		"null":    nil,
		"falsy":   false,
		"zero":    int64(0),
		"audits":  map[string]int64{},
		"payload": map[string]any{},
	})
	assert.Equal(t, map[string]any{
		"id":      int64(1),
		"falsy":   false,
		"zero":    int64(0),
		"payload": map[string]any{},
	}, m)
}

func TestMergeIgnored(t *testing.T) {
	prev := []Audit{
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p1", Ignore: true},
		{ErrorCode: "E2", ObjectType: "person", ObjectUUID: "p1", Ignore: false},
		{ErrorCode: "E3", ObjectType: "home", ObjectUUID: "h1", Ignore: true},
	}
	next := []Audit{
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p1"},
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p2"},
		{ErrorCode: "E2", ObjectType: "person", ObjectUUID: "p1"},
	}

	got := mergeIgnored(next, prev)
	require.Len(t, got, 3)
	assert.True(t, got[0].Ignore, "same code and object keeps ignore")
	assert.False(t, got[1].Ignore, "other object is not ignored")
	assert.False(t, got[2].Ignore)
	assert.False(t, next[0].Ignore, "input is not modified")
}

func TestJSONBArgStripsNullEscapes(t *testing.T) {
	expr, err := jsonbArg(map[string]any{"name": "a\x00b"})
	require.NoError(t, err)

	sql, args, err := expr.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "?::jsonb", sql)
	assert.Equal(t, []any{`{"name":"ab"}`}, args)
}

func TestInterviewByUUIDMalformed(t *testing.T) {
	db := &fakeDB{}
	_, err := newTestStore(db).InterviewByUUID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, query.ErrInvalidValue)
	assert.Empty(t, db.queries)
}

func TestInterviewByUUIDNotFound(t *testing.T) {
	db := &fakeDB{columns: []string{"id"}}
	_, err := newTestStore(db).InterviewByUUID(context.Background(), "0b5d2c8e-0000-4000-8000-000000000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogParadataRejectsUnknownType(t *testing.T) {
	db := &fakeDB{}
	err := newTestStore(db).LogParadata(context.Background(), ParadataEvent{InterviewID: 1, EventType: "keystroke"})
	assert.ErrorIs(t, err, query.ErrInvalidValue)
	assert.Empty(t, db.execs)
}

func TestLogParadataCastsEventType(t *testing.T) {
	db := &fakeDB{}
	err := newTestStore(db).LogParadata(context.Background(), ParadataEvent{
		InterviewID: 7,
		EventType:   "widget_interaction",
		EventData:   map[string]any{"valuesByPath": map[string]any{"response.a": 1}},
	})
	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "$3::paradata_event_type")
	assert.Contains(t, db.execs[0].sql, "$4::jsonb")
	assert.Equal(t, int64(7), db.execs[0].args[0])
}

func TestUpdateAuditNotFound(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 0"}
	err := newTestStore(db).UpdateAudit(context.Background(), 1, Audit{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p1", Ignore: true})
	assert.ErrorIs(t, err, ErrAuditNotFound)
}

func TestAccessUpserts(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(db)
	require.NoError(t, s.UserOpenedInterview(context.Background(), 1, 2, false))
	require.NoError(t, s.UserUpdatedInterview(context.Background(), 1, 2, true))

	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (interview_id, user_id, for_validation)")
	assert.NotContains(t, db.execs[0].sql, "update_count")
	assert.Contains(t, db.execs[1].sql, "update_count + 1")
	assert.Equal(t, []any{int64(1), int64(2), true}, db.execs[1].args)
}
