package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/interview_registry/internal/db"
	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
	"github.com/atlekbai/interview_registry/internal/store"
	"github.com/atlekbai/interview_registry/internal/stream"
)

// fixture holds five active interviews of one valid participant, with
// response.tripsDate 1..5 and response.accessCode "1111x".
type fixture struct {
	pool          *pgxpool.Pool
	store         *store.Store
	ids           []int64
	participantID int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := db.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.EnsureSchema(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE sv_audits, paradata_events, sv_interviews_accesses, sv_interviews, sv_participants RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	survey, err := schema.ResolveSurvey(ctx, pool, "integration")
	require.NoError(t, err)

	var participantID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO sv_participants (username, is_valid, is_test) VALUES ('interviewer_1', true, false) RETURNING id`,
	).Scan(&participantID))

	s := store.New(pool, survey, store.Options{InterviewerPrefix: "interviewer"})
	f := &fixture{pool: pool, store: s, participantID: participantID}
	active := true
	for i := 1; i <= 5; i++ {
		iv, err := s.CreateInterview(ctx, store.NewInterview{
			ParticipantID: participantID,
			IsActive:      &active,
			Response: map[string]any{
				"tripsDate":  i,
				"accessCode": "1111" + string(rune('0'+i)),
				"home":       map[string]any{"someField": "v"},
			},
		})
		require.NoError(t, err)
		f.ids = append(f.ids, iv.ID)
	}
	return f
}

func TestIntegrationPaginationPartition(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	all, err := f.store.List(ctx, query.ListParams{PageSize: -1})
	require.NoError(t, err)
	require.Equal(t, int64(5), all.TotalCount)
	require.Len(t, all.Interviews, 5)

	var paged []any
	for page := 0; page < 3; page++ {
		res, err := f.store.List(ctx, query.ListParams{PageIndex: page, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.TotalCount)
		for _, r := range res.Interviews {
			paged = append(paged, r["id"])
		}
		if page == 2 {
			assert.Len(t, res.Interviews, 1)
		}
	}
	var unpaged []any
	for _, r := range all.Interviews {
		unpaged = append(unpaged, r["id"])
	}
	assert.Equal(t, unpaged, paged)

	beyond, err := f.store.List(ctx, query.ListParams{PageIndex: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Interviews)
}

func TestIntegrationRangeAndLike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "response.tripsDate", Value: []any{2, 4}}},
		PageSize: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)

	res, err = f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "response.accessCode", Op: "like", Value: []any{"1111", "2222"}}},
		PageSize: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TotalCount, "array values are ANDed")

	res, err = f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "response.accessCode", Op: "like", Value: "1111"}},
		PageSize: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TotalCount)
}

func TestIntegrationNumericFiltersSkipMalformedAnswers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	active := true
	for _, v := range []any{"", "unknown", map[string]any{"n": 3}} {
		_, err := f.store.CreateInterview(ctx, store.NewInterview{
			ParticipantID: f.participantID,
			IsActive:      &active,
			Response:      map[string]any{"tripsDate": v},
		})
		require.NoError(t, err)
	}

	res, err := f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "response.tripsDate", Op: "gt", Value: 2}},
		PageSize: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)

	res, err = f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "response.tripsDate", Value: []any{2, 4}}},
		PageSize: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)

	st, err := f.store.StreamInterviews(ctx, query.StreamParams{
		Filters: query.Filters{{Field: "response.tripsDate", Op: "lte", Value: 1}},
	}, nil)
	require.NoError(t, err)
	count := 0
	require.NoError(t, st.Each(func(store.Record) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestIntegrationSortTiesArePagedStably(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, field := range []string{"response.home.someField", "response.missing"} {
		sort := []query.SortKey{{Field: field, Order: "desc"}}
		var first []any
		for run := 0; run < 3; run++ {
			var ids []any
			for page := 0; page < 3; page++ {
				res, err := f.store.List(ctx, query.ListParams{PageIndex: page, PageSize: 2, Sort: sort})
				require.NoError(t, err)
				for _, r := range res.Interviews {
					ids = append(ids, r["id"])
				}
			}
			require.Len(t, ids, 5, field)
			if run == 0 {
				first = ids
				continue
			}
			assert.Equal(t, first, ids, field)
		}

		want := make([]any, len(f.ids))
		for i, id := range f.ids {
			want[i] = id
		}
		assert.Equal(t, want, first, "%s: ties fall back to ascending id", field)
	}
}

func TestIntegrationLogStreamOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	insert := func(interviewID int64, ts int) {
		_, err := f.pool.Exec(ctx,
			`INSERT INTO paradata_events (interview_id, timestamp, event_type, event_data)
			 VALUES ($1, to_timestamp($2), 'legacy', '{"valuesByPath": {"response.x": 1}}')`,
			interviewID, ts)
		require.NoError(t, err)
	}
	for _, ts := range []int{0, 1, 10, 4} {
		insert(f.ids[1], ts)
	}
	for _, ts := range []int{3, 2} {
		insert(f.ids[0], ts)
	}

	st, err := f.store.StreamLogs(ctx, query.LogStreamParams{}, stream.NewGate())
	require.NoError(t, err)

	type seen struct {
		id int64
		ts int64
	}
	var got []seen
	require.NoError(t, st.Each(func(e store.LogEntry) error {
		got = append(got, seen{e.InterviewID, e.Timestamp.Unix()})
		return nil
	}))
	assert.Equal(t, []seen{
		{f.ids[0], 2}, {f.ids[0], 3},
		{f.ids[1], 0}, {f.ids[1], 1}, {f.ids[1], 4}, {f.ids[1], 10},
	}, got)

	one := f.ids[1]
	st, err = f.store.StreamLogs(ctx, query.LogStreamParams{InterviewID: &one}, nil)
	require.NoError(t, err)
	count := 0
	require.NoError(t, st.Each(func(e store.LogEntry) error {
		assert.Equal(t, one, e.InterviewID)
		count++
		return nil
	}))
	assert.Equal(t, 4, count)
}

func TestIntegrationAudits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.SetAudits(ctx, f.ids[0], []store.Audit{
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p1"},
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p2"},
		{ErrorCode: "E2", ObjectType: "home", ObjectUUID: "h1"},
	})
	require.NoError(t, err)
	_, err = f.store.SetAudits(ctx, f.ids[1], []store.Audit{
		{ErrorCode: "E1", ObjectType: "person", ObjectUUID: "p3"},
	})
	require.NoError(t, err)

	stats, err := f.store.ValidationAuditStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []store.AuditStat{{ErrorCode: "E1", Count: 3}}, stats["error"]["person"])
	assert.Equal(t, []store.AuditStat{{ErrorCode: "E2", Count: 1}}, stats["error"]["home"])

	res, err := f.store.List(ctx, query.ListParams{
		Filters:  query.Filters{{Field: "audits", Value: []any{"E1", "E2"}}},
		PageSize: -1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.TotalCount)
	assert.Equal(t, map[string]int64{"E1": 2, "E2": 1}, res.Interviews[0]["audits"])

	require.NoError(t, f.store.UpdateAudit(ctx, f.ids[0], store.Audit{ErrorCode: "E2", ObjectType: "home", ObjectUUID: "h1", Ignore: true}))
	kept, err := f.store.SetAudits(ctx, f.ids[0], []store.Audit{
		{ErrorCode: "E2", ObjectType: "home", ObjectUUID: "h1"},
	})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.True(t, kept[0].Ignore)
}

func TestIntegrationInterviewRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rows, err := f.store.List(ctx, query.ListParams{PageSize: 1})
	require.NoError(t, err)
	uuid := rows.Interviews[0]["uuid"].(string)

	iv, err := f.store.InterviewByUUID(ctx, uuid)
	require.NoError(t, err)
	assert.Nil(t, iv.UpdatedAt)

	valid := false
	updated, err := f.store.UpdateInterview(ctx, iv.UUID, store.InterviewUpdate{
		IsValid:           &valid,
		CorrectedResponse: map[string]any{"note": "a\x00b"},
	})
	require.NoError(t, err)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, "ab", updated.CorrectedResponse["note"])

	res, err := f.store.List(ctx, query.ListParams{Filters: query.Filters{{Field: "is_valid", Value: false}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalCount)

	_, err = f.store.InterviewByUUID(ctx, "0b5d2c8e-0000-4000-8000-000000000001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIntegrationAccessesCollapse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, f.store.UserUpdatedInterview(ctx, f.ids[0], 42, false))
	}
	require.NoError(t, f.store.UserOpenedInterview(ctx, f.ids[0], 42, false))
	require.NoError(t, f.store.UserOpenedInterview(ctx, f.ids[0], 42, true))

	var n, updates int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT count(*), max(update_count) FROM sv_interviews_accesses WHERE interview_id = $1`, f.ids[0],
	).Scan(&n, &updates))
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, updates)
}
