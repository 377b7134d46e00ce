package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"id", `"id"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := QuoteIdent(tt.in); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuoteLit(t *testing.T) {
	if got := QuoteLit("o'clock"); got != `'o''clock'` {
		t.Errorf("QuoteLit = %s", got)
	}
}

func TestCol(t *testing.T) {
	if got := Col(InterviewAlias, "created_at"); got != `"i"."created_at"` {
		t.Errorf("Col = %s", got)
	}
}

type fakeRow struct {
	id   int32
	name string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int32) = r.id
	*dest[1].(*string) = r.name
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	sql   string
	args  []any
	calls int
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.calls++
	q.sql = sql
	q.args = args
	return q.row
}

func TestResolveSurvey(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{id: 7, name: "od_2025"}}

	s, err := ResolveSurvey(context.Background(), q, "od_2025")
	if err != nil {
		t.Fatalf("ResolveSurvey: %v", err)
	}
	if s.ID != 7 || s.Shortname != "od_2025" {
		t.Errorf("got %+v", s)
	}
	if q.calls != 1 {
		t.Errorf("expected a single statement, got %d", q.calls)
	}
	if !strings.Contains(q.sql, "ON CONFLICT (shortname)") {
		t.Errorf("expected upsert, got %s", q.sql)
	}
	if len(q.args) != 1 || q.args[0] != "od_2025" {
		t.Errorf("args = %v", q.args)
	}
}

func TestResolveSurveyErrors(t *testing.T) {
	if _, err := ResolveSurvey(context.Background(), &fakeQuerier{}, ""); err == nil {
		t.Error("expected error for empty shortname")
	}

	boom := errors.New("connection refused")
	_, err := ResolveSurvey(context.Background(), &fakeQuerier{row: fakeRow{err: boom}}, "x")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}
