package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Survey is the survey every interview written by this process belongs to.
// It is resolved once at startup and passed to the components that need it.
type Survey struct {
	ID        int32
	Shortname string
}

// The no-op update makes RETURNING yield the existing row on conflict.
const resolveSurveyQuery = `
INSERT INTO ` + SurveysTable + ` (shortname)
VALUES ($1)
ON CONFLICT (shortname) DO UPDATE SET shortname = EXCLUDED.shortname
RETURNING id, shortname
`

// Querier is the subset of pgxpool.Pool and pgx.Tx used for single-row reads.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResolveSurvey finds or creates the survey with the given shortname in a
// single statement, so concurrent callers converge on the same id.
func ResolveSurvey(ctx context.Context, q Querier, shortname string) (Survey, error) {
	if shortname == "" {
		return Survey{}, fmt.Errorf("resolve survey: empty shortname")
	}

	var s Survey
	if err := q.QueryRow(ctx, resolveSurveyQuery, shortname).Scan(&s.ID, &s.Shortname); err != nil {
		return Survey{}, fmt.Errorf("resolve survey %q: %w", shortname, err)
	}
	return s, nil
}
