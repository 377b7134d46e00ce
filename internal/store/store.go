// Package store executes compiled interview queries against Postgres and
// owns the bookkeeping writes around interviews.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlekbai/interview_registry/internal/logging"
	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store runs list, stream and statistics requests and records interview
// activity. It is safe for concurrent use.
type Store struct {
	db      DB
	builder *query.Builder
	survey  schema.Survey
	logger  *slog.Logger
}

// Options configures New.
type Options struct {
	// InterviewerPrefix is the username prefix of participants created by
	// interviewers.
	InterviewerPrefix string
	Logger            *slog.Logger
}

// New returns a store bound to one survey, resolved by the caller at startup.
func New(db DB, survey schema.Survey, opts Options) *Store {
	return &Store{
		db:      db,
		builder: query.NewBuilder(opts.InterviewerPrefix),
		survey:  survey,
		logger:  logging.Component(opts.Logger, "store"),
	}
}

// Survey returns the survey the store writes to.
func (s *Store) Survey() schema.Survey { return s.survey }

// fail logs a failed request at the boundary and returns err unchanged.
func (s *Store) fail(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Debug("request missed", "op", op)
	case IsSpecError(err):
		s.logger.Warn("request rejected", "op", op, "category", clauseCategory(err), "error", err)
	default:
		s.logger.Error("request failed", "op", op, "category", clauseCategory(err), "error", err)
	}
	return err
}
