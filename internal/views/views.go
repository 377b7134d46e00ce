// Package views manages the administrator materialized views: registering
// them from a query, refreshing them, and reading them back.
//
// Views are owned by their registrants. Reads of a view that is not
// registered, or whose relation has disappeared, return ErrViewNotFound
// rather than an empty result.
package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/interview_registry/internal/logging"
	"github.com/atlekbai/interview_registry/internal/schema"
)

// ErrViewNotFound is returned when a view is not registered or its relation
// does not exist.
var ErrViewNotFound = errors.New("view not found")

// ErrInvalidIdentifier is returned for view, column and group names that are
// not plain identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// CodeRegister is the stable code of a failed registration.
const CodeRegister = "DBADMV0001"

// undefinedTable is the SQLSTATE of a missing relation.
const undefinedTable = "42P01"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}

// DB is the subset of *pgxpool.Pool the cache uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Cache registers and reads materialized views.
type Cache struct {
	db     DB
	logger *slog.Logger
	// refreshConcurrency bounds RefreshAll.
	refreshConcurrency int
}

// New returns a view cache.
func New(db DB, logger *slog.Logger) *Cache {
	return &Cache{
		db:                 db,
		logger:             logging.Component(logger, "views"),
		refreshConcurrency: 4,
	}
}

// RegisterError wraps a database failure during registration.
type RegisterError struct {
	View string
	Err  error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("register view %s: %v (%s)", e.View, e.Err, CodeRegister)
}

func (e *RegisterError) Unwrap() error { return e.Err }

// Register creates the materialized view name from viewQuery and records it.
// When the view is already registered with another query it is dropped and
// recreated; with the same query nothing happens.
func (c *Cache) Register(ctx context.Context, name, viewQuery string) error {
	if err := validIdent("view", name); err != nil {
		return err
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return &RegisterError{View: name, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx, `SELECT view_query FROM `+schema.ViewsTable+` WHERE view_name = $1`, name).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return &RegisterError{View: name, Err: err}
	}
	if exists && current == viewQuery {
		return nil
	}

	ident := schema.QuoteIdent(name)
	create := fmt.Sprintf(`CREATE MATERIALIZED VIEW %s AS SELECT * FROM (%s) AS view_tbl`, ident, viewQuery)
	if exists {
		if _, err := tx.Exec(ctx, `DROP MATERIALIZED VIEW IF EXISTS `+ident); err != nil {
			return &RegisterError{View: name, Err: err}
		}
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return &RegisterError{View: name, Err: err}
	}

	record := `INSERT INTO ` + schema.ViewsTable + ` (view_name, view_query) VALUES ($1, $2)
ON CONFLICT (view_name) DO UPDATE SET view_query = EXCLUDED.view_query, updated_at = now()`
	if _, err := tx.Exec(ctx, record, name, viewQuery); err != nil {
		return &RegisterError{View: name, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &RegisterError{View: name, Err: err}
	}

	c.logger.Info("view registered", "view", name, "replaced", exists)
	return nil
}

// Exists reports whether name is registered.
func (c *Cache) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := c.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+schema.ViewsTable+` WHERE view_name = $1)`, name,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("view %s exists: %w", name, err)
	}
	return ok, nil
}

func (c *Cache) mustExist(ctx context.Context, name string) error {
	if err := validIdent("view", name); err != nil {
		return err
	}
	ok, err := c.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return nil
}

// notFound maps a missing relation to ErrViewNotFound.
func notFound(name string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s: %v", ErrViewNotFound, name, err)
	}
	return err
}

// Refresh re-runs the query of one registered view.
func (c *Cache) Refresh(ctx context.Context, name string) error {
	if err := c.mustExist(ctx, name); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, `REFRESH MATERIALIZED VIEW `+schema.QuoteIdent(name)); err != nil {
		return fmt.Errorf("refresh view %s: %w", name, notFound(name, err))
	}
	c.logger.Debug("view refreshed", "view", name)
	return nil
}

// Names lists the registered views.
func (c *Cache) Names(ctx context.Context) ([]string, error) {
	rows, err := c.db.Query(ctx, `SELECT view_name FROM `+schema.ViewsTable+` ORDER BY view_name`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// RefreshAll refreshes every registered view, a few at a time. It returns the
// first failure after all refreshes have finished.
func (c *Cache) RefreshAll(ctx context.Context) error {
	names, err := c.Names(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(c.refreshConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if _, err := c.db.Exec(ctx, `REFRESH MATERIALIZED VIEW `+schema.QuoteIdent(name)); err != nil {
				return fmt.Errorf("refresh view %s: %w", name, notFound(name, err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("view refresh failed", "error", err)
		return err
	}
	c.logger.Info("views refreshed", "count", len(names))
	return nil
}

// Query returns the given columns of every row of a view, all columns when
// columns is empty.
func (c *Cache) Query(ctx context.Context, name string, columns []string) ([]map[string]any, error) {
	if err := c.mustExist(ctx, name); err != nil {
		return nil, err
	}
	cols := []string{"*"}
	if len(columns) > 0 {
		cols = make([]string, len(columns))
		for i, col := range columns {
			if err := validIdent("column", col); err != nil {
				return nil, err
			}
			cols[i] = schema.QuoteIdent(col)
		}
	}

	sql, args, err := sq.Select(cols...).From(schema.QuoteIdent(name)).ToSql()
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, name, sql, args)
}

// CountBy counts the rows of a view per distinct value of the groupBy
// columns. Each result row has the group columns and "count".
func (c *Cache) CountBy(ctx context.Context, name string, groupBy []string) ([]map[string]any, error) {
	if err := c.mustExist(ctx, name); err != nil {
		return nil, err
	}
	if len(groupBy) == 0 {
		return nil, fmt.Errorf("%w: count needs at least one group column", ErrInvalidIdentifier)
	}
	cols := make([]string, len(groupBy))
	for i, col := range groupBy {
		if err := validIdent("group column", col); err != nil {
			return nil, err
		}
		cols[i] = schema.QuoteIdent(col)
	}

	sql, args, err := sq.Select(cols...).
		Column(`count(*) AS "count"`).
		From(schema.QuoteIdent(name)).
		GroupBy(cols...).
		OrderBy(cols...).
		ToSql()
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, name, sql, args)
}

func (c *Cache) collect(ctx context.Context, name, sql string, args []any) ([]map[string]any, error) {
	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query view %s: %w", name, notFound(name, err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("query view %s: %w", name, notFound(name, err))
	}
	return out, nil
}
