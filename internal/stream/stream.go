package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/interview_registry/internal/logging"
)

// ErrClosed is returned by Each after Close was called.
var ErrClosed = errors.New("stream closed")

// Querier opens a cursor. *pgxpool.Pool, *pgxpool.Conn and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Stream yields the rows of one query, scanned into T.
type Stream[T any] struct {
	rows   pgx.Rows
	scan   pgx.RowToFunc[T]
	gate   *Gate
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	running bool
	count   int64
}

// Options configures Open.
type Options struct {
	// Gate is waited on before every row. A nil gate never pauses.
	Gate   *Gate
	Logger *slog.Logger
}

// Open runs sql and returns a stream over its rows. The statement is bound to
// a child of ctx that Close cancels.
func Open[T any](ctx context.Context, q Querier, scan pgx.RowToFunc[T], opts Options, sql string, args ...any) (*Stream[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, err
	}

	gate := opts.Gate
	if gate == nil {
		gate = NewGate()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Stream[T]{
		rows:   rows,
		scan:   scan,
		gate:   gate,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}, nil
}

// Gate returns the gate the stream waits on.
func (s *Stream[T]) Gate() *Gate { return s.gate }

// Count returns the number of rows delivered so far.
func (s *Stream[T]) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Each delivers rows to fn in order until the cursor is exhausted, fn returns
// an error, or the stream is closed. The cursor is released before Each
// returns.
func (s *Stream[T]) Each(fn func(T) error) error {
	s.mu.Lock()
	if s.closed || s.running {
		s.mu.Unlock()
		return ErrClosed
	}
	s.running = true
	s.mu.Unlock()
	defer s.finish()

	for {
		if err := s.gate.Wait(s.ctx); err != nil {
			return s.stopped(err)
		}
		if !s.rows.Next() {
			break
		}
		v, err := s.scan(s.rows)
		if err != nil {
			return fmt.Errorf("scan row %d: %w", s.Count()+1, err)
		}
		if err := fn(v); err != nil {
			return err
		}
		s.mu.Lock()
		s.count++
		s.mu.Unlock()
	}

	if err := s.rows.Err(); err != nil {
		return s.stopped(err)
	}
	s.logger.Debug("stream exhausted", "rows", s.Count())
	return nil
}

// All returns the rows as an iterator. Iteration stops at the first error,
// which is yielded with a zero T.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		errStop := errors.New("stop")
		err := s.Each(func(v T) error {
			if !yield(v, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			var zero T
			yield(zero, err)
		}
	}
}

// Close cancels the statement. It is safe to call more than once and from
// another goroutine than Each; a running Each notices the cancellation,
// releases the cursor and returns ErrClosed.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	running := s.running
	s.mu.Unlock()

	s.cancel()
	if !running {
		s.rows.Close()
	}
}

func (s *Stream[T]) finish() {
	s.rows.Close()
	s.mu.Lock()
	s.running = false
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Stream[T]) stopped(err error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return err
}
