package store

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
)

// ParadataEvent is one entry of the edit log of an interview. UserID is nil
// for events caused by the participant.
type ParadataEvent struct {
	InterviewID int64
	UserID      *int64
	EventType   string
	EventData   map[string]any
}

// LogParadata appends an event to the paradata log. An unknown interview
// surfaces the foreign key violation from the database.
func (s *Store) LogParadata(ctx context.Context, e ParadataEvent) error {
	if !schema.ParadataEventTypes[e.EventType] {
		return s.fail("log_paradata", query.InvalidValue("event_type", fmt.Sprintf("unknown paradata event type %q", e.EventType)))
	}

	var data any
	if e.EventData != nil {
		b, err := json.Marshal(e.EventData)
		if err != nil {
			return s.fail("log_paradata", fmt.Errorf("encode event data: %w", err))
		}
		data = sq.Expr("?::jsonb", string(b))
	}

	sql, args, err := sq.Insert(schema.ParadataTable).
		Columns("interview_id", "user_id", "event_type", "event_data").
		Values(e.InterviewID, e.UserID, sq.Expr("?::paradata_event_type", e.EventType), data).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return s.fail("log_paradata", fmt.Errorf("build insert: %w", err))
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return s.fail("log_paradata", backendError("", schema.ParadataTable, "insert", err))
	}
	return nil
}
