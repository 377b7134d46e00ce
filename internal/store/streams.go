package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
	"github.com/atlekbai/interview_registry/internal/stream"
)

// StreamInterviews opens a stream over every interview matching p, active or
// not. Rows are read one at a time while gate is open; a nil gate never
// pauses. The caller must drain or Close the stream.
func (s *Store) StreamInterviews(ctx context.Context, p query.StreamParams, gate *stream.Gate) (*stream.Stream[Record], error) {
	w, order, err := query.CompileStream(p)
	if err != nil {
		return nil, s.fail("stream_interviews", err)
	}
	sql, args, err := s.builder.BuildStream(w, order, p.Select)
	if err != nil {
		return nil, s.fail("stream_interviews", fmt.Errorf("build stream: %w", err))
	}

	st, err := stream.Open(ctx, s.db, scanRecord, stream.Options{Gate: gate, Logger: s.logger}, sql, args...)
	if err != nil {
		return nil, s.fail("stream_interviews", backendError(CodeList, schema.InterviewsTable, "stream", err))
	}
	s.logger.Debug("interview stream opened", "filters", len(p.Filters), "payload", p.Select.Payload)
	return st, nil
}

// LogEntry is one paradata event together with its interview.
type LogEntry struct {
	InterviewID   int64          `json:"interviewId" msgpack:"interviewId"`
	InterviewUUID uuid.UUID      `json:"interviewUuid" msgpack:"interviewUuid"`
	ParticipantID *int64         `json:"participantId,omitempty" msgpack:"participantId,omitempty"`
	EventID       int64          `json:"eventId" msgpack:"eventId"`
	Timestamp     time.Time      `json:"timestamp" msgpack:"timestamp"`
	EventType     string         `json:"eventType" msgpack:"eventType"`
	UserID        *int64         `json:"userId,omitempty" msgpack:"userId,omitempty"`
	ValuesByPath  map[string]any `json:"valuesByPath,omitempty" msgpack:"valuesByPath,omitempty"`
	UnsetPaths    []string       `json:"unsetPaths,omitempty" msgpack:"unsetPaths,omitempty"`
	UserAction    any            `json:"userAction,omitempty" msgpack:"userAction,omitempty"`
}

func scanLogEntry(row pgx.CollectableRow) (LogEntry, error) {
	var (
		e       LogEntry
		rawUUID string
	)
	err := row.Scan(
		&e.InterviewID,
		&rawUUID,
		&e.ParticipantID,
		&e.EventID,
		&e.Timestamp,
		&e.EventType,
		&e.UserID,
		&e.ValuesByPath,
		&e.UnsetPaths,
		&e.UserAction,
	)
	if err != nil {
		return LogEntry{}, err
	}
	if e.InterviewUUID, err = uuid.Parse(rawUUID); err != nil {
		return LogEntry{}, fmt.Errorf("interview %d uuid: %w", e.InterviewID, err)
	}
	return e, nil
}

// StreamLogs opens a stream of paradata events. Events of one interview are
// contiguous and ordered by timestamp.
func (s *Store) StreamLogs(ctx context.Context, p query.LogStreamParams, gate *stream.Gate) (*stream.Stream[LogEntry], error) {
	w, err := query.CompileLogStream(p)
	if err != nil {
		return nil, s.fail("stream_logs", err)
	}
	sql, args, err := s.builder.BuildLogStream(w)
	if err != nil {
		return nil, s.fail("stream_logs", fmt.Errorf("build log stream: %w", err))
	}

	st, err := stream.Open(ctx, s.db, scanLogEntry, stream.Options{Gate: gate, Logger: s.logger}, sql, args...)
	if err != nil {
		return nil, s.fail("stream_logs", backendError("", schema.ParadataTable, "stream", err))
	}
	s.logger.Debug("log stream opened", "interview_id", p.InterviewID, "for_correction", p.ForCorrection)
	return st, nil
}
