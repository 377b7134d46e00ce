package store

import (
	"context"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// Access bookkeeping relies on the (interview_id, user_id, for_validation)
// unique constraint: concurrent duplicates collapse into one row.
const (
	openedInterviewQuery = `
INSERT INTO ` + schema.AccessesTable + ` (interview_id, user_id, for_validation)
VALUES ($1, $2, $3)
ON CONFLICT (interview_id, user_id, for_validation) DO UPDATE SET updated_at = now()
`
	updatedInterviewQuery = `
INSERT INTO ` + schema.AccessesTable + ` (interview_id, user_id, for_validation, update_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (interview_id, user_id, for_validation)
DO UPDATE SET update_count = ` + schema.AccessesTable + `.update_count + 1, updated_at = now()
`
)

// UserOpenedInterview records that a user opened an interview, for editing
// or for validation.
func (s *Store) UserOpenedInterview(ctx context.Context, interviewID, userID int64, forValidation bool) error {
	if _, err := s.db.Exec(ctx, openedInterviewQuery, interviewID, userID, forValidation); err != nil {
		return s.fail("user_opened_interview", backendError("", schema.AccessesTable, "upsert", err))
	}
	return nil
}

// UserUpdatedInterview records one more edit by a user.
func (s *Store) UserUpdatedInterview(ctx context.Context, interviewID, userID int64, forValidation bool) error {
	if _, err := s.db.Exec(ctx, updatedInterviewQuery, interviewID, userID, forValidation); err != nil {
		return s.fail("user_updated_interview", backendError("", schema.AccessesTable, "upsert", err))
	}
	return nil
}
