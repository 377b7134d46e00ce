package store

import (
	"errors"
	"fmt"

	"github.com/atlekbai/interview_registry/internal/query"
)

// ErrNotFound is returned when an addressed interview does not exist. It is a
// soft miss, distinct from an empty result.
var ErrNotFound = errors.New("interview not found")

// Stable codes of backend failures.
const (
	CodeCreate     = "DBQCR0001"
	CodeUpdate     = "DBQCR0002"
	CodeList       = "DBQCR0003"
	CodeAuditStats = "DBQCR0004"
	CodeGetAudits  = "DBSVAUD0001"
	CodeSetAudits  = "DBSVAUD0003"
)

// BackendError wraps a database failure with the table and operation it
// happened in. It unwraps to the driver error.
type BackendError struct {
	Code  string
	Table string
	Op    string
	Err   error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendError(code, table, op string, err error) error {
	return &BackendError{Code: code, Table: table, Op: op, Err: err}
}

// IsSpecError reports whether err is a rejected filter, value or sort order.
// Such errors are never worth retrying.
func IsSpecError(err error) bool {
	return query.IsSpecError(err)
}

// clauseCategory names the kind of failure for log lines.
func clauseCategory(err error) string {
	switch {
	case errors.Is(err, query.ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, query.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, query.ErrInvalidSortOrder):
		return "invalid_sort"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "backend"
}
