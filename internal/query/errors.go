package query

import (
	"errors"
	"fmt"
)

// Sentinels for specification errors. Match with errors.Is.
var (
	ErrInvalidField     = errors.New("invalid field for where clause")
	ErrInvalidValue     = errors.New("invalid value for where clause")
	ErrInvalidSortOrder = errors.New("invalid sort order")
)

// Stable machine-readable codes carried by *Error.
const (
	CodeInvalidField     = "DBQCR0005"
	CodeInvalidValue     = "DBQCR0006"
	CodeInvalidSortOrder = "DBINTO0001"
)

// Error is a rejected filter or sort specification. It is raised before any
// statement reaches the database and is never worth retrying.
type Error struct {
	Code   string
	Name   string
	Field  string
	Detail string
	kind   error
}

func (e *Error) Error() string {
	msg := e.kind.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s (%s)", msg, e.Code)
}

func (e *Error) Unwrap() error { return e.kind }

func invalidField(field, detail string) error {
	return &Error{
		Code:   CodeInvalidField,
		Name:   "InvalidFieldForWhereClause",
		Field:  field,
		Detail: detail,
		kind:   ErrInvalidField,
	}
}

func invalidValue(field, detail string) error {
	return &Error{
		Code:   CodeInvalidValue,
		Name:   "InvalidValueForWhereClause",
		Field:  field,
		Detail: detail,
		kind:   ErrInvalidValue,
	}
}

// InvalidValue returns an invalid value error for callers that validate
// values outside the filter compiler.
func InvalidValue(field, detail string) error {
	return invalidValue(field, detail)
}

func invalidSortOrder(field, order string) error {
	return &Error{
		Code:   CodeInvalidSortOrder,
		Name:   "InvalidSortOrder",
		Field:  field,
		Detail: fmt.Sprintf("order %q is neither asc nor desc", order),
		kind:   ErrInvalidSortOrder,
	}
}

// IsSpecError reports whether err is a rejected specification rather than a
// backend failure.
func IsSpecError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
