package query

import (
	"github.com/paulmach/orb"

	"github.com/atlekbai/interview_registry/internal/schema"
)

// Predicate is a validated, storage-agnostic condition on interviews. It is
// the output of compiling one filter entry and holds no caller text other
// than already validated field names.
type Predicate interface {
	predicate()
}

// ColumnCmp compares a relational interview column with a bound value.
type ColumnCmp struct {
	Column string
	Kind   schema.ColumnKind
	Op     FilterOp
	Value  any
}

// ColumnNull tests a relational column for NULL.
type ColumnNull struct {
	Column string
	Negate bool
}

// TimestampCmp compares a timestamp column with unix seconds.
type TimestampCmp struct {
	Column  string
	Op      FilterOp
	Seconds float64
}

// TimestampRange is an inclusive [From, To] range in unix seconds.
type TimestampRange struct {
	Column   string
	From, To float64
}

// TriState matches a nullable boolean column against true, false or NULL.
// A nil Value means NULL.
type TriState struct {
	Column string
	Value  *bool
	Negate bool
}

// JSONPath addresses a value inside a payload document.
type JSONPath struct {
	Root schema.PayloadRoot
	Keys []string
}

// JSONText compares the text of a JSON leaf with a bound string.
type JSONText struct {
	Path JSONPath
	Op   FilterOp
	Text string
}

// JSONNumber compares a JSON leaf cast to numeric.
type JSONNumber struct {
	Path   JSONPath
	Op     FilterOp
	Number float64
}

// JSONRange is an inclusive numeric range on a JSON leaf.
type JSONRange struct {
	Path     JSONPath
	From, To float64
}

// JSONNull tests a JSON leaf for absence.
type JSONNull struct {
	Path   JSONPath
	Negate bool
}

// AuditCode requires the interview to have at least one audit with Code.
type AuditCode struct {
	Code string
}

// GeoContains requires the GeoJSON geometry at Path to lie within Polygon.
type GeoContains struct {
	Path    JSONPath
	Polygon orb.Polygon
}

// ForCorrection filters paradata events on their forCorrection flag. Events
// recorded before the flag existed match either value.
type ForCorrection struct {
	Value bool
}

// Never matches no row.
type Never struct {
	Reason string
}

func (ColumnCmp) predicate()      {}
func (ColumnNull) predicate()     {}
func (TimestampCmp) predicate()   {}
func (TimestampRange) predicate() {}
func (TriState) predicate()       {}
func (JSONText) predicate()       {}
func (JSONNumber) predicate()     {}
func (JSONRange) predicate()      {}
func (JSONNull) predicate()       {}
func (AuditCode) predicate()      {}
func (GeoContains) predicate()    {}
func (ForCorrection) predicate()  {}
func (Never) predicate()          {}
