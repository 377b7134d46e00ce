package schema

import "strings"

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLit quotes a SQL string literal, escaping embedded single quotes.
func QuoteLit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Col returns alias."column", both quoted.
func Col(alias, column string) string {
	return QuoteIdent(alias) + "." + QuoteIdent(column)
}

const (
	InterviewsTable   = "sv_interviews"
	ParticipantsTable = "sv_participants"
	SurveysTable      = "sv_surveys"
	AuditsTable       = "sv_audits"
	ParadataTable     = "paradata_events"
	AccessesTable     = "sv_interviews_accesses"
	ViewsTable        = "sv_materialized_views"
)

// Aliases used by every interview statement.
const (
	InterviewAlias   = "i"
	ParticipantAlias = "participant"
	AuditAlias       = "a"
	ParadataAlias    = "pe"
)

// PayloadRoot names a JSON document column of an interview.
type PayloadRoot string

const (
	Response          PayloadRoot = "response"
	CorrectedResponse PayloadRoot = "corrected_response"
)

// PayloadRoots lists the JSON document columns a field path may start with.
var PayloadRoots = map[string]PayloadRoot{
	string(Response):          Response,
	string(CorrectedResponse): CorrectedResponse,
}

// ColumnKind classifies how a relational interview column is filtered.
type ColumnKind int

const (
	ColumnPlain ColumnKind = iota
	ColumnTimestamp
	ColumnTriState
	ColumnUUID
)

type ColumnDef struct {
	Name string
	Kind ColumnKind
}

// InterviewColumns are the relational columns that filters and sorts may
// reference by bare name.
var InterviewColumns = map[string]ColumnDef{
	"id":              {Name: "id", Kind: ColumnPlain},
	"participant_id":  {Name: "participant_id", Kind: ColumnPlain},
	"uuid":            {Name: "uuid", Kind: ColumnUUID},
	"created_at":      {Name: "created_at", Kind: ColumnTimestamp},
	"updated_at":      {Name: "updated_at", Kind: ColumnTimestamp},
	"is_valid":        {Name: "is_valid", Kind: ColumnTriState},
	"is_questionable": {Name: "is_questionable", Kind: ColumnTriState},
	"is_completed":    {Name: "is_completed", Kind: ColumnTriState},
	"is_validated":    {Name: "is_validated", Kind: ColumnTriState},
}

// AuditsField is the pseudo-field that filters interviews by audit error code.
const AuditsField = "audits"

// ParadataEventTypes mirrors the paradata_event_type enum.
var ParadataEventTypes = map[string]bool{
	"legacy":             true,
	"legacy_server":      true,
	"widget_interaction": true,
	"button_click":       true,
	"side_effect":        true,
	"server_event":       true,
}
